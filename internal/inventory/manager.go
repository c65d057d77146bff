package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/roomledger/internal/logger"
)

const blockPrefix = "BLK"

type referenceGenerator interface {
	NextReference(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Manager runs staff operations on the ledger: opening dates, pricing and blocks.
type Manager struct {
	l      *logger.Logger
	db     Beginner
	ledger *Ledger
	calc   *Calculator
	refs   referenceGenerator
	now    func() time.Time
}

func NewManager(l *logger.Logger, db Beginner, refs referenceGenerator, now func() time.Time) *Manager {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Manager{
		l:      l,
		db:     db,
		ledger: NewLedger(),
		calc:   NewCalculator(now),
		refs:   refs,
		now:    now,
	}
}

func (m *Manager) Check(ctx context.Context, q Query) (res *Result, err error) {
	err = m.inTx(ctx, func(tx Tx) error {
		res, err = m.calc.Check(ctx, tx, q)

		return err
	})

	return res, err
}

func (m *Manager) Open(ctx context.Context, key RoomTypeKey, stay Stay, price *float64) (created int, err error) {
	err = m.inTx(ctx, func(tx Tx) error {
		created, err = m.ledger.Open(ctx, tx, key, stay, price)

		return err
	})
	if err == nil {
		m.l.LogInfo("Opened %d inventory days for %s %s", created, key, stay)
	}

	return created, err
}

func (m *Manager) Reprice(ctx context.Context, key RoomTypeKey, stay Stay, price float64) (updated int, err error) {
	if price <= 0 {
		return 0, fmt.Errorf("price %v: %w", price, ErrInvalidCount)
	}

	err = m.inTx(ctx, func(tx Tx) error {
		updated, err = m.ledger.Reprice(ctx, tx, key, stay, price)

		return err
	})

	return updated, err
}

type BlockInput struct {
	Key       RoomTypeKey `json:"key"`
	Date      time.Time   `json:"date"`
	Rooms     int         `json:"rooms"`
	Reason    string      `json:"reason"`
	BlockedBy string      `json:"blocked_by"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// CreateBlock takes rooms out of sale for one night if they are still free.
func (m *Manager) CreateBlock(ctx context.Context, input BlockInput) (block *Block, err error) {
	if input.Rooms <= 0 {
		return nil, ErrInvalidCount
	}

	date := Date(input.Date)
	now := m.now()

	ref, err := m.refs.NextReference(ctx, blockPrefix, date)
	if err != nil {
		return nil, fmt.Errorf("next block reference: %w", err)
	}

	err = m.inTx(ctx, func(tx Tx) error {
		stay := Stay{CheckIn: date, CheckOut: date.AddDate(0, 0, 1)}

		if _, err := m.ledger.Lock(ctx, tx, input.Key, stay); err != nil {
			return err
		}

		if _, err := m.calc.Check(ctx, tx, Query{Key: input.Key, Stay: stay, Rooms: input.Rooms}); err != nil {
			return err
		}

		//nolint:exhaustruct
		block = &Block{
			Reference:  ref,
			PropertyID: input.Key.PropertyID,
			RoomTypeID: input.Key.RoomTypeID,
			Date:       date,
			Rooms:      input.Rooms,
			Reason:     input.Reason,
			BlockedBy:  input.BlockedBy,
			Status:     BlockActive,
			ExpiresAt:  input.ExpiresAt,
			CreatedAt:  now,
		}

		return tx.InsertBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	m.l.LogInfo("Block %s created: %d rooms of %s on %s", block.Reference, block.Rooms, input.Key, DateKey(date))

	return block, nil
}

func (m *Manager) ReleaseBlock(ctx context.Context, reference string) (block *Block, err error) {
	err = m.inTx(ctx, func(tx Tx) error {
		block, err = tx.LockBlock(ctx, reference)
		if err != nil {
			return fmt.Errorf("lock block %s: %w", reference, err)
		}

		if block.Status != BlockActive {
			return fmt.Errorf("block %s is %s: %w", reference, block.Status, ErrBlockNotActive)
		}

		now := m.now()
		block.Status = BlockReleased
		block.ReleasedAt = &now

		return tx.UpdateBlock(ctx, block)
	})
	if err != nil {
		return nil, err
	}

	return block, nil
}

func (m *Manager) ListBlocks(ctx context.Context, key RoomTypeKey, stay Stay) (blocks []*Block, err error) {
	err = m.inTx(ctx, func(tx Tx) error {
		blocks, err = tx.ListBlocks(ctx, key, stay.CheckIn, stay.CheckOut)

		return err
	})

	return blocks, err
}

type ReportRow struct {
	Date      time.Time `json:"date"`
	Total     int       `json:"total"`
	Available int       `json:"available"`
	Reserved  int       `json:"reserved"`
	Blocked   int       `json:"blocked"`
	Sellable  int       `json:"sellable"`
	Price     *float64  `json:"price,omitempty"`
}

// Report lists the counters of every existing night in the range.
func (m *Manager) Report(ctx context.Context, key RoomTypeKey, stay Stay) (rows []ReportRow, err error) {
	err = m.inTx(ctx, func(tx Tx) error {
		roomType, err := tx.GetRoomType(ctx, key)
		if err != nil {
			return fmt.Errorf("get room type %s: %w", key, err)
		}

		nights := stay.Nights()

		days, err := tx.GetDays(ctx, key, nights)
		if err != nil {
			return fmt.Errorf("get days: %w", err)
		}

		blocked, err := tx.BlockedRooms(ctx, key, nights, m.now())
		if err != nil {
			return fmt.Errorf("get blocked rooms: %w", err)
		}

		rows = make([]ReportRow, 0, len(days))

		for _, day := range days {
			b := blocked[DateKey(day.Date)]
			rows = append(rows, ReportRow{
				Date:      day.Date,
				Total:     roomType.TotalRooms,
				Available: day.AvailableRooms,
				Reserved:  day.ReservedRooms,
				Blocked:   b,
				Sellable:  max(day.Free()-b, 0),
				Price:     day.CurrentPrice,
			})
		}

		return nil
	})

	return rows, err
}

func (m *Manager) inTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := m.db.BeginInventoryTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback inventory transaction after panic %v", p)
			}

			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback inventory transaction after error %v: %v", err.Error(), rbErr)
			}

			return
		}

		if err = tx.Commit(ctx); err != nil {
			m.l.LogErrorf("Could not commit inventory transaction, err %v", err.Error())
		}
	}()

	return fn(tx)
}

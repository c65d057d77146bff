package inventory

import (
	"context"
	"fmt"
	"time"
)

// Ledger applies counter changes to every night of a stay or to none of them.
// It never opens transactions itself.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) GetDay(ctx context.Context, tx Reader, key RoomTypeKey, date time.Time) (*Day, error) {
	date = Date(date)

	days, err := tx.GetDays(ctx, key, []time.Time{date})
	if err != nil {
		return nil, fmt.Errorf("get day: %w", err)
	}

	if len(days) == 0 {
		return nil, dayNotFound(key, date)
	}

	return days[0], nil
}

// Lock takes row locks on every night of the stay and fails if any night is missing.
func (l *Ledger) Lock(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay) ([]*Day, error) {
	nights := stay.Nights()
	if len(nights) == 0 {
		return nil, ErrInvalidStay
	}

	days, err := tx.LockDays(ctx, key, nights)
	if err != nil {
		return nil, fmt.Errorf("lock days %s: %w", stay, err)
	}

	byDate := make(map[string]*Day, len(days))
	for _, day := range days {
		byDate[DateKey(day.Date)] = day
	}

	ordered := make([]*Day, 0, len(nights))

	for _, night := range nights {
		day, ok := byDate[DateKey(night)]
		if !ok {
			return nil, dayNotFound(key, night)
		}

		ordered = append(ordered, day)
	}

	return ordered, nil
}

// Hold moves count rooms from free to reserved.
func (l *Ledger) Hold(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, count int) error {
	return l.apply(ctx, tx, key, stay, count, func(_ *RoomType, day *Day) error {
		if day.Free() < count {
			return &InsufficientInventoryError{Date: day.Date, Needed: count, Available: day.Free()}
		}

		day.ReservedRooms += count

		return nil
	})
}

// Deduct sells count rooms. Rooms held by other bookings stay backed.
func (l *Ledger) Deduct(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, count int) error {
	return l.apply(ctx, tx, key, stay, count, func(_ *RoomType, day *Day) error {
		if day.Free() < count {
			return &InsufficientInventoryError{Date: day.Date, Needed: count, Available: day.Free()}
		}

		day.AvailableRooms -= count

		return nil
	})
}

// Release returns held rooms. Releasing more than is reserved means a caller bug.
func (l *Ledger) Release(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, count int) error {
	return l.apply(ctx, tx, key, stay, count, func(_ *RoomType, day *Day) error {
		if day.ReservedRooms < count {
			return fmt.Errorf(
				"release %d rooms of %s on %s with %d reserved: %w",
				count,
				key,
				DateKey(day.Date),
				day.ReservedRooms,
				ErrLedgerInconsistent,
			)
		}

		day.ReservedRooms -= count

		return nil
	})
}

// Restore returns sold rooms to sale.
func (l *Ledger) Restore(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, count int) error {
	return l.apply(ctx, tx, key, stay, count, func(roomType *RoomType, day *Day) error {
		if day.AvailableRooms+count > roomType.TotalRooms {
			return fmt.Errorf(
				"restore %d rooms of %s on %s above total %d: %w",
				count,
				key,
				DateKey(day.Date),
				roomType.TotalRooms,
				ErrLedgerInconsistent,
			)
		}

		day.AvailableRooms += count

		return nil
	})
}

// Open creates the missing rows of [from, to) with the whole room type free.
func (l *Ledger) Open(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, price *float64) (int, error) {
	roomType, err := tx.GetRoomType(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("get room type %s: %w", key, err)
	}

	nights := stay.Nights()

	existing, err := tx.LockDays(ctx, key, nights)
	if err != nil {
		return 0, fmt.Errorf("lock days %s: %w", stay, err)
	}

	present := make(map[string]struct{}, len(existing))
	for _, day := range existing {
		present[DateKey(day.Date)] = struct{}{}
	}

	var created []*Day

	for _, night := range nights {
		if _, ok := present[DateKey(night)]; ok {
			continue
		}

		//nolint:exhaustruct
		day := &Day{
			PropertyID:     key.PropertyID,
			RoomTypeID:     key.RoomTypeID,
			Date:           night,
			AvailableRooms: roomType.TotalRooms,
		}

		if price != nil {
			p := *price
			day.CurrentPrice = &p
		}

		created = append(created, day)
	}

	if len(created) == 0 {
		return 0, nil
	}

	if err := tx.InsertDays(ctx, created); err != nil {
		return 0, fmt.Errorf("insert days: %w", err)
	}

	return len(created), nil
}

// Reprice sets the nightly price on every existing row of the stay.
func (l *Ledger) Reprice(ctx context.Context, tx Tx, key RoomTypeKey, stay Stay, price float64) (int, error) {
	days, err := l.Lock(ctx, tx, key, stay)
	if err != nil {
		return 0, err
	}

	for _, day := range days {
		p := price
		day.CurrentPrice = &p
	}

	if err := tx.UpdateDays(ctx, days); err != nil {
		return 0, fmt.Errorf("update days: %w", err)
	}

	return len(days), nil
}

func (l *Ledger) apply(
	ctx context.Context,
	tx Tx,
	key RoomTypeKey,
	stay Stay,
	count int,
	change func(roomType *RoomType, day *Day) error,
) error {
	if count <= 0 {
		return ErrInvalidCount
	}

	roomType, err := tx.GetRoomType(ctx, key)
	if err != nil {
		return fmt.Errorf("get room type %s: %w", key, err)
	}

	days, err := l.Lock(ctx, tx, key, stay)
	if err != nil {
		return err
	}

	// Work on copies so a failing night leaves nothing half-applied.
	updated := make([]*Day, 0, len(days))

	for _, day := range days {
		next := day.Clone()
		if err := change(roomType, next); err != nil {
			return err
		}

		updated = append(updated, next)
	}

	if err := tx.UpdateDays(ctx, updated); err != nil {
		return fmt.Errorf("update days: %w", err)
	}

	return nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
)

type Config struct {
	L *logger.Logger
}

type dayKey struct {
	key  inventory.RoomTypeKey
	date string
}

func newDayKey(key inventory.RoomTypeKey, date time.Time) dayKey {
	return dayKey{key: key, date: inventory.DateKey(date)}
}

// DB keeps everything in process memory. Transactions run one at a time, which
// gives the same isolation as row locks on a single node.
type DB struct {
	// sem is held by the open transaction, if any.
	sem chan struct{}
	// mu guards committed state against readers outside transactions.
	mu sync.RWMutex
	l  *logger.Logger

	roomTypes   map[inventory.RoomTypeKey]*inventory.RoomType
	days        map[dayKey]*inventory.Day
	blocks      map[string]*inventory.Block
	properties  map[string]*booking.Property
	bookings    map[string]*booking.Booking
	idempotency map[string]string
	payments    []*booking.Payment
	buffer      map[int64]*booking.BufferEntry

	nextTrxID     int64
	nextPaymentID int64
	nextBufferID  int64
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		sem:         make(chan struct{}, 1),
		l:           conf.L,
		roomTypes:   make(map[inventory.RoomTypeKey]*inventory.RoomType),
		days:        make(map[dayKey]*inventory.Day),
		blocks:      make(map[string]*inventory.Block),
		properties:  make(map[string]*booking.Property),
		bookings:    make(map[string]*booking.Booking),
		idempotency: make(map[string]string),
		buffer:      make(map[int64]*booking.BufferEntry),
	}
}

func (db *DB) begin(ctx context.Context) (*transaction, error) {
	select {
	case db.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for transaction slot: %w", ctx.Err())
	}

	db.nextTrxID++

	//nolint:exhaustruct
	return &transaction{
		id:         fmt.Sprintf("trx-%d", db.nextTrxID),
		db:         db,
		roomTypes:  make(map[inventory.RoomTypeKey]*inventory.RoomType),
		days:       make(map[dayKey]*inventory.Day),
		blocks:     make(map[string]*inventory.Block),
		properties: make(map[string]*booking.Property),
		bookings:   make(map[string]*booking.Booking),
		buffer:     make(map[int64]*booking.BufferEntry),
	}, nil
}

func (db *DB) BeginTx(ctx context.Context) (booking.Tx, error) {
	trx, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}

	return trx, nil
}

func (db *DB) BeginInventoryTx(ctx context.Context) (inventory.Tx, error) {
	trx, err := db.begin(ctx)
	if err != nil {
		return nil, err
	}

	return trx, nil
}

func (db *DB) GetBooking(_ context.Context, reference string) (*booking.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	b, ok := db.bookings[reference]
	if !ok {
		return nil, fmt.Errorf("%s: %w", reference, booking.ErrBookingNotFound)
	}

	return b.Clone(), nil
}

func (db *DB) ListPayments(_ context.Context, reference string) ([]*booking.Payment, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var res []*booking.Payment

	for _, p := range db.payments {
		if p.BookingReference == reference {
			c := *p
			res = append(res, &c)
		}
	}

	return res, nil
}

func (db *DB) ExpiredHolds(_ context.Context, today time.Time) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var expired []*booking.Booking

	for _, b := range db.bookings {
		if b.Status == booking.StatusPreConfirmed && b.PaymentStatus == booking.PaymentUnpaid && b.HoldExpired(today) {
			expired = append(expired, b)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].PaymentWindowExpires.Equal(*expired[j].PaymentWindowExpires) {
			return expired[i].PaymentWindowExpires.Before(*expired[j].PaymentWindowExpires)
		}

		return expired[i].Reference < expired[j].Reference
	})

	refs := make([]string, 0, len(expired))
	for _, b := range expired {
		refs = append(refs, b.Reference)
	}

	return refs, nil
}

// ListBufferEntries returns entries in creation order. An empty status matches all.
func (db *DB) ListBufferEntries(_ context.Context, status booking.BufferStatus) ([]*booking.BufferEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var res []*booking.BufferEntry

	for _, e := range db.buffer {
		if status == "" || e.Status == status {
			res = append(res, e.Clone())
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })

	return res, nil
}

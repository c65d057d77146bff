package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/idgen/simple"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/storage/memory"
)

var (
	start  = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deluxe = inventory.RoomTypeKey{PropertyID: "seaview", RoomTypeID: "deluxe"}
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = t
}

type recordingNotifier struct {
	mu      sync.Mutex
	entries []*booking.BufferEntry
}

func (n *recordingNotifier) BufferEntryCreated(_ context.Context, entry *booking.BufferEntry, _ *booking.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.entries = append(n.entries, entry)

	return nil
}

type fixture struct {
	db       *memory.DB
	m        *booking.Manager
	clock    *clock
	notifier *recordingNotifier
}

func prepaidProperty() booking.Property {
	//nolint:exhaustruct
	return booking.Property{
		ID:                  "seaview",
		Name:                "Seaview Hotel",
		Code:                "SEA",
		RequiresPrepayment:  true,
		PaymentWindowNights: 2,
		DepositPercentage:   30,
		CheckInTime:         "14:00",
	}
}

func payAtHotelProperty() booking.Property {
	p := prepaidProperty()
	p.RequiresPrepayment = false

	return p
}

// newFixture opens 60 nights of a deluxe room type starting at the fixture date.
func newFixture(t *testing.T, property booking.Property, totalRooms int) *fixture {
	t.Helper()

	c := &clock{t: start} //nolint:exhaustruct
	db := memory.New(memory.Config{L: logger.Discard()})
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SaveProperty(ctx, &property))
	//nolint:exhaustruct
	require.NoError(t, tx.SaveRoomType(ctx, &inventory.RoomType{
		PropertyID:   deluxe.PropertyID,
		ID:           deluxe.RoomTypeID,
		Name:         "Deluxe",
		TotalRooms:   totalRooms,
		MaxOccupancy: 2,
		BasePrice:    100,
	}))

	_, err = inventory.NewLedger().Open(ctx, tx, deluxe, inventory.NewStay(start, start.AddDate(0, 0, 60)), nil)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	n := &recordingNotifier{} //nolint:exhaustruct

	return &fixture{
		db:       db,
		m:        booking.New(logger.Discard(), db, simple.New(), booking.WithClock(c.Now), booking.WithNotifier(n)),
		clock:    c,
		notifier: n,
	}
}

func date(offset int) time.Time {
	return inventory.Date(start).AddDate(0, 0, offset)
}

func input(checkIn, checkOut, rooms int) *booking.CreateInput {
	//nolint:exhaustruct
	return &booking.CreateInput{
		PropertyID: deluxe.PropertyID,
		RoomTypeID: deluxe.RoomTypeID,
		CheckIn:    date(checkIn),
		CheckOut:   date(checkOut),
		Rooms:      rooms,
		Guests:     rooms,
		Guest:      booking.Guest{Name: "Ada Lovelace", Email: "ada@example.com"},
	}
}

func (f *fixture) day(t *testing.T, offset int) *inventory.Day {
	t.Helper()

	ctx := context.Background()

	tx, err := f.db.BeginInventoryTx(ctx)
	require.NoError(t, err)

	defer func() { require.NoError(t, tx.Rollback(ctx)) }()

	d, err := inventory.NewLedger().GetDay(ctx, tx, deluxe, date(offset))
	require.NoError(t, err)

	return d
}

func (f *fixture) create(t *testing.T, in *booking.CreateInput) *booking.Booking {
	t.Helper()

	res, err := f.m.CreateBooking(context.Background(), in)
	require.NoError(t, err)

	return res.Booking
}

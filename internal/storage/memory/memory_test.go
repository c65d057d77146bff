package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/storage/memory"
)

var key = inventory.RoomTypeKey{PropertyID: "harbour", RoomTypeID: "twin"}

func newDB(t *testing.T) *memory.DB {
	t.Helper()

	db := memory.New(memory.Config{L: logger.Discard()})
	ctx := context.Background()

	tx, err := db.BeginInventoryTx(ctx)
	require.NoError(t, err)
	//nolint:exhaustruct
	require.NoError(t, tx.SaveRoomType(ctx, &inventory.RoomType{PropertyID: key.PropertyID, ID: key.RoomTypeID, TotalRooms: 3}))
	require.NoError(t, tx.Commit(ctx))

	return db
}

func bookingRow(ref, idempotencyKey string) *booking.Booking {
	expires := time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC)

	//nolint:exhaustruct
	return &booking.Booking{
		Reference:            ref,
		PropertyID:           key.PropertyID,
		RoomTypeID:           key.RoomTypeID,
		Status:               booking.StatusPreConfirmed,
		PaymentStatus:        booking.PaymentUnpaid,
		PaymentWindowExpires: &expires,
		IdempotencyKey:       idempotencyKey,
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBooking(ctx, bookingRow("HRB-1", "k1")))

	got, err := tx.GetBooking(ctx, "HRB-1")
	require.NoError(t, err, "staged rows are visible inside the transaction")
	assert.Equal(t, "HRB-1", got.Reference)

	require.NoError(t, tx.Rollback(ctx))

	_, err = db.GetBooking(ctx, "HRB-1")
	require.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestCommitPublishes(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBooking(ctx, bookingRow("HRB-1", "k1")))
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx), "rollback after commit is a no-op")

	_, err = db.GetBooking(ctx, "HRB-1")
	require.NoError(t, err)

	tx, err = db.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	replayed, err := tx.GetBookingByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "HRB-1", replayed.Reference)

	_, err = tx.GetBookingByIdempotencyKey(ctx, "k2")
	require.ErrorIs(t, err, booking.ErrRecordNotFound)

	require.ErrorIs(t, tx.InsertBooking(ctx, bookingRow("HRB-1", "")), memory.ErrDuplicate)
}

func TestFinishedTransactionRejectsWork(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	tx, err := db.BeginInventoryTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	_, err = tx.GetRoomType(ctx, key)
	require.ErrorIs(t, err, memory.ErrTransactionDone)
	require.ErrorIs(t, tx.Commit(ctx), memory.ErrTransactionDone)
}

func TestBeginWaitsForOpenTransaction(t *testing.T) {
	db := newDB(t)

	tx, err := db.BeginTx(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = db.BeginTx(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(context.Background()))

	next, err := db.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, next.Rollback(context.Background()))
}

func TestExpiredHoldsSeesOnlyCommittedUnpaidHolds(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	paid := bookingRow("HRB-2", "")
	paid.PaymentStatus = booking.PaymentDepositPaid

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBooking(ctx, bookingRow("HRB-1", "")))
	require.NoError(t, tx.InsertBooking(ctx, paid))
	require.NoError(t, tx.Commit(ctx))

	refs, err := db.ExpiredHolds(ctx, time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, refs, "deadline not reached")

	refs, err = db.ExpiredHolds(ctx, time.Date(2026, 4, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []string{"HRB-1"}, refs)
}

func TestOneOpenBufferEntryPerBooking(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	//nolint:exhaustruct
	entry := &booking.BufferEntry{BookingReference: "HRB-1", Rooms: 1, AmountPaid: 60, Status: booking.BufferPendingResolution}

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertBufferEntry(ctx, entry))
	require.NoError(t, tx.Commit(ctx))

	tx, err = db.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	open, err := tx.LockOpenBufferEntry(ctx, "HRB-1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, open.ID)

	_, err = tx.LockOpenBufferEntry(ctx, "HRB-2")
	require.ErrorIs(t, err, booking.ErrRecordNotFound)

	//nolint:exhaustruct
	second := &booking.BufferEntry{BookingReference: "HRB-1", Rooms: 1, AmountPaid: 60, Status: booking.BufferPendingResolution}
	require.ErrorIs(t, tx.InsertBufferEntry(ctx, second), memory.ErrDuplicate)

	open.Status = booking.BufferResolved
	require.NoError(t, tx.UpdateBufferEntry(ctx, open))

	_, err = tx.LockOpenBufferEntry(ctx, "HRB-1")
	require.ErrorIs(t, err, booking.ErrRecordNotFound, "resolved entries are not open")
	require.NoError(t, tx.InsertBufferEntry(ctx, second), "a resolved entry leaves room for a new one")
}

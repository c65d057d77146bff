package booking

import (
	"context"
	"time"

	"github.com/avstrong/roomledger/internal/inventory"
)

// Tx extends the ledger transaction with booking rows. Booking rows are always
// locked before inventory rows.
type Tx interface {
	inventory.Tx
	GetProperty(ctx context.Context, id string) (*Property, error)
	SaveProperty(ctx context.Context, p *Property) error
	GetBooking(ctx context.Context, reference string) (*Booking, error)
	LockBooking(ctx context.Context, reference string) (*Booking, error)
	GetBookingByIdempotencyKey(ctx context.Context, key string) (*Booking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b *Booking) error
	InsertPayment(ctx context.Context, p *Payment) error
	InsertBufferEntry(ctx context.Context, e *BufferEntry) error
	LockBufferEntry(ctx context.Context, id int64) (*BufferEntry, error)
	// LockOpenBufferEntry returns ErrRecordNotFound when the booking has no unresolved entry.
	LockOpenBufferEntry(ctx context.Context, reference string) (*BufferEntry, error)
	UpdateBufferEntry(ctx context.Context, e *BufferEntry) error
}

type storageReader interface {
	GetBooking(ctx context.Context, reference string) (*Booking, error)
	ListPayments(ctx context.Context, reference string) ([]*Payment, error)
	// ExpiredHolds lists unpaid PRE_CONFIRMED bookings whose window ends on or before today.
	ExpiredHolds(ctx context.Context, today time.Time) ([]string, error)
	ListBufferEntries(ctx context.Context, status BufferStatus) ([]*BufferEntry, error)
}

type storageWriter interface {
	BeginTx(ctx context.Context) (Tx, error)
}

type storage interface {
	storageReader
	storageWriter
}

type referenceGenerator interface {
	NextReference(ctx context.Context, prefix string, date time.Time) (string, error)
}

// Notifier tells staff about outcomes that need a human.
type Notifier interface {
	BufferEntryCreated(ctx context.Context, entry *BufferEntry, b *Booking) error
}

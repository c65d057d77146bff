package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
)

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type DB struct {
	pool *pgxpool.Pool
	l    *logger.Logger
}

func Open(ctx context.Context, l *logger.Logger, databaseURL string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConnLifetime = 5 * time.Minute //nolint:gomnd
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &DB{pool: pool, l: l}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second) //nolint:gomnd
	defer cancel()

	return db.pool.Ping(ctx) //nolint:wrapcheck
}

func (db *DB) begin(ctx context.Context) (*transaction, error) {
	//nolint:exhaustruct
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	return &transaction{tx: tx}, nil
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

func (db *DB) GetBooking(ctx context.Context, reference string) (*booking.Booking, error) {
	return getBooking(ctx, db.pool, reference, "")
}

func (db *DB) ListPayments(ctx context.Context, reference string) ([]*booking.Payment, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, booking_reference, amount, method, status, note, created_at
		FROM payments WHERE booking_reference = $1 ORDER BY id`, reference)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}

	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*booking.Payment, error) {
		var p booking.Payment

		err := row.Scan(&p.ID, &p.BookingReference, &p.Amount, &p.Method, &p.Status, &p.Note, &p.CreatedAt)

		return &p, err //nolint:wrapcheck
	})
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}

	return payments, nil
}

func (db *DB) ExpiredHolds(ctx context.Context, today time.Time) ([]string, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT reference FROM bookings
		WHERE status = $1 AND payment_status = $2 AND payment_window_expires <= $3::date
		ORDER BY payment_window_expires, reference`,
		booking.StatusPreConfirmed, booking.PaymentUnpaid, today)
	if err != nil {
		return nil, fmt.Errorf("query expired holds: %w", err)
	}

	refs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan expired holds: %w", err)
	}

	return refs, nil
}

func (db *DB) ListBufferEntries(ctx context.Context, status booking.BufferStatus) ([]*booking.BufferEntry, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+bufferColumns+` FROM buffer_entries
		WHERE $1 = '' OR status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query buffer entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*booking.BufferEntry, error) {
		return scanBufferEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan buffer entries: %w", err)
	}

	return entries, nil
}

func notFound(err error, target error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, target)
	}

	return err
}

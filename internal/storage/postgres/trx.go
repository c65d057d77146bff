package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
)

type transaction struct {
	tx pgx.Tx
}

func (t *transaction) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx) //nolint:wrapcheck
}

// Rollback after Commit is a no-op.
func (t *transaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

const roomTypeColumns = `property_id, id, name, total_rooms, max_occupancy, min_stay_nights,
	max_stay_nights, min_lead_days, max_advance_days, base_price`

func (t *transaction) GetRoomType(ctx context.Context, key inventory.RoomTypeKey) (*inventory.RoomType, error) {
	var rt inventory.RoomType

	err := t.tx.QueryRow(ctx, `SELECT `+roomTypeColumns+` FROM room_types WHERE property_id = $1 AND id = $2`,
		key.PropertyID, key.RoomTypeID,
	).Scan(
		&rt.PropertyID, &rt.ID, &rt.Name, &rt.TotalRooms, &rt.MaxOccupancy, &rt.MinStayNights,
		&rt.MaxStayNights, &rt.MinLeadDays, &rt.MaxAdvanceDays, &rt.BasePrice,
	)
	if err != nil {
		return nil, notFound(err, inventory.ErrRoomTypeNotFound, key.String())
	}

	return &rt, nil
}

func (t *transaction) SaveRoomType(ctx context.Context, rt *inventory.RoomType) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO room_types (`+roomTypeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (property_id, id) DO UPDATE SET
			name = EXCLUDED.name, total_rooms = EXCLUDED.total_rooms, max_occupancy = EXCLUDED.max_occupancy,
			min_stay_nights = EXCLUDED.min_stay_nights, max_stay_nights = EXCLUDED.max_stay_nights,
			min_lead_days = EXCLUDED.min_lead_days, max_advance_days = EXCLUDED.max_advance_days,
			base_price = EXCLUDED.base_price`,
		rt.PropertyID, rt.ID, rt.Name, rt.TotalRooms, rt.MaxOccupancy, rt.MinStayNights,
		rt.MaxStayNights, rt.MinLeadDays, rt.MaxAdvanceDays, rt.BasePrice,
	)
	if err != nil {
		return fmt.Errorf("upsert room type %s: %w", rt.Key(), err)
	}

	return nil
}

func (t *transaction) queryDays(ctx context.Context, lock bool, key inventory.RoomTypeKey, dates []time.Time) ([]*inventory.Day, error) {
	sql := `SELECT property_id, room_type_id, stay_date, available_rooms, reserved_rooms, current_price
		FROM inventory_days
		WHERE property_id = $1 AND room_type_id = $2 AND stay_date = ANY($3::date[])
		ORDER BY stay_date`
	if lock {
		sql += ` FOR UPDATE`
	}

	rows, err := t.tx.Query(ctx, sql, key.PropertyID, key.RoomTypeID, dates)
	if err != nil {
		return nil, fmt.Errorf("query inventory days: %w", err)
	}

	days, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*inventory.Day, error) {
		var d inventory.Day

		err := row.Scan(&d.PropertyID, &d.RoomTypeID, &d.Date, &d.AvailableRooms, &d.ReservedRooms, &d.CurrentPrice)
		d.Date = inventory.Date(d.Date)

		return &d, err //nolint:wrapcheck
	})
	if err != nil {
		return nil, fmt.Errorf("scan inventory days: %w", err)
	}

	return days, nil
}

func (t *transaction) GetDays(ctx context.Context, key inventory.RoomTypeKey, dates []time.Time) ([]*inventory.Day, error) {
	return t.queryDays(ctx, false, key, dates)
}

// LockDays relies on ORDER BY stay_date so concurrent multi-night stays lock in the same order.
func (t *transaction) LockDays(ctx context.Context, key inventory.RoomTypeKey, dates []time.Time) ([]*inventory.Day, error) {
	return t.queryDays(ctx, true, key, dates)
}

func (t *transaction) UpdateDays(ctx context.Context, days []*inventory.Day) error {
	batch := &pgx.Batch{} //nolint:exhaustruct

	for _, d := range days {
		batch.Queue(`
			UPDATE inventory_days SET available_rooms = $4, reserved_rooms = $5, current_price = $6
			WHERE property_id = $1 AND room_type_id = $2 AND stay_date = $3`,
			d.PropertyID, d.RoomTypeID, d.Date, d.AvailableRooms, d.ReservedRooms, d.CurrentPrice,
		)
	}

	results := t.tx.SendBatch(ctx, batch)

	for _, d := range days {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()

			return fmt.Errorf("update %s on %s: %w", d.Key(), inventory.DateKey(d.Date), err)
		}

		if tag.RowsAffected() == 0 {
			_ = results.Close()

			return fmt.Errorf("%s on %s: %w", d.Key(), inventory.DateKey(d.Date), inventory.ErrDayNotFound)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	return nil
}

func (t *transaction) InsertDays(ctx context.Context, days []*inventory.Day) error {
	_, err := t.tx.CopyFrom(
		ctx,
		pgx.Identifier{"inventory_days"},
		[]string{"property_id", "room_type_id", "stay_date", "available_rooms", "reserved_rooms", "current_price"},
		pgx.CopyFromSlice(len(days), func(i int) ([]any, error) {
			d := days[i]

			return []any{d.PropertyID, d.RoomTypeID, d.Date, d.AvailableRooms, d.ReservedRooms, d.CurrentPrice}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy inventory days: %w", err)
	}

	return nil
}

func (t *transaction) BlockedRooms(
	ctx context.Context,
	key inventory.RoomTypeKey,
	dates []time.Time,
	at time.Time,
) (map[string]int, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT block_date, SUM(rooms) FROM room_blocks
		WHERE property_id = $1 AND room_type_id = $2 AND block_date = ANY($3::date[])
			AND status = $4 AND (expires_at IS NULL OR expires_at > $5)
		GROUP BY block_date`,
		key.PropertyID, key.RoomTypeID, dates, inventory.BlockActive, at,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocked rooms: %w", err)
	}
	defer rows.Close()

	res := make(map[string]int)

	for rows.Next() {
		var (
			date  time.Time
			rooms int64
		)

		if err := rows.Scan(&date, &rooms); err != nil {
			return nil, fmt.Errorf("scan blocked rooms: %w", err)
		}

		res[inventory.DateKey(date)] = int(rooms)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read blocked rooms: %w", err)
	}

	return res, nil
}

const blockColumns = `reference, property_id, room_type_id, block_date, rooms, reason, blocked_by,
	status, expires_at, created_at, released_at`

func scanBlock(row pgx.Row) (*inventory.Block, error) {
	var b inventory.Block

	err := row.Scan(
		&b.Reference, &b.PropertyID, &b.RoomTypeID, &b.Date, &b.Rooms, &b.Reason, &b.BlockedBy,
		&b.Status, &b.ExpiresAt, &b.CreatedAt, &b.ReleasedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	b.Date = inventory.Date(b.Date)

	return &b, nil
}

func (t *transaction) ListBlocks(ctx context.Context, key inventory.RoomTypeKey, from, to time.Time) ([]*inventory.Block, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+blockColumns+` FROM room_blocks
		WHERE property_id = $1 AND ($2 = '' OR room_type_id = $2) AND block_date >= $3::date AND block_date < $4::date
		ORDER BY block_date, reference`,
		key.PropertyID, key.RoomTypeID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}

	blocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*inventory.Block, error) {
		return scanBlock(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan blocks: %w", err)
	}

	return blocks, nil
}

func (t *transaction) InsertBlock(ctx context.Context, b *inventory.Block) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO room_blocks (`+blockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.Reference, b.PropertyID, b.RoomTypeID, b.Date, b.Rooms, b.Reason, b.BlockedBy,
		b.Status, b.ExpiresAt, b.CreatedAt, b.ReleasedAt,
	)
	if err != nil {
		return fmt.Errorf("insert block %s: %w", b.Reference, err)
	}

	return nil
}

func (t *transaction) LockBlock(ctx context.Context, reference string) (*inventory.Block, error) {
	b, err := scanBlock(t.tx.QueryRow(ctx, `SELECT `+blockColumns+` FROM room_blocks WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return nil, notFound(err, inventory.ErrBlockNotFound, reference)
	}

	return b, nil
}

func (t *transaction) UpdateBlock(ctx context.Context, b *inventory.Block) error {
	tag, err := t.tx.Exec(ctx, `UPDATE room_blocks SET status = $2, released_at = $3, expires_at = $4 WHERE reference = $1`,
		b.Reference, b.Status, b.ReleasedAt, b.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("update block %s: %w", b.Reference, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", b.Reference, inventory.ErrBlockNotFound)
	}

	return nil
}

func (t *transaction) GetProperty(ctx context.Context, id string) (*booking.Property, error) {
	var (
		p     booking.Property
		rules []byte
	)

	err := t.tx.QueryRow(ctx, `
		SELECT id, name, code, requires_prepayment, payment_window_nights, deposit_percentage,
			deposit_amount, check_in_time, policy_type, policy_rules
		FROM properties WHERE id = $1`, id,
	).Scan(
		&p.ID, &p.Name, &p.Code, &p.RequiresPrepayment, &p.PaymentWindowNights, &p.DepositPercentage,
		&p.DepositAmount, &p.CheckInTime, &p.CancellationPolicy.Type, &rules,
	)
	if err != nil {
		return nil, notFound(err, booking.ErrPropertyNotFound, id)
	}

	if err := json.Unmarshal(rules, &p.CancellationPolicy.Rules); err != nil {
		return nil, fmt.Errorf("decode policy rules of %s: %w", id, err)
	}

	return &p, nil
}

func (t *transaction) SaveProperty(ctx context.Context, p *booking.Property) error {
	rules := p.CancellationPolicy.Rules
	if rules == nil {
		rules = []booking.CancellationRule{}
	}

	encoded, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode policy rules of %s: %w", p.ID, err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO properties (id, name, code, requires_prepayment, payment_window_nights, deposit_percentage,
			deposit_amount, check_in_time, policy_type, policy_rules)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, code = EXCLUDED.code, requires_prepayment = EXCLUDED.requires_prepayment,
			payment_window_nights = EXCLUDED.payment_window_nights, deposit_percentage = EXCLUDED.deposit_percentage,
			deposit_amount = EXCLUDED.deposit_amount, check_in_time = EXCLUDED.check_in_time,
			policy_type = EXCLUDED.policy_type, policy_rules = EXCLUDED.policy_rules`,
		p.ID, p.Name, p.Code, p.RequiresPrepayment, p.PaymentWindowNights, p.DepositPercentage,
		p.DepositAmount, p.CheckInTime, p.CancellationPolicy.Type, encoded,
	)
	if err != nil {
		return fmt.Errorf("upsert property %s: %w", p.ID, err)
	}

	return nil
}

func (t *transaction) GetBooking(ctx context.Context, reference string) (*booking.Booking, error) {
	return getBooking(ctx, t.tx, reference, "")
}

func (t *transaction) LockBooking(ctx context.Context, reference string) (*booking.Booking, error) {
	return getBooking(ctx, t.tx, reference, " FOR UPDATE")
}

func (t *transaction) GetBookingByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get booking by idempotency key: %w", err)
	}

	return b, nil
}

func (t *transaction) InsertBooking(ctx context.Context, b *booking.Booking) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, NULLIF($17, ''), $18, $19, $20, $21, $22, $23, $24)`,
		bookingArgs(b)...,
	)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", b.Reference, err)
	}

	return nil
}

func (t *transaction) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings SET amount_paid = $2, status = $3, payment_status = $4, updated_at = $5,
			cancelled_at = $6, cancellation_reason = $7, refund_amount = $8, penalty_amount = $9,
			refund_status = $10, total_price = $11, payment_window_expires = $12::date
		WHERE reference = $1`,
		b.Reference, b.AmountPaid, b.Status, b.PaymentStatus, b.UpdatedAt,
		b.CancelledAt, b.CancellationReason, b.RefundAmount, b.PenaltyAmount,
		b.RefundStatus, b.TotalPrice, b.PaymentWindowExpires,
	)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", b.Reference, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", b.Reference, booking.ErrBookingNotFound)
	}

	return nil
}

func (t *transaction) InsertPayment(ctx context.Context, p *booking.Payment) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO payments (booking_reference, amount, method, status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.BookingReference, p.Amount, p.Method, p.Status, p.Note, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert payment for %s: %w", p.BookingReference, err)
	}

	return nil
}

const bufferColumns = `id, booking_reference, property_id, room_type_id, check_in, check_out, rooms,
	amount_paid, reason, status, resolution, resolved_by, created_at, resolved_at`

func scanBufferEntry(row pgx.Row) (*booking.BufferEntry, error) {
	var e booking.BufferEntry

	err := row.Scan(
		&e.ID, &e.BookingReference, &e.PropertyID, &e.RoomTypeID, &e.CheckIn, &e.CheckOut, &e.Rooms,
		&e.AmountPaid, &e.Reason, &e.Status, &e.Resolution, &e.ResolvedBy, &e.CreatedAt, &e.ResolvedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &e, nil
}

func (t *transaction) InsertBufferEntry(ctx context.Context, e *booking.BufferEntry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO buffer_entries (booking_reference, property_id, room_type_id, check_in, check_out, rooms,
			amount_paid, reason, status, resolution, resolved_by, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		e.BookingReference, e.PropertyID, e.RoomTypeID, e.CheckIn, e.CheckOut, e.Rooms,
		e.AmountPaid, e.Reason, e.Status, e.Resolution, e.ResolvedBy, e.CreatedAt, e.ResolvedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert buffer entry for %s: %w", e.BookingReference, err)
	}

	return nil
}

func (t *transaction) LockBufferEntry(ctx context.Context, id int64) (*booking.BufferEntry, error) {
	e, err := scanBufferEntry(t.tx.QueryRow(ctx, `SELECT `+bufferColumns+` FROM buffer_entries WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, booking.ErrBufferEntryNotFound, fmt.Sprint(id))
	}

	return e, nil
}

func (t *transaction) LockOpenBufferEntry(ctx context.Context, reference string) (*booking.BufferEntry, error) {
	e, err := scanBufferEntry(t.tx.QueryRow(ctx, `
		SELECT `+bufferColumns+` FROM buffer_entries
		WHERE booking_reference = $1 AND status = $2
		FOR UPDATE`,
		reference, booking.BufferPendingResolution,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("lock open buffer entry of %s: %w", reference, err)
	}

	return e, nil
}

func (t *transaction) UpdateBufferEntry(ctx context.Context, e *booking.BufferEntry) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE buffer_entries SET status = $2, resolution = $3, resolved_by = $4, resolved_at = $5,
			amount_paid = $6
		WHERE id = $1`,
		e.ID, e.Status, e.Resolution, e.ResolvedBy, e.ResolvedAt, e.AmountPaid,
	)
	if err != nil {
		return fmt.Errorf("update buffer entry %d: %w", e.ID, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%d: %w", e.ID, booking.ErrBufferEntryNotFound)
	}

	return nil
}

const bookingColumns = `reference, property_id, room_type_id, check_in, check_out, rooms, guests,
	guest_name, guest_email, guest_phone, total_price, amount_paid, status, payment_status,
	payment_window_expires, special_requests, idempotency_key, created_at, updated_at, cancelled_at,
	cancellation_reason, refund_amount, penalty_amount, refund_status`

func bookingArgs(b *booking.Booking) []any {
	return []any{
		b.Reference, b.PropertyID, b.RoomTypeID, b.CheckIn, b.CheckOut, b.Rooms, b.Guests,
		b.Guest.Name, b.Guest.Email, b.Guest.Phone, b.TotalPrice, b.AmountPaid, b.Status, b.PaymentStatus,
		b.PaymentWindowExpires, b.SpecialRequests, b.IdempotencyKey, b.CreatedAt, b.UpdatedAt, b.CancelledAt,
		b.CancellationReason, b.RefundAmount, b.PenaltyAmount, b.RefundStatus,
	}
}

func scanBooking(row pgx.Row) (*booking.Booking, error) {
	var (
		b   booking.Booking
		key *string
	)

	err := row.Scan(
		&b.Reference, &b.PropertyID, &b.RoomTypeID, &b.CheckIn, &b.CheckOut, &b.Rooms, &b.Guests,
		&b.Guest.Name, &b.Guest.Email, &b.Guest.Phone, &b.TotalPrice, &b.AmountPaid, &b.Status, &b.PaymentStatus,
		&b.PaymentWindowExpires, &b.SpecialRequests, &key, &b.CreatedAt, &b.UpdatedAt, &b.CancelledAt,
		&b.CancellationReason, &b.RefundAmount, &b.PenaltyAmount, &b.RefundStatus,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if key != nil {
		b.IdempotencyKey = *key
	}

	b.CheckIn = inventory.Date(b.CheckIn)
	b.CheckOut = inventory.Date(b.CheckOut)

	if b.PaymentWindowExpires != nil {
		expires := inventory.Date(*b.PaymentWindowExpires)
		b.PaymentWindowExpires = &expires
	}

	return &b, nil
}

func getBooking(ctx context.Context, q querier, reference, suffix string) (*booking.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference = $1`+suffix, reference))
	if err != nil {
		return nil, notFound(err, booking.ErrBookingNotFound, reference)
	}

	return b, nil
}

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
)

// transaction stages writes and applies them on Commit. Reads see staged rows first.
type transaction struct {
	id   string
	db   *DB
	done bool

	roomTypes  map[inventory.RoomTypeKey]*inventory.RoomType
	days       map[dayKey]*inventory.Day
	blocks     map[string]*inventory.Block
	properties map[string]*booking.Property
	bookings   map[string]*booking.Booking
	payments   []*booking.Payment
	buffer     map[int64]*booking.BufferEntry
}

func (t *transaction) check() error {
	if t.done {
		return fmt.Errorf("%s: %w", t.id, ErrTransactionDone)
	}

	return nil
}

func (t *transaction) Commit(_ context.Context) error {
	if err := t.check(); err != nil {
		return err
	}

	db := t.db

	db.mu.Lock()

	for k, v := range t.roomTypes {
		db.roomTypes[k] = v
	}

	for k, v := range t.days {
		db.days[k] = v
	}

	for k, v := range t.blocks {
		db.blocks[k] = v
	}

	for k, v := range t.properties {
		db.properties[k] = v
	}

	for ref, b := range t.bookings {
		db.bookings[ref] = b
		if b.IdempotencyKey != "" {
			db.idempotency[b.IdempotencyKey] = ref
		}
	}

	db.payments = append(db.payments, t.payments...)

	for id, e := range t.buffer {
		db.buffer[id] = e
	}

	db.mu.Unlock()

	t.finish()

	return nil
}

// Rollback after Commit is a no-op so callers can always defer it.
func (t *transaction) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}

	if t.db.l != nil {
		t.db.l.LogDebugf("Memory transaction %s discarded", t.id)
	}

	t.finish()

	return nil
}

func (t *transaction) finish() {
	t.done = true
	<-t.db.sem
}

func (t *transaction) GetRoomType(_ context.Context, key inventory.RoomTypeKey) (*inventory.RoomType, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	rt, ok := t.roomTypes[key]
	if !ok {
		rt, ok = t.db.roomTypes[key]
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", key, inventory.ErrRoomTypeNotFound)
	}

	c := *rt

	return &c, nil
}

func (t *transaction) SaveRoomType(_ context.Context, roomType *inventory.RoomType) error {
	if err := t.check(); err != nil {
		return err
	}

	c := *roomType
	t.roomTypes[roomType.Key()] = &c

	return nil
}

func (t *transaction) day(k dayKey) (*inventory.Day, bool) {
	if d, ok := t.days[k]; ok {
		return d, true
	}

	d, ok := t.db.days[k]

	return d, ok
}

func (t *transaction) GetDays(_ context.Context, key inventory.RoomTypeKey, dates []time.Time) ([]*inventory.Day, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	res := make([]*inventory.Day, 0, len(dates))

	for _, date := range dates {
		if d, ok := t.day(newDayKey(key, date)); ok {
			res = append(res, d.Clone())
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })

	return res, nil
}

// LockDays needs no extra work: the open transaction already excludes all others.
func (t *transaction) LockDays(ctx context.Context, key inventory.RoomTypeKey, dates []time.Time) ([]*inventory.Day, error) {
	return t.GetDays(ctx, key, dates)
}

func (t *transaction) UpdateDays(_ context.Context, days []*inventory.Day) error {
	if err := t.check(); err != nil {
		return err
	}

	for _, d := range days {
		k := newDayKey(d.Key(), d.Date)
		if _, ok := t.day(k); !ok {
			return fmt.Errorf("%s on %s: %w", d.Key(), k.date, inventory.ErrDayNotFound)
		}
	}

	for _, d := range days {
		t.days[newDayKey(d.Key(), d.Date)] = d.Clone()
	}

	return nil
}

func (t *transaction) InsertDays(_ context.Context, days []*inventory.Day) error {
	if err := t.check(); err != nil {
		return err
	}

	for _, d := range days {
		k := newDayKey(d.Key(), d.Date)
		if _, ok := t.day(k); ok {
			return fmt.Errorf("%s on %s: %w", d.Key(), k.date, ErrDuplicate)
		}
	}

	for _, d := range days {
		c := d.Clone()
		c.Date = inventory.Date(c.Date)
		t.days[newDayKey(d.Key(), d.Date)] = c
	}

	return nil
}

// eachBlock visits staged blocks and committed ones not shadowed by them.
func (t *transaction) eachBlock(fn func(b *inventory.Block)) {
	for _, b := range t.blocks {
		fn(b)
	}

	for ref, b := range t.db.blocks {
		if _, staged := t.blocks[ref]; !staged {
			fn(b)
		}
	}
}

func (t *transaction) BlockedRooms(
	_ context.Context,
	key inventory.RoomTypeKey,
	dates []time.Time,
	at time.Time,
) (map[string]int, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[inventory.DateKey(d)] = struct{}{}
	}

	res := make(map[string]int)

	t.eachBlock(func(b *inventory.Block) {
		if b.Key() != key || !b.Counts(at) {
			return
		}

		if _, ok := wanted[inventory.DateKey(b.Date)]; ok {
			res[inventory.DateKey(b.Date)] += b.Rooms
		}
	})

	return res, nil
}

// ListBlocks returns blocks dated in [from, to). An empty room type matches the whole property.
func (t *transaction) ListBlocks(_ context.Context, key inventory.RoomTypeKey, from, to time.Time) ([]*inventory.Block, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	var res []*inventory.Block

	t.eachBlock(func(b *inventory.Block) {
		if b.PropertyID != key.PropertyID || (key.RoomTypeID != "" && b.RoomTypeID != key.RoomTypeID) {
			return
		}

		if b.Date.Before(from) || !b.Date.Before(to) {
			return
		}

		res = append(res, b.Clone())
	})

	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date) {
			return res[i].Date.Before(res[j].Date)
		}

		return res[i].Reference < res[j].Reference
	})

	return res, nil
}

func (t *transaction) InsertBlock(_ context.Context, block *inventory.Block) error {
	if err := t.check(); err != nil {
		return err
	}

	if _, ok := t.blocks[block.Reference]; ok {
		return fmt.Errorf("block %s: %w", block.Reference, ErrDuplicate)
	}

	if _, ok := t.db.blocks[block.Reference]; ok {
		return fmt.Errorf("block %s: %w", block.Reference, ErrDuplicate)
	}

	t.blocks[block.Reference] = block.Clone()

	return nil
}

func (t *transaction) LockBlock(_ context.Context, reference string) (*inventory.Block, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	b, ok := t.blocks[reference]
	if !ok {
		b, ok = t.db.blocks[reference]
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", reference, inventory.ErrBlockNotFound)
	}

	return b.Clone(), nil
}

func (t *transaction) UpdateBlock(ctx context.Context, block *inventory.Block) error {
	if _, err := t.LockBlock(ctx, block.Reference); err != nil {
		return err
	}

	t.blocks[block.Reference] = block.Clone()

	return nil
}

func (t *transaction) GetProperty(_ context.Context, id string) (*booking.Property, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	p, ok := t.properties[id]
	if !ok {
		p, ok = t.db.properties[id]
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", id, booking.ErrPropertyNotFound)
	}

	c := *p
	c.CancellationPolicy.Rules = append([]booking.CancellationRule(nil), p.CancellationPolicy.Rules...)

	return &c, nil
}

func (t *transaction) SaveProperty(_ context.Context, p *booking.Property) error {
	if err := t.check(); err != nil {
		return err
	}

	c := *p
	c.CancellationPolicy.Rules = append([]booking.CancellationRule(nil), p.CancellationPolicy.Rules...)
	t.properties[p.ID] = &c

	return nil
}

func (t *transaction) GetBooking(_ context.Context, reference string) (*booking.Booking, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	b, ok := t.bookings[reference]
	if !ok {
		b, ok = t.db.bookings[reference]
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", reference, booking.ErrBookingNotFound)
	}

	return b.Clone(), nil
}

func (t *transaction) LockBooking(ctx context.Context, reference string) (*booking.Booking, error) {
	return t.GetBooking(ctx, reference)
}

func (t *transaction) GetBookingByIdempotencyKey(ctx context.Context, key string) (*booking.Booking, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	for _, b := range t.bookings {
		if b.IdempotencyKey == key {
			return b.Clone(), nil
		}
	}

	ref, ok := t.db.idempotency[key]
	if !ok {
		return nil, booking.ErrRecordNotFound
	}

	return t.GetBooking(ctx, ref)
}

func (t *transaction) InsertBooking(_ context.Context, b *booking.Booking) error {
	if err := t.check(); err != nil {
		return err
	}

	if _, ok := t.bookings[b.Reference]; ok {
		return fmt.Errorf("booking %s: %w", b.Reference, ErrDuplicate)
	}

	if _, ok := t.db.bookings[b.Reference]; ok {
		return fmt.Errorf("booking %s: %w", b.Reference, ErrDuplicate)
	}

	t.bookings[b.Reference] = b.Clone()

	return nil
}

func (t *transaction) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	if _, err := t.GetBooking(ctx, b.Reference); err != nil {
		return err
	}

	t.bookings[b.Reference] = b.Clone()

	return nil
}

func (t *transaction) InsertPayment(_ context.Context, p *booking.Payment) error {
	if err := t.check(); err != nil {
		return err
	}

	t.db.nextPaymentID++
	p.ID = t.db.nextPaymentID

	c := *p
	t.payments = append(t.payments, &c)

	return nil
}

func (t *transaction) InsertBufferEntry(ctx context.Context, e *booking.BufferEntry) error {
	if err := t.check(); err != nil {
		return err
	}

	if e.Status == booking.BufferPendingResolution {
		if _, err := t.LockOpenBufferEntry(ctx, e.BookingReference); err == nil {
			return fmt.Errorf("open buffer entry for %s: %w", e.BookingReference, ErrDuplicate)
		}
	}

	t.db.nextBufferID++
	e.ID = t.db.nextBufferID
	t.buffer[e.ID] = e.Clone()

	return nil
}

func (t *transaction) LockBufferEntry(_ context.Context, id int64) (*booking.BufferEntry, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	e, ok := t.buffer[id]
	if !ok {
		e, ok = t.db.buffer[id]
	}

	if !ok {
		return nil, fmt.Errorf("%d: %w", id, booking.ErrBufferEntryNotFound)
	}

	return e.Clone(), nil
}

func (t *transaction) LockOpenBufferEntry(_ context.Context, reference string) (*booking.BufferEntry, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	for id, e := range t.db.buffer {
		if staged, ok := t.buffer[id]; ok {
			e = staged
		}

		if e.BookingReference == reference && e.Status == booking.BufferPendingResolution {
			return e.Clone(), nil
		}
	}

	for id, e := range t.buffer {
		if _, ok := t.db.buffer[id]; ok {
			continue
		}

		if e.BookingReference == reference && e.Status == booking.BufferPendingResolution {
			return e.Clone(), nil
		}
	}

	return nil, booking.ErrRecordNotFound
}

func (t *transaction) UpdateBufferEntry(ctx context.Context, e *booking.BufferEntry) error {
	if _, err := t.LockBufferEntry(ctx, e.ID); err != nil {
		return err
	}

	t.buffer[e.ID] = e.Clone()

	return nil
}

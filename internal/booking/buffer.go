package booking

import (
	"context"
	"fmt"
	"strings"
)

func (m *Manager) ListBufferEntries(ctx context.Context, status BufferStatus) ([]*BufferEntry, error) {
	entries, err := m.storage.ListBufferEntries(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list buffer entries: %w", err)
	}

	return entries, nil
}

type ResolveInput struct {
	Resolution string `json:"resolution"`
	ResolvedBy string `json:"resolved_by"`
}

// ResolveBufferEntry closes an entry once staff have dealt with the guest.
// It does not touch inventory or the booking.
func (m *Manager) ResolveBufferEntry(ctx context.Context, id int64, input ResolveInput) (*BufferEntry, error) {
	inputErr := newInputError()

	if strings.TrimSpace(input.Resolution) == "" {
		inputErr.addError("resolution", "describe the resolution")
	}

	if strings.TrimSpace(input.ResolvedBy) == "" {
		inputErr.addError("resolved_by", "provide staff name")
	}

	if err := inputErr.orNil(); err != nil {
		return nil, err
	}

	var entry *BufferEntry

	err := m.inTx(ctx, func(tx Tx) error {
		var err error

		entry, err = tx.LockBufferEntry(ctx, id)
		if err != nil {
			return fmt.Errorf("lock buffer entry %d: %w", id, err)
		}

		if entry.Status == BufferResolved {
			return fmt.Errorf("buffer entry %d: %w", id, ErrBufferEntryResolved)
		}

		now := m.now()
		entry.Status = BufferResolved
		entry.Resolution = input.Resolution
		entry.ResolvedBy = input.ResolvedBy
		entry.ResolvedAt = &now

		return tx.UpdateBufferEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (m *Manager) notifyBuffer(ctx context.Context, entry *BufferEntry, b *Booking) {
	if m.notifier == nil {
		m.l.LogWarnf("Buffer entry %d for %s needs staff attention, no notifier configured", entry.ID, b.Reference)

		return
	}

	if err := m.notifier.BufferEntryCreated(ctx, entry, b); err != nil {
		m.l.LogErrorf("Could not notify staff about buffer entry %d: %v", entry.ID, err)
	}
}

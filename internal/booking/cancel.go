package booking

import (
	"context"
	"fmt"
)

type InventoryEffect string

const (
	EffectRestored InventoryEffect = "RESTORED"
	EffectReleased InventoryEffect = "RELEASED"
	EffectNone     InventoryEffect = "NONE"
)

type CancellationResult struct {
	Booking   *Booking        `json:"booking"`
	Quote     *Quote          `json:"quote"`
	OldStatus Status          `json:"old_status"`
	Effect    InventoryEffect `json:"inventory_effect"`
}

// QuoteCancellation computes what Cancel would refund right now without changing anything.
func (m *Manager) QuoteCancellation(ctx context.Context, reference string) (*Quote, error) {
	var q *Quote

	err := m.inTx(ctx, func(tx Tx) error {
		b, err := tx.GetBooking(ctx, reference)
		if err != nil {
			return fmt.Errorf("get booking %s: %w", reference, err)
		}

		if b.Status == StatusCancelled {
			return &TransitionError{Reference: b.Reference, From: b.Status, Action: ActionCancel}
		}

		property, err := tx.GetProperty(ctx, b.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", b.PropertyID, err)
		}

		q, err = quote(property, b, m.now())

		return err
	})
	if err != nil {
		return nil, err
	}

	return q, nil
}

// Cancel applies the property's refund rules, returns the rooms and records a pending refund.
func (m *Manager) Cancel(ctx context.Context, reference, reason string) (*CancellationResult, error) {
	var result *CancellationResult

	err := m.inTx(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, reference)
		if err != nil {
			return fmt.Errorf("lock booking %s: %w", reference, err)
		}

		property, err := tx.GetProperty(ctx, b.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", b.PropertyID, err)
		}

		//nolint:exhaustruct
		result = &CancellationResult{OldStatus: b.Status}

		switch b.Status {
		case StatusCancelled:
			return &TransitionError{Reference: b.Reference, From: b.Status, Action: ActionCancel}
		case StatusConfirmed:
			if err := m.ledger.Restore(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
				return fmt.Errorf("restore inventory: %w", err)
			}

			result.Effect = EffectRestored
		case StatusPreConfirmed:
			if err := m.ledger.Release(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
				return fmt.Errorf("release hold: %w", err)
			}

			result.Effect = EffectReleased
		case StatusPending:
			// The hold was already released by expiry.
			result.Effect = EffectNone
		default:
			return fmt.Errorf("booking %s has unknown status %q: %w", b.Reference, b.Status, ErrLogic)
		}

		now := m.now()

		q, err := quote(property, b, now)
		if err != nil {
			return err
		}

		b.Status = StatusCancelled
		b.CancelledAt = &now
		b.CancellationReason = reason
		b.RefundAmount = q.RefundAmount
		b.PenaltyAmount = q.PenaltyAmount
		b.RefundStatus = RefundPending
		b.UpdatedAt = now

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		result.Booking = b
		result.Quote = q

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.WithField("reference", reference).LogInfo(
		"Booking cancelled from %s, refund %.2f (%.0f%%), inventory %s",
		result.OldStatus,
		result.Quote.RefundAmount,
		result.Quote.RefundPercentage,
		result.Effect,
	)

	return result, nil
}

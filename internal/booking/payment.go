package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avstrong/roomledger/internal/inventory"
)

type PaymentInput struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
	Note   string  `json:"note"`
}

func (in *PaymentInput) validate() error {
	inputErr := newInputError()

	if in.Amount <= 0 {
		inputErr.addError("amount", "amount must be positive")
	}

	if strings.TrimSpace(in.Method) == "" {
		inputErr.addError("method", "provide payment method")
	}

	return inputErr.orNil()
}

type PaymentOutcome string

const (
	OutcomeConfirmed     PaymentOutcome = "CONFIRMED"
	OutcomeLateConfirmed PaymentOutcome = "LATE_CONFIRMED"
	OutcomeBuffered      PaymentOutcome = "BUFFERED"
	OutcomeBalance       PaymentOutcome = "BALANCE_RECORDED"
)

type PaymentResult struct {
	Booking     *Booking       `json:"booking"`
	Payment     *Payment       `json:"payment"`
	OldStatus   Status         `json:"old_status"`
	Outcome     PaymentOutcome `json:"outcome"`
	BufferEntry *BufferEntry   `json:"buffer_entry,omitempty"`
}

// ConfirmPayment records a payment and moves the booking accordingly.
// A hold whose window already closed is expired first, the same transition the sweeper
// runs, so a payment racing the next sweep is treated as a late payment.
//
//nolint:funlen,cyclop // one branch per status
func (m *Manager) ConfirmPayment(ctx context.Context, reference string, input PaymentInput) (*PaymentResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var (
		result      *PaymentResult
		notifyStaff bool
	)

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
		result = &PaymentResult{OldStatus: b.Status}
		today := inventory.Date(m.now())

		if b.Status == StatusPreConfirmed && b.HoldExpired(today) {
			if err := m.expire(ctx, tx, b); err != nil {
				return err
			}
		}

		switch b.Status {
		case StatusCancelled:
			return &TransitionError{Reference: b.Reference, From: b.Status, Action: ActionPay}
		case StatusPreConfirmed:
			if err := m.ledger.Release(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
				return fmt.Errorf("release hold: %w", err)
			}

			if err := m.ledger.Deduct(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
				return fmt.Errorf("deduct inventory: %w", err)
			}

			b.Status = StatusConfirmed
			result.Outcome = OutcomeConfirmed
		case StatusPending:
			entry, created, err := m.latePayment(ctx, tx, b, input.Amount)
			if err != nil {
				return err
			}

			if entry != nil {
				result.BufferEntry = entry
				notifyStaff = created
				result.Outcome = OutcomeBuffered
			} else {
				b.Status = StatusConfirmed
				result.Outcome = OutcomeLateConfirmed
			}
		case StatusConfirmed:
			result.Outcome = OutcomeBalance
		default:
			return fmt.Errorf("booking %s has unknown status %q: %w", b.Reference, b.Status, ErrLogic)
		}

		now := m.now()

		//nolint:exhaustruct
		payment := &Payment{
			BookingReference: b.Reference,
			Amount:           inventory.RoundMoney(input.Amount),
			Method:           input.Method,
			Status:           PaymentCompleted,
			Note:             input.Note,
			CreatedAt:        now,
		}

		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		b.AmountPaid = inventory.RoundMoney(b.AmountPaid + payment.Amount)
		b.PaymentStatus = paymentStatusFor(b.AmountPaid, b.TotalPrice, property.RequiredDeposit(b.TotalPrice))
		b.UpdatedAt = now

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		result.Booking = b
		result.Payment = payment

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.WithField("reference", reference).LogInfo(
		"Payment of %.2f recorded, %s -> %s (%s)",
		result.Payment.Amount,
		result.OldStatus,
		result.Booking.Status,
		result.Outcome,
	)

	if notifyStaff {
		m.notifyBuffer(ctx, result.BufferEntry, result.Booking)
	}

	return result, nil
}

// latePayment sells the rooms again if they are still free, otherwise it parks the guest in the buffer.
func (m *Manager) latePayment(ctx context.Context, tx Tx, b *Booking, amount float64) (*BufferEntry, bool, error) {
	if _, err := m.ledger.Lock(ctx, tx, b.Key(), b.Stay()); err != nil {
		return nil, false, err
	}

	_, err := m.calc.Check(ctx, tx, inventory.Query{Key: b.Key(), Stay: b.Stay(), Rooms: b.Rooms})

	switch insufficient := inventory.IsInsufficientInventoryError(err); {
	case err == nil:
		if err := m.ledger.Deduct(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
			return nil, false, fmt.Errorf("deduct inventory: %w", err)
		}

		return nil, false, nil
	case insufficient != nil:
		return m.bufferLatePayment(ctx, tx, b, amount, insufficient)
	default:
		return nil, false, fmt.Errorf("check availability: %w", err)
	}
}

// bufferLatePayment keeps one open entry per booking. Repeated late payments only raise its amount.
func (m *Manager) bufferLatePayment(
	ctx context.Context,
	tx Tx,
	b *Booking,
	amount float64,
	insufficient *inventory.InsufficientInventoryError,
) (*BufferEntry, bool, error) {
	open, err := tx.LockOpenBufferEntry(ctx, b.Reference)

	switch {
	case err == nil:
		open.AmountPaid = inventory.RoundMoney(b.AmountPaid + amount)

		if err := tx.UpdateBufferEntry(ctx, open); err != nil {
			return nil, false, fmt.Errorf("update buffer entry: %w", err)
		}

		return open, false, nil
	case !errors.Is(err, ErrRecordNotFound):
		return nil, false, fmt.Errorf("lock open buffer entry: %w", err)
	}

	//nolint:exhaustruct
	entry := &BufferEntry{
		BookingReference: b.Reference,
		PropertyID:       b.PropertyID,
		RoomTypeID:       b.RoomTypeID,
		CheckIn:          b.CheckIn,
		CheckOut:         b.CheckOut,
		Rooms:            b.Rooms,
		AmountPaid:       inventory.RoundMoney(b.AmountPaid + amount),
		Reason:           fmt.Sprintf("late payment after resale: %v", insufficient),
		Status:           BufferPendingResolution,
		CreatedAt:        m.now(),
	}

	if err := tx.InsertBufferEntry(ctx, entry); err != nil {
		return nil, false, fmt.Errorf("save buffer entry: %w", err)
	}

	return entry, true, nil
}

type ExpiryResult struct {
	Reference         string `json:"reference"`
	OldStatus         Status `json:"old_status"`
	NewStatus         Status `json:"new_status"`
	InventoryReleased bool   `json:"inventory_released"`
}

// ExpireHold moves an unpaid hold past its deadline to PENDING and frees its rooms.
// Bookings that were paid or cancelled in the meantime are left alone.
func (m *Manager) ExpireHold(ctx context.Context, reference string) (*ExpiryResult, error) {
	var result *ExpiryResult

	err := m.inTx(ctx, func(tx Tx) error {
		b, err := tx.LockBooking(ctx, reference)
		if err != nil {
			return fmt.Errorf("lock booking %s: %w", reference, err)
		}

		//nolint:exhaustruct
		result = &ExpiryResult{Reference: b.Reference, OldStatus: b.Status, NewStatus: b.Status}

		today := inventory.Date(m.now())
		if b.Status != StatusPreConfirmed || b.PaymentStatus != PaymentUnpaid || !b.HoldExpired(today) {
			return nil
		}

		if err := m.expire(ctx, tx, b); err != nil {
			return err
		}

		if err := tx.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		result.NewStatus = b.Status
		result.InventoryReleased = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (m *Manager) expire(ctx context.Context, tx Tx, b *Booking) error {
	if err := m.ledger.Release(ctx, tx, b.Key(), b.Stay(), b.Rooms); err != nil {
		return fmt.Errorf("release expired hold of %s: %w", b.Reference, err)
	}

	b.Status = StatusPending
	b.PaymentWindowExpires = nil
	b.UpdatedAt = m.now()

	return nil
}

// ExpiredHolds lists references the sweeper should expire today.
func (m *Manager) ExpiredHolds(ctx context.Context) ([]string, error) {
	refs, err := m.storage.ExpiredHolds(ctx, inventory.Date(m.now()))
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}

	return refs, nil
}

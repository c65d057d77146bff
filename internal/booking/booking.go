package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
)

type Manager struct {
	l        *logger.Logger
	storage  storage
	refs     referenceGenerator
	notifier Notifier
	ledger   *inventory.Ledger
	calc     *inventory.Calculator
	now      func() time.Time
}

type Option func(m *Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

func New(l *logger.Logger, storage storage, refs referenceGenerator, opts ...Option) *Manager {
	//nolint:exhaustruct
	m := &Manager{
		l:       l,
		storage: storage,
		refs:    refs,
		ledger:  inventory.NewLedger(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(m)
	}

	m.calc = inventory.NewCalculator(m.now)

	return m
}

type CreateInput struct {
	PropertyID      string    `json:"property_id"`
	RoomTypeID      string    `json:"room_type_id"`
	CheckIn         time.Time `json:"check_in"`
	CheckOut        time.Time `json:"check_out"`
	Rooms           int       `json:"rooms"`
	Guests          int       `json:"guests"`
	Guest           Guest     `json:"guest"`
	TotalPrice      float64   `json:"total_price"`
	SpecialRequests string    `json:"special_requests"`
}

type CreateResult struct {
	Booking      *Booking          `json:"booking"`
	Availability *inventory.Result `json:"availability,omitempty"`
	// Replayed is set when the idempotency key matched an earlier booking.
	Replayed bool `json:"replayed"`
}

func (in *CreateInput) validate() error {
	inputErr := newInputError()

	if in.PropertyID == "" {
		inputErr.addError("property_id", "provide property_id")
	}

	if in.RoomTypeID == "" {
		inputErr.addError("room_type_id", "provide room_type_id")
	}

	if in.CheckIn.IsZero() || in.CheckOut.IsZero() {
		inputErr.addError("check_in", "provide check_in and check_out")
	} else if !inventory.Date(in.CheckOut).After(inventory.Date(in.CheckIn)) {
		inputErr.addError("check_out", "check_out must be after check_in")
	}

	if in.Rooms < 1 {
		inputErr.addError("rooms", "book at least one room")
	}

	if in.Guests < 0 {
		inputErr.addError("guests", "guests must not be negative")
	}

	if strings.TrimSpace(in.Guest.Name) == "" {
		inputErr.addError("guest.name", "provide guest name")
	}

	if in.Guest.Email == "" && in.Guest.Phone == "" {
		inputErr.addError("guest", "provide guest email or phone")
	}

	if in.Guest.Email != "" {
		if _, err := mail.ParseAddress(in.Guest.Email); err != nil {
			inputErr.addError("guest.email", "provide valid email")
		}
	}

	if in.TotalPrice < 0 {
		inputErr.addError("total_price", "total_price must not be negative")
	}

	return inputErr.orNil()
}

func (in *CreateInput) stay() inventory.Stay {
	return inventory.NewStay(in.CheckIn, in.CheckOut)
}

func (in *CreateInput) key() inventory.RoomTypeKey {
	return inventory.RoomTypeKey{PropertyID: in.PropertyID, RoomTypeID: in.RoomTypeID}
}

func daysBetween(from, to time.Time) int {
	return int(inventory.Date(to).Sub(inventory.Date(from)).Hours() / 24) //nolint:gomnd
}

func (m *Manager) checkPolicies(in *CreateInput, property *Property, roomType *inventory.RoomType) error {
	stay := in.stay()
	nights := stay.NightsCount()
	leadDays := daysBetween(m.now(), stay.CheckIn)

	switch {
	case leadDays < 0:
		return &PolicyError{Rule: "check_in_in_past", Message: "check-in date has already passed"}
	case roomType.MinStayNights > 0 && nights < roomType.MinStayNights:
		return &PolicyError{
			Rule:    "min_stay",
			Message: fmt.Sprintf("stay of %d nights is shorter than the minimum of %d", nights, roomType.MinStayNights),
		}
	case roomType.MaxStayNights > 0 && nights > roomType.MaxStayNights:
		return &PolicyError{
			Rule:    "max_stay",
			Message: fmt.Sprintf("stay of %d nights is longer than the maximum of %d", nights, roomType.MaxStayNights),
		}
	case in.Rooms > roomType.TotalRooms:
		return &PolicyError{
			Rule:    "room_count",
			Message: fmt.Sprintf("%s has only %d rooms", roomType.Name, roomType.TotalRooms),
		}
	case roomType.MaxOccupancy > 0 && in.Guests > roomType.MaxOccupancy*in.Rooms:
		return &PolicyError{
			Rule:    "occupancy",
			Message: fmt.Sprintf("%d guests exceed %d per room", in.Guests, roomType.MaxOccupancy),
		}
	case leadDays < roomType.MinLeadDays:
		return &PolicyError{
			Rule:    "lead_time",
			Message: fmt.Sprintf("book at least %d days ahead", roomType.MinLeadDays),
		}
	case roomType.MaxAdvanceDays > 0 && leadDays > roomType.MaxAdvanceDays:
		return &PolicyError{
			Rule:    "advance_limit",
			Message: fmt.Sprintf("book at most %d days ahead", roomType.MaxAdvanceDays),
		}
	case property.RequiresPrepayment && leadDays <= property.PaymentWindowNights:
		return &PolicyError{
			Rule: "payment_window",
			Message: fmt.Sprintf(
				"check-in in %d days leaves no room for the %d night payment window",
				leadDays,
				property.PaymentWindowNights,
			),
		}
	}

	return nil
}

// CreateBooking re-checks availability and takes inventory in one transaction.
// Prepayment properties get a hold with a payment deadline, others sell the rooms outright.
//
//nolint:funlen,cyclop // linear flow
func (m *Manager) CreateBooking(ctx context.Context, input *CreateInput) (*CreateResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	idempotencyKey, hasKey := IdempotencyKeyFromContext(ctx)

	var result *CreateResult

	err := m.inTx(ctx, func(tx Tx) error {
		if hasKey {
			existing, err := tx.GetBookingByIdempotencyKey(ctx, idempotencyKey)
			if err != nil && !errors.Is(err, ErrRecordNotFound) {
				return fmt.Errorf("get booking by idempotency key: %w", err)
			}

			if err == nil {
				result = &CreateResult{Booking: existing, Availability: nil, Replayed: true}

				return nil
			}
		}

		property, err := tx.GetProperty(ctx, input.PropertyID)
		if err != nil {
			return fmt.Errorf("get property %s: %w", input.PropertyID, err)
		}

		key := input.key()
		stay := input.stay()

		roomType, err := tx.GetRoomType(ctx, key)
		if err != nil {
			return fmt.Errorf("get room type %s: %w", key, err)
		}

		if err := m.checkPolicies(input, property, roomType); err != nil {
			return err
		}

		if _, err := m.ledger.Lock(ctx, tx, key, stay); err != nil {
			return err
		}

		availability, err := m.calc.Check(ctx, tx, inventory.Query{Key: key, Stay: stay, Rooms: input.Rooms})
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}

		ref, err := m.refs.NextReference(ctx, property.ReferencePrefix(), stay.CheckIn)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNextID, err)
		}

		now := m.now()

		//nolint:exhaustruct
		b := &Booking{
			Reference:       ref,
			PropertyID:      input.PropertyID,
			RoomTypeID:      input.RoomTypeID,
			CheckIn:         stay.CheckIn,
			CheckOut:        stay.CheckOut,
			Rooms:           input.Rooms,
			Guests:          input.Guests,
			Guest:           input.Guest,
			TotalPrice:      input.TotalPrice,
			PaymentStatus:   PaymentUnpaid,
			SpecialRequests: input.SpecialRequests,
			IdempotencyKey:  idempotencyKey,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if b.TotalPrice == 0 {
			b.TotalPrice = availability.TotalPrice
		}

		if property.RequiresPrepayment {
			if err := m.ledger.Hold(ctx, tx, key, stay, b.Rooms); err != nil {
				return fmt.Errorf("hold inventory: %w", err)
			}

			expires := property.PaymentWindowExpires(stay.CheckIn)
			b.Status = StatusPreConfirmed
			b.PaymentWindowExpires = &expires
		} else {
			if err := m.ledger.Deduct(ctx, tx, key, stay, b.Rooms); err != nil {
				return fmt.Errorf("deduct inventory: %w", err)
			}

			b.Status = StatusConfirmed
		}

		if err := tx.InsertBooking(ctx, b); err != nil {
			return fmt.Errorf("save booking: %w", err)
		}

		result = &CreateResult{Booking: b, Availability: availability, Replayed: false}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		m.l.WithField("reference", result.Booking.Reference).LogInfo(
			"Booking created as %s for %s %s x%d",
			result.Booking.Status,
			result.Booking.Key(),
			result.Booking.Stay(),
			result.Booking.Rooms,
		)
	}

	return result, nil
}

type Details struct {
	Booking  *Booking   `json:"booking"`
	Payments []*Payment `json:"payments"`
}

func (m *Manager) GetBooking(ctx context.Context, reference string) (*Details, error) {
	b, err := m.storage.GetBooking(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", reference, err)
	}

	payments, err := m.storage.ListPayments(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", reference, err)
	}

	return &Details{Booking: b, Payments: payments}, nil
}

func (m *Manager) inTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := m.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback booking transaction after panic %v", p)
			}

			m.l.LogInfo("Transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback booking transaction after error %v: %v", err.Error(), rbErr)
			}

			m.l.LogDebugf("Transaction has been roll backed after error")

			return
		}

		if err = tx.Commit(ctx); err != nil {
			m.l.LogErrorf("Could not commit booking transaction, err %v", err.Error())

			err = fmt.Errorf("commit: %w", err)

			return
		}

		m.l.LogDebugf("Transaction has been committed")
	}()

	return fn(tx)
}

package booking

import (
	"strings"
	"time"

	"github.com/avstrong/roomledger/internal/inventory"
)

type Status string

const (
	StatusPreConfirmed Status = "PRE_CONFIRMED"
	StatusConfirmed    Status = "CONFIRMED"
	StatusPending      Status = "PENDING"
	StatusCancelled    Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "UNPAID"
	PaymentPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentDepositPaid   PaymentStatus = "DEPOSIT_PAID"
	PaymentFullyPaid     PaymentStatus = "FULLY_PAID"
)

type RefundStatus string

const (
	RefundNone    RefundStatus = ""
	RefundPending RefundStatus = "PENDING"
)

type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Booking struct {
	Reference            string        `json:"reference"`
	PropertyID           string        `json:"property_id"`
	RoomTypeID           string        `json:"room_type_id"`
	CheckIn              time.Time     `json:"check_in"`
	CheckOut             time.Time     `json:"check_out"`
	Rooms                int           `json:"rooms"`
	Guests               int           `json:"guests"`
	Guest                Guest         `json:"guest"`
	TotalPrice           float64       `json:"total_price"`
	AmountPaid           float64       `json:"amount_paid"`
	Status               Status        `json:"status"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	PaymentWindowExpires *time.Time    `json:"payment_window_expires,omitempty"`
	SpecialRequests      string        `json:"special_requests,omitempty"`
	IdempotencyKey       string        `json:"-"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	CancelledAt          *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason   string        `json:"cancellation_reason,omitempty"`
	RefundAmount         float64       `json:"refund_amount"`
	PenaltyAmount        float64       `json:"penalty_amount"`
	RefundStatus         RefundStatus  `json:"refund_status,omitempty"`
}

func (b *Booking) Key() inventory.RoomTypeKey {
	return inventory.RoomTypeKey{PropertyID: b.PropertyID, RoomTypeID: b.RoomTypeID}
}

func (b *Booking) Stay() inventory.Stay {
	return inventory.Stay{CheckIn: b.CheckIn, CheckOut: b.CheckOut}
}

// HoldExpired reports whether the payment window closed on or before today.
func (b *Booking) HoldExpired(today time.Time) bool {
	return b.PaymentWindowExpires != nil && !today.Before(*b.PaymentWindowExpires)
}

func (b *Booking) Clone() *Booking {
	c := *b

	return &c
}

type PolicyType string

const (
	PolicyFlexible PolicyType = "FLEXIBLE"
	PolicyModerate PolicyType = "MODERATE"
	PolicyStrict   PolicyType = "STRICT"
)

type CancellationRule struct {
	WindowHours      float64 `json:"window_hours"`
	RefundPercentage float64 `json:"refund_percentage"`
	Description      string  `json:"description"`
}

type CancellationPolicy struct {
	Type  PolicyType         `json:"type"`
	Rules []CancellationRule `json:"rules"`
}

type Property struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Code prefixes booking references. Defaults to the upper-cased ID.
	Code                string             `json:"code"`
	RequiresPrepayment  bool               `json:"requires_prepayment"`
	PaymentWindowNights int                `json:"payment_window_nights"`
	DepositPercentage   float64            `json:"deposit_percentage"`
	DepositAmount       float64            `json:"deposit_amount"`
	CheckInTime         string             `json:"check_in_time"`
	CancellationPolicy  CancellationPolicy `json:"cancellation_policy"`
}

func (p *Property) ReferencePrefix() string {
	if p.Code != "" {
		return p.Code
	}

	return strings.ToUpper(p.ID)
}

type PaymentState string

const PaymentCompleted PaymentState = "COMPLETED"

type Payment struct {
	ID               int64        `json:"id"`
	BookingReference string       `json:"booking_reference"`
	Amount           float64      `json:"amount"`
	Method           string       `json:"method"`
	Status           PaymentState `json:"status"`
	Note             string       `json:"note,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
}

type BufferStatus string

const (
	BufferPendingResolution BufferStatus = "PENDING_RESOLUTION"
	BufferResolved          BufferStatus = "RESOLVED"
)

// BufferEntry records a paid guest whose room was sold to someone else.
// Only staff resolve it.
type BufferEntry struct {
	ID               int64        `json:"id"`
	BookingReference string       `json:"booking_reference"`
	PropertyID       string       `json:"property_id"`
	RoomTypeID       string       `json:"room_type_id"`
	CheckIn          time.Time    `json:"check_in"`
	CheckOut         time.Time    `json:"check_out"`
	Rooms            int          `json:"rooms"`
	AmountPaid       float64      `json:"amount_paid"`
	Reason           string       `json:"reason"`
	Status           BufferStatus `json:"status"`
	Resolution       string       `json:"resolution,omitempty"`
	ResolvedBy       string       `json:"resolved_by,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	ResolvedAt       *time.Time   `json:"resolved_at,omitempty"`
}

func (e *BufferEntry) Clone() *BufferEntry {
	c := *e

	return &c
}

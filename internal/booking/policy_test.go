package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectRule(t *testing.T) {
	rules := []CancellationRule{
		{WindowHours: 0, RefundPercentage: 0},
		{WindowHours: 24, RefundPercentage: 100},
		{WindowHours: 6, RefundPercentage: 25},
	}

	tests := []struct {
		name  string
		hours float64
		want  float64
		found bool
	}{
		{name: "well ahead", hours: 72, want: 100, found: true},
		{name: "exactly at window", hours: 24, want: 100, found: true},
		{name: "between windows", hours: 10, want: 25, found: true},
		{name: "same day", hours: 2, want: 0, found: true},
		{name: "after check-in", hours: -3, want: 0, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := SelectRule(rules, tt.hours)
			assert.Equal(t, tt.found, ok)
			assert.InDelta(t, tt.want, rule.RefundPercentage, 0.001)
		})
	}
}

func TestPaymentStatusFor(t *testing.T) {
	tests := []struct {
		paid, total, deposit float64
		want                 PaymentStatus
	}{
		{paid: 0, total: 300, deposit: 90, want: PaymentUnpaid},
		{paid: 50, total: 300, deposit: 90, want: PaymentPartiallyPaid},
		{paid: 90, total: 300, deposit: 90, want: PaymentDepositPaid},
		{paid: 299.99, total: 300, deposit: 90, want: PaymentDepositPaid},
		{paid: 300, total: 300, deposit: 90, want: PaymentFullyPaid},
		{paid: 120, total: 300, deposit: 0, want: PaymentPartiallyPaid},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, paymentStatusFor(tt.paid, tt.total, tt.deposit), "paid %v of %v", tt.paid, tt.total)
	}
}

func TestRequiredDeposit(t *testing.T) {
	//nolint:exhaustruct
	assert.InDelta(t, 90, (&Property{DepositPercentage: 30, DepositAmount: 500}).RequiredDeposit(300), 0.001)
	//nolint:exhaustruct
	assert.InDelta(t, 50, (&Property{DepositAmount: 50}).RequiredDeposit(300), 0.001)
	//nolint:exhaustruct
	assert.InDelta(t, 300, (&Property{DepositAmount: 500}).RequiredDeposit(300), 0.001)
	//nolint:exhaustruct
	assert.Zero(t, (&Property{}).RequiredDeposit(300))
}

func TestCheckInMoment(t *testing.T) {
	date := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	//nolint:exhaustruct
	moment, err := (&Property{CheckInTime: "14:30"}).CheckInMoment(date)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 10, 14, 30, 0, 0, time.UTC), moment)

	//nolint:exhaustruct
	moment, err = (&Property{}).CheckInMoment(date)
	require.NoError(t, err)
	assert.Equal(t, date, moment)

	//nolint:exhaustruct
	_, err = (&Property{ID: "x", CheckInTime: "2pm"}).CheckInMoment(date)
	assert.ErrorIs(t, err, ErrLogic)
}

func TestQuoteUsesDefaultPolicy(t *testing.T) {
	//nolint:exhaustruct
	property := &Property{ID: "seaview", CheckInTime: "14:00"}
	//nolint:exhaustruct
	b := &Booking{Reference: "R1", CheckIn: time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), TotalPrice: 250}

	q, err := quote(property, b, time.Date(2026, 5, 8, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, PolicyModerate, q.PolicyType)
	assert.InDelta(t, 48, q.HoursUntilCheckIn, 0.001)
	assert.InDelta(t, 250, q.RefundAmount, 0.001)
	assert.Zero(t, q.PenaltyAmount)

	q, err = quote(property, b, time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, q.RefundAmount)
	assert.InDelta(t, 250, q.PenaltyAmount, 0.001)
}

func TestTransitionErrorWrapsAlreadyCancelled(t *testing.T) {
	err := error(&TransitionError{Reference: "R1", From: StatusCancelled, Action: ActionCancel})
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	err = &TransitionError{Reference: "R1", From: StatusCancelled, Action: ActionPay}
	assert.NotErrorIs(t, err, ErrAlreadyCancelled)
	assert.NotNil(t, IsTransitionError(err))
}

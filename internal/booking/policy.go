package booking

import (
	"fmt"
	"time"

	"github.com/avstrong/roomledger/internal/inventory"
)

// DefaultPolicy applies to properties without rules of their own.
func DefaultPolicy() CancellationPolicy {
	return CancellationPolicy{
		Type: PolicyModerate,
		Rules: []CancellationRule{
			{WindowHours: 24, RefundPercentage: 100, Description: "Free cancellation up to 24 hours before check-in"},
			{WindowHours: 0, RefundPercentage: 0, Description: "No refund for same-day cancellation or no-show"},
		},
	}
}

func (p *Property) policy() CancellationPolicy {
	if len(p.CancellationPolicy.Rules) == 0 {
		return DefaultPolicy()
	}

	return p.CancellationPolicy
}

// SelectRule picks the most generous rule whose window has not yet closed.
// Rules are not assumed to be sorted.
func SelectRule(rules []CancellationRule, hoursUntilCheckIn float64) (CancellationRule, bool) {
	var (
		best  CancellationRule
		found bool
	)

	for _, rule := range rules {
		if rule.WindowHours > hoursUntilCheckIn {
			continue
		}

		if !found || rule.RefundPercentage > best.RefundPercentage {
			best = rule
			found = true
		}
	}

	return best, found
}

type Quote struct {
	Reference         string            `json:"reference"`
	PolicyType        PolicyType        `json:"policy_type"`
	HoursUntilCheckIn float64           `json:"hours_until_check_in"`
	Rule              *CancellationRule `json:"rule,omitempty"`
	RefundPercentage  float64           `json:"refund_percentage"`
	TotalPrice        float64           `json:"total_price"`
	RefundAmount      float64           `json:"refund_amount"`
	PenaltyAmount     float64           `json:"penalty_amount"`
}

func quote(property *Property, b *Booking, now time.Time) (*Quote, error) {
	checkIn, err := property.CheckInMoment(b.CheckIn)
	if err != nil {
		return nil, err
	}

	policy := property.policy()
	hours := checkIn.Sub(now).Hours()

	//nolint:exhaustruct
	q := &Quote{
		Reference:         b.Reference,
		PolicyType:        policy.Type,
		HoursUntilCheckIn: hours,
		TotalPrice:        b.TotalPrice,
	}

	if rule, ok := SelectRule(policy.Rules, hours); ok {
		q.Rule = &rule
		q.RefundPercentage = rule.RefundPercentage
	}

	q.RefundAmount = inventory.RoundMoney(b.TotalPrice * q.RefundPercentage / 100) //nolint:gomnd
	q.PenaltyAmount = inventory.RoundMoney(b.TotalPrice - q.RefundAmount)

	return q, nil
}

// CheckInMoment is the check-in date at the property's check-in time, UTC.
func (p *Property) CheckInMoment(date time.Time) (time.Time, error) {
	date = inventory.Date(date)

	if p.CheckInTime == "" {
		return date, nil
	}

	clock, err := time.Parse("15:04", p.CheckInTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("property %s check-in time %q: %w", p.ID, p.CheckInTime, ErrLogic)
	}

	return date.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), nil
}

// RequiredDeposit is zero when the property asks for no deposit.
func (p *Property) RequiredDeposit(total float64) float64 {
	switch {
	case p.DepositPercentage > 0:
		return inventory.RoundMoney(total * p.DepositPercentage / 100) //nolint:gomnd
	case p.DepositAmount > 0:
		return min(p.DepositAmount, total)
	default:
		return 0
	}
}

func paymentStatusFor(paid, total, deposit float64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentUnpaid
	case paid >= total:
		return PaymentFullyPaid
	case deposit > 0 && paid >= deposit:
		return PaymentDepositPaid
	default:
		return PaymentPartiallyPaid
	}
}

// PaymentWindowExpires is the last moment a prepayment hold stays valid.
func (p *Property) PaymentWindowExpires(checkIn time.Time) time.Time {
	return inventory.Date(checkIn).AddDate(0, 0, -p.PaymentWindowNights)
}

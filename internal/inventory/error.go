package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRoomTypeNotFound   = errors.New("room type not found")
	ErrDayNotFound        = errors.New("inventory day not found")
	ErrBlockNotFound      = errors.New("block not found")
	ErrLedgerInconsistent = errors.New("ledger inconsistent")
	ErrInvalidStay        = errors.New("check-out must be after check-in")
	ErrInvalidCount       = errors.New("room count must be positive")
	ErrBlockNotActive     = errors.New("block is not active")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoomTypeNotFound) ||
		errors.Is(err, ErrDayNotFound) ||
		errors.Is(err, ErrBlockNotFound)
}

func dayNotFound(key RoomTypeKey, date time.Time) error {
	return fmt.Errorf("%s on %s: %w", key, DateKey(date), ErrDayNotFound)
}

// InsufficientInventoryError reports the first night that cannot serve the request.
type InsufficientInventoryError struct {
	Date      time.Time
	Needed    int
	Available int
}

func (e *InsufficientInventoryError) Shortfall() int {
	return e.Needed - e.Available
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf(
		"insufficient inventory on %s: needed %d, available %d, short by %d",
		DateKey(e.Date),
		e.Needed,
		e.Available,
		e.Shortfall(),
	)
}

func IsInsufficientInventoryError(err error) *InsufficientInventoryError {
	if err == nil {
		return nil
	}

	var insufficientErr *InsufficientInventoryError

	if errors.As(err, &insufficientErr) {
		return insufficientErr
	}

	return nil
}

type PricingUnavailableError struct {
	Key  RoomTypeKey
	Date time.Time
}

func (e *PricingUnavailableError) Error() string {
	return fmt.Sprintf("no price for %s on %s", e.Key, DateKey(e.Date))
}

func IsPricingUnavailableError(err error) *PricingUnavailableError {
	if err == nil {
		return nil
	}

	var pricingErr *PricingUnavailableError

	if errors.As(err, &pricingErr) {
		return pricingErr
	}

	return nil
}

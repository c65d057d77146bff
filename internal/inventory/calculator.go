package inventory

import (
	"context"
	"fmt"
	"math"
	"time"
)

type Query struct {
	Key   RoomTypeKey
	Stay  Stay
	Rooms int
}

type NightPrice struct {
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
	Available int       `json:"available"`
}

type Result struct {
	Key          RoomTypeKey  `json:"key"`
	Stay         Stay         `json:"stay"`
	Rooms        int          `json:"rooms"`
	Nights       int          `json:"nights"`
	MinAvailable int          `json:"min_available"`
	PerNight     []NightPrice `json:"per_night"`
	// TotalPrice covers every night for all requested rooms.
	TotalPrice float64 `json:"total_price"`
}

// Calculator answers how many rooms can still be sold. Sold rooms are already
// out of AvailableRooms; holds and active blocks are subtracted here.
type Calculator struct {
	now func() time.Time
}

func NewCalculator(now func() time.Time) *Calculator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Calculator{now: now}
}

func (c *Calculator) Check(ctx context.Context, tx Reader, q Query) (*Result, error) {
	if q.Rooms <= 0 {
		return nil, ErrInvalidCount
	}

	nights := q.Stay.Nights()
	if len(nights) == 0 {
		return nil, ErrInvalidStay
	}

	roomType, err := tx.GetRoomType(ctx, q.Key)
	if err != nil {
		return nil, fmt.Errorf("get room type %s: %w", q.Key, err)
	}

	days, err := tx.GetDays(ctx, q.Key, nights)
	if err != nil {
		return nil, fmt.Errorf("get days %s: %w", q.Stay, err)
	}

	blocked, err := tx.BlockedRooms(ctx, q.Key, nights, c.now())
	if err != nil {
		return nil, fmt.Errorf("get blocked rooms %s: %w", q.Stay, err)
	}

	byDate := make(map[string]*Day, len(days))
	for _, day := range days {
		byDate[DateKey(day.Date)] = day
	}

	//nolint:exhaustruct
	res := &Result{
		Key:          q.Key,
		Stay:         q.Stay,
		Rooms:        q.Rooms,
		Nights:       len(nights),
		MinAvailable: math.MaxInt,
		PerNight:     make([]NightPrice, 0, len(nights)),
	}

	for _, night := range nights {
		day, ok := byDate[DateKey(night)]
		if !ok {
			return nil, dayNotFound(q.Key, night)
		}

		free := day.Free() - blocked[DateKey(night)]
		if free < 0 {
			free = 0
		}

		if free < q.Rooms {
			return nil, &InsufficientInventoryError{Date: night, Needed: q.Rooms, Available: free}
		}

		price, err := nightPrice(roomType, day)
		if err != nil {
			return nil, err
		}

		res.MinAvailable = min(res.MinAvailable, free)
		res.PerNight = append(res.PerNight, NightPrice{Date: night, Price: price, Available: free})
		res.TotalPrice += price * float64(q.Rooms)
	}

	res.TotalPrice = RoundMoney(res.TotalPrice)

	return res, nil
}

func nightPrice(roomType *RoomType, day *Day) (float64, error) {
	if day.CurrentPrice != nil {
		return *day.CurrentPrice, nil
	}

	if roomType.BasePrice > 0 {
		return roomType.BasePrice, nil
	}

	return 0, &PricingUnavailableError{Key: day.Key(), Date: day.Date}
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100 //nolint:gomnd
}

package inventory

import (
	"time"
)

const dateLayout = "2006-01-02"

type RoomTypeKey struct {
	PropertyID string `json:"property_id"`
	RoomTypeID string `json:"room_type_id"`
}

func (k RoomTypeKey) String() string {
	return k.PropertyID + "/" + k.RoomTypeID
}

type RoomType struct {
	PropertyID     string  `json:"property_id"`
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	TotalRooms     int     `json:"total_rooms"`
	MaxOccupancy   int     `json:"max_occupancy"`
	MinStayNights  int     `json:"min_stay_nights"`
	MaxStayNights  int     `json:"max_stay_nights"`
	MinLeadDays    int     `json:"min_lead_days"`
	MaxAdvanceDays int     `json:"max_advance_days"`
	BasePrice      float64 `json:"base_price"`
}

func (r *RoomType) Key() RoomTypeKey {
	return RoomTypeKey{PropertyID: r.PropertyID, RoomTypeID: r.ID}
}

// Day is one ledger row. 0 <= ReservedRooms <= AvailableRooms <= RoomType.TotalRooms.
type Day struct {
	PropertyID     string    `json:"property_id"`
	RoomTypeID     string    `json:"room_type_id"`
	Date           time.Time `json:"date"`
	AvailableRooms int       `json:"available_rooms"`
	ReservedRooms  int       `json:"reserved_rooms"`
	CurrentPrice   *float64  `json:"current_price,omitempty"`
}

func (d *Day) Key() RoomTypeKey {
	return RoomTypeKey{PropertyID: d.PropertyID, RoomTypeID: d.RoomTypeID}
}

// Free is the number of rooms neither sold nor held.
func (d *Day) Free() int {
	return d.AvailableRooms - d.ReservedRooms
}

func (d *Day) Clone() *Day {
	c := *d

	if d.CurrentPrice != nil {
		price := *d.CurrentPrice
		c.CurrentPrice = &price
	}

	return &c
}

type BlockStatus string

const (
	BlockActive   BlockStatus = "ACTIVE"
	BlockReleased BlockStatus = "RELEASED"
)

type Block struct {
	Reference  string      `json:"reference"`
	PropertyID string      `json:"property_id"`
	RoomTypeID string      `json:"room_type_id"`
	Date       time.Time   `json:"date"`
	Rooms      int         `json:"rooms"`
	Reason     string      `json:"reason"`
	BlockedBy  string      `json:"blocked_by"`
	Status     BlockStatus `json:"status"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ReleasedAt *time.Time  `json:"released_at,omitempty"`
}

func (b *Block) Key() RoomTypeKey {
	return RoomTypeKey{PropertyID: b.PropertyID, RoomTypeID: b.RoomTypeID}
}

// Counts reports whether the block still takes rooms out of sale at the given moment.
func (b *Block) Counts(at time.Time) bool {
	if b.Status != BlockActive {
		return false
	}

	return b.ExpiresAt == nil || b.ExpiresAt.After(at)
}

func (b *Block) Clone() *Block {
	c := *b

	return &c
}

// Stay is the half-open night range [CheckIn, CheckOut).
type Stay struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

func NewStay(checkIn, checkOut time.Time) Stay {
	return Stay{CheckIn: Date(checkIn), CheckOut: Date(checkOut)}
}

func (s Stay) NightsCount() int {
	return int(s.CheckOut.Sub(s.CheckIn).Hours() / 24) //nolint:gomnd
}

// Nights lists every night of the stay in ascending order.
func (s Stay) Nights() []time.Time {
	nights := make([]time.Time, 0, s.NightsCount())

	for d := s.CheckIn; d.Before(s.CheckOut); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}

	return nights
}

func (s Stay) String() string {
	return s.CheckIn.Format(dateLayout) + ".." + s.CheckOut.Format(dateLayout)
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err //nolint:wrapcheck
	}

	return t, nil
}

package inventory

import (
	"context"
	"time"
)

// Reader is the read side of an inventory transaction.
type Reader interface {
	GetRoomType(ctx context.Context, key RoomTypeKey) (*RoomType, error)
	// GetDays returns the existing rows for the given dates ordered by date. Missing dates are omitted.
	GetDays(ctx context.Context, key RoomTypeKey, dates []time.Time) ([]*Day, error)
	// BlockedRooms sums rooms of blocks that count at the given moment, keyed by DateKey.
	BlockedRooms(ctx context.Context, key RoomTypeKey, dates []time.Time, at time.Time) (map[string]int, error)
	ListBlocks(ctx context.Context, key RoomTypeKey, from, to time.Time) ([]*Block, error)
}

// Tx is a unit of work over the ledger. Every mutation runs through one.
type Tx interface {
	Reader
	// LockDays is GetDays with row locks held until the transaction ends. Rows are locked in date order.
	LockDays(ctx context.Context, key RoomTypeKey, dates []time.Time) ([]*Day, error)
	UpdateDays(ctx context.Context, days []*Day) error
	InsertDays(ctx context.Context, days []*Day) error
	SaveRoomType(ctx context.Context, roomType *RoomType) error
	InsertBlock(ctx context.Context, block *Block) error
	LockBlock(ctx context.Context, reference string) (*Block, error)
	UpdateBlock(ctx context.Context, block *Block) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Beginner interface {
	BeginInventoryTx(ctx context.Context) (Tx, error)
}

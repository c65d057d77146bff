package migration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/migration"
	"github.com/avstrong/roomledger/internal/storage/memory"
)

var today = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func TestSeedOpensRollingWindow(t *testing.T) {
	ctx := context.Background()
	db := memory.New(memory.Config{L: logger.Discard()})

	require.NoError(t, migration.Seed(ctx, logger.Discard(), db, today))

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	p, err := tx.GetProperty(ctx, "seaview")
	require.NoError(t, err)
	assert.Equal(t, booking.PolicyStrict, p.CancellationPolicy.Type)
	assert.Len(t, p.CancellationPolicy.Rules, 3)

	key := inventory.RoomTypeKey{PropertyID: "seaview", RoomTypeID: "deluxe"}
	stay := inventory.NewStay(today, today.AddDate(0, 0, migration.DemoNights))

	days, err := tx.GetDays(ctx, key, stay.Nights())
	require.NoError(t, err)
	require.Len(t, days, migration.DemoNights)

	assert.Equal(t, 10, days[0].AvailableRooms)
	assert.Zero(t, days[0].ReservedRooms)
	assert.Nil(t, days[0].CurrentPrice)
}

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db := memory.New(memory.Config{L: logger.Discard()})

	require.NoError(t, migration.Seed(ctx, logger.Discard(), db, today))
	require.NoError(t, migration.Seed(ctx, logger.Discard(), db, today.AddDate(0, 0, 1)))

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(ctx) })

	key := inventory.RoomTypeKey{PropertyID: "citylodge", RoomTypeID: "standard"}
	stay := inventory.NewStay(today, today.AddDate(0, 0, migration.DemoNights+1))

	days, err := tx.GetDays(ctx, key, stay.Nights())
	require.NoError(t, err)
	assert.Len(t, days, migration.DemoNights+1)
}

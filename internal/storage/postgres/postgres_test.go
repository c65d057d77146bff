package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/logger"
)

func TestSchemaFilesAreSorted(t *testing.T) {
	files, err := schemaFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)

	assert.Equal(t, "schema/001_init.sql", files[0])
	assert.IsIncreasing(t, files)
}

func TestBookingArgsMatchColumns(t *testing.T) {
	columns := strings.Split(bookingColumns, ",")

	assert.Len(t, bookingArgs(&booking.Booking{}), len(columns)) //nolint:exhaustruct
}

func TestNotFoundMapsNoRows(t *testing.T) {
	err := notFound(pgx.ErrNoRows, booking.ErrBookingNotFound, "SEA-20260301-0001")
	require.ErrorIs(t, err, booking.ErrBookingNotFound)
	assert.True(t, booking.IsNotFound(err))

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other, booking.ErrBookingNotFound, "x"))
}

// TestMigrate runs only against a live database.
func TestMigrate(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()

	db, err := Open(ctx, logger.Discard(), url)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx), "second run is a no-op")
}

package uuidref

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextReferenceFormat(t *testing.T) {
	g := New()

	ref, err := g.NextReference(context.Background(), "BLK", time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^BLK-20261102-[0-9A-F]{8}$`), ref)

	other, err := g.NextReference(context.Background(), "BLK", time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)
}

package simple

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextReference(t *testing.T) {
	g := New()
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	first, err := g.NextReference(context.Background(), "SEA", date)
	require.NoError(t, err)
	assert.Equal(t, "SEA-20260314-0001", first)

	second, err := g.NextReference(context.Background(), "SEA", date)
	require.NoError(t, err)
	assert.Equal(t, "SEA-20260314-0002", second)
}

func TestGetIDConcurrent(t *testing.T) {
	g := New()

	var wg sync.WaitGroup

	seen := sync.Map{}

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			id, err := g.GetID(context.Background())
			assert.NoError(t, err)

			_, dup := seen.LoadOrStore(id, struct{}{})
			assert.False(t, dup)
		}()
	}

	wg.Wait()
}

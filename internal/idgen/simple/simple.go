package simple

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator numbers references sequentially. Numbers restart with the process,
// so it is only suitable for the memory store and tests.
type Generator struct {
	mu      sync.Mutex
	counter int
}

func New() *Generator {
	//nolint:exhaustruct
	return &Generator{}
}

func (g *Generator) GetID(_ context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counter++

	return g.counter, nil
}

// NextReference returns PREFIX-YYYYMMDD-NNNN.
func (g *Generator) NextReference(ctx context.Context, prefix string, date time.Time) (string, error) {
	id, err := g.GetID(ctx)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%04d", prefix, date.Format("20060102"), id), nil
}

// Package sweeper expires prepayment holds whose payment window has closed.
package sweeper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/logger"
)

type expirer interface {
	ExpiredHolds(ctx context.Context) ([]string, error)
	ExpireHold(ctx context.Context, reference string) (*booking.ExpiryResult, error)
}

type Result struct {
	Reference         string         `json:"reference"`
	OldStatus         booking.Status `json:"old_status,omitempty"`
	NewStatus         booking.Status `json:"new_status,omitempty"`
	InventoryReleased bool           `json:"inventory_released"`
	Err               error          `json:"-"`
	Error             string         `json:"error,omitempty"`
}

type Conf struct {
	L        *logger.Logger
	Interval time.Duration
	// Concurrency bounds how many bookings are expired at once.
	Concurrency int
}

type Sweeper struct {
	l           *logger.Logger
	bookings    expirer
	interval    time.Duration
	concurrency int

	// mu keeps a manual sweep from overlapping the scheduled one.
	mu sync.Mutex
}

func New(conf Conf, bookings expirer) *Sweeper {
	concurrency := conf.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	interval := conf.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	//nolint:exhaustruct
	return &Sweeper{
		l:           conf.L,
		bookings:    bookings,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	results := s.Sweep(ctx)

	var released, failed int

	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
		case r.InventoryReleased:
			released++
		}
	}

	if len(results) > 0 {
		s.l.LogInfo("Sweep finished: %d due, %d expired, %d failed", len(results), released, failed)
	}
}

// Sweep expires every due hold, each in its own transaction. One failing booking
// is reported and left for the next run without stopping the others.
func (s *Sweeper) Sweep(ctx context.Context) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs, err := s.bookings.ExpiredHolds(ctx)
	if err != nil {
		s.l.LogErrorf("sweeper: expired holds query failed: %v", err)

		return nil
	}

	results := make([]Result, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, ref := range refs {
		g.Go(func() error {
			results[i] = s.expire(gctx, ref)

			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (s *Sweeper) expire(ctx context.Context, ref string) Result {
	//nolint:exhaustruct
	res := Result{Reference: ref}

	out, err := s.bookings.ExpireHold(ctx, ref)
	if err != nil {
		s.l.WithField("reference", ref).LogErrorf("sweeper: could not expire hold: %v", err)

		res.Err = err
		res.Error = err.Error()

		return res
	}

	res.OldStatus = out.OldStatus
	res.NewStatus = out.NewStatus
	res.InventoryReleased = out.InventoryReleased

	if out.InventoryReleased {
		s.l.WithField("reference", ref).LogInfo("Payment window expired, %s -> %s", out.OldStatus, out.NewStatus)
	}

	return res
}

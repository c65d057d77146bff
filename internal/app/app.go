package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"golang.org/x/sync/errgroup"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/config"
	"github.com/avstrong/roomledger/internal/idgen/simple"
	"github.com/avstrong/roomledger/internal/idgen/uuidref"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/migration"
	"github.com/avstrong/roomledger/internal/notify"
	"github.com/avstrong/roomledger/internal/storage/memory"
	"github.com/avstrong/roomledger/internal/storage/postgres"
	"github.com/avstrong/roomledger/internal/sweeper"
	"github.com/avstrong/roomledger/internal/transport/web"
)

// Store is what the managers need from a storage backend.
type Store interface {
	BeginTx(ctx context.Context) (booking.Tx, error)
	BeginInventoryTx(ctx context.Context) (inventory.Tx, error)
	GetBooking(ctx context.Context, reference string) (*booking.Booking, error)
	ListPayments(ctx context.Context, reference string) ([]*booking.Payment, error)
	ExpiredHolds(ctx context.Context, today time.Time) ([]string, error)
	ListBufferEntries(ctx context.Context, status booking.BufferStatus) ([]*booking.BufferEntry, error)
}

type refGenerator interface {
	NextReference(ctx context.Context, prefix string, date time.Time) (string, error)
}

type Services struct {
	Store     Store
	Bookings  *booking.Manager
	Inventory *inventory.Manager
	Sweeper   *sweeper.Sweeper

	close func()
}

func (s *Services) Close() {
	if s.close != nil {
		s.close()
	}
}

func NewLogger(cfg config.Config) (*logger.Logger, error) {
	l, err := logger.New(logger.Conf{Level: cfg.LogLevel, File: cfg.LogFile, Output: nil})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return l, nil
}

// OpenPostgres connects and brings the schema up to date.
func OpenPostgres(ctx context.Context, l *logger.Logger, cfg config.Config) (*postgres.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrDatabaseURLMissing
	}

	db, err := postgres.Open(ctx, l, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return db, nil
}

// NewServices picks the store from the config. The memory store always starts with demo data.
func NewServices(ctx context.Context, l *logger.Logger, cfg config.Config) (*Services, error) {
	var (
		store   Store
		refs    refGenerator
		closeFn func()
	)

	today := time.Now().UTC()

	if cfg.DatabaseURL != "" {
		db, err := OpenPostgres(ctx, l, cfg)
		if err != nil {
			return nil, err
		}

		store, refs, closeFn = db, uuidref.New(), db.Close

		if cfg.SeedDemo {
			if err := migration.Seed(ctx, l, db, today); err != nil {
				db.Close()

				return nil, fmt.Errorf("seed demo data: %w", err)
			}
		}
	} else {
		db := memory.New(memory.Config{L: l})
		if err := migration.Seed(ctx, l, db, today); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}

		l.LogWarnf("DATABASE_URL is not set, running on the in-memory store with demo data")

		store, refs = db, simple.New()
	}

	var notifier booking.Notifier = notify.NewLog(l)

	if cfg.MailEnabled() {
		notifier = notify.NewMailer(l, notify.SMTPConf{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			To:       cfg.StaffEmail,
		})
	}

	bookings := booking.New(l.WithField("component", "booking"), store, refs, booking.WithNotifier(notifier))

	return &Services{
		Store:     store,
		Bookings:  bookings,
		Inventory: inventory.NewManager(l.WithField("component", "inventory"), store, refs, nil),
		Sweeper: sweeper.New(sweeper.Conf{
			L:           l.WithField("component", "sweeper"),
			Interval:    cfg.SweepInterval,
			Concurrency: cfg.SweepConcurrency,
		}, bookings),
		close: closeFn,
	}, nil
}

func newLimiterStore(ctx context.Context, l *logger.Logger, cfg config.Config) (limiter.Store, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	store, err := web.NewRedisLimiterStore(client)
	if err != nil {
		_ = client.Close()

		return nil, nil, err //nolint:wrapcheck
	}

	l.LogInfo("Rate limiter counters are kept in redis")

	return store, func() {
		if err := client.Close(); err != nil {
			l.LogErrorf("Could not close redis client: %v", err.Error())
		}
	}, nil
}

// Run serves HTTP and runs the sweeper until ctx is done.
func Run(ctx context.Context, l *logger.Logger, cfg config.Config) error {
	services, err := NewServices(ctx, l, cfg)
	if err != nil {
		return err
	}
	defer services.Close()

	limiterStore, closeLimiter, err := newLimiterStore(ctx, l, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	if cfg.StaffJWTSecret == "" {
		l.LogWarnf("STAFF_JWT_SECRET is not set, the admin API is closed")
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      log.New(l.Writer(), "", 0),
		Host:              cfg.HTTPHost,
		Port:              cfg.HTTPPort,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		LivenessEndpoint:  "/liveness",
		RateLimit:         cfg.RateLimit,
		LimiterStore:      limiterStore,
		StaffJWTSecret:    cfg.StaffJWTSecret,
	}

	gin.SetMode(gin.ReleaseMode)

	srv, err := web.New(ctx, webConf, services.Bookings, services.Inventory, services.Sweeper)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := services.Sweeper.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sweeper: %w", err)
		}

		return nil
	})

	//nolint:contextcheck
	g.Go(func() error {
		<-gctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:gomnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}

		return nil
	})

	g.Go(func() error {
		l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

		if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run http server: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}

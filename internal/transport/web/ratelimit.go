package web

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginmiddleware "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const limiterPrefix = "roomledger:rate"

// NewRedisLimiterStore shares rate counters between instances.
func NewRedisLimiterStore(client *redis.Client) (limiter.Store, error) {
	//nolint:exhaustruct
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   limiterPrefix,
		MaxRetry: 3, //nolint:gomnd
	})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}

	return store, nil
}

// rateLimitMiddleware limits requests per client IP. It passes everything through when no rate is configured.
func (s *Server) rateLimitMiddleware() (gin.HandlerFunc, error) {
	if s.conf.RateLimit == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}

	rate, err := limiter.NewRateFromFormatted(s.conf.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", s.conf.RateLimit, err)
	}

	store := s.conf.LimiterStore
	if store == nil {
		//nolint:exhaustruct
		store = memorystore.NewStoreWithOptions(limiter.StoreOptions{Prefix: limiterPrefix})
	}

	return ginmiddleware.NewMiddleware(limiter.New(store, rate)), nil
}

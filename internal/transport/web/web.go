package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/avstrong/roomledger/internal/booking"
	"github.com/avstrong/roomledger/internal/inventory"
	"github.com/avstrong/roomledger/internal/logger"
	"github.com/avstrong/roomledger/internal/sweeper"
)

type Server struct {
	srv       *http.Server
	router    *gin.Engine
	l         *logger.Logger
	conf      Conf
	bookings  *booking.Manager
	inventory *inventory.Manager
	sweeper   *sweeper.Sweeper
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
	// RateLimit is in ulule format, e.g. "120-M". Empty disables limiting.
	RateLimit string
	// LimiterStore keeps rate counters. Nil keeps them in process memory.
	LimiterStore   limiter.Store
	StaffJWTSecret string
}

func New(
	ctx context.Context,
	conf Conf,
	bookings *booking.Manager,
	inventoryManager *inventory.Manager,
	sw *sweeper.Sweeper,
) (*Server, error) {
	router := gin.New()

	if conf.LivenessEndpoint == "" {
		conf.LivenessEndpoint = "/liveness"
	}

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           router,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:       srv,
		router:    router,
		l:         conf.L,
		conf:      conf,
		bookings:  bookings,
		inventory: inventoryManager,
		sweeper:   sw,
	}

	rateLimit, err := server.rateLimitMiddleware()
	if err != nil {
		return nil, err
	}

	router.Use(server.requestIDMiddleware(), server.loggerMiddleware(), server.recoverMiddleware())

	server.addRoutes(router, rateLimit)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

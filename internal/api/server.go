// Package api is the HTTP adapter of the reservation engine.
package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"time"

	"courtbook/internal/service"

	"github.com/rs/zerolog"
)

// AccessTokenHeader carries a guest's access token on "my reservations" calls.
const AccessTokenHeader = "X-Access-Token"

// maxBodyBytes bounds request bodies; booking payloads are tiny.
const maxBodyBytes = 64 << 10

type Options struct {
	Address            string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
	TrustedProxies     []netip.Prefix
}

// HTTPServer serves the booking API.
type HTTPServer struct {
	engine  *service.Engine
	limiter *RateLimiter
	logger  *zerolog.Logger
	server  *http.Server
}

func NewHTTPServer(engine *service.Engine, logger *zerolog.Logger, opts Options) *HTTPServer {
	s := &HTTPServer{
		engine:  engine,
		limiter: NewRateLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst, opts.TrustedProxies...),
		logger:  logger,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.server = &http.Server{
		Addr:              opts.Address,
		Handler:           Chain(mux, withRequestID, withLogging(logger), withMetrics),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/resources/{id}/slots", s.handleSlots)
	mux.HandleFunc("GET /api/v1/resources/{id}/availability", s.handleAvailability)
	mux.HandleFunc("GET /api/v1/resources/{id}/durations", s.handleDurations)
	mux.HandleFunc("GET /api/v1/resources/{id}/lanes", s.handleLanes)
	mux.HandleFunc("GET /api/v1/resources/{id}/export", s.handleExport)

	mux.HandleFunc("POST /api/v1/reservations", s.limiter.Wrap(s.handleReserve))
	mux.HandleFunc("GET /api/v1/reservations/{id}", s.handleGetReservation)
	mux.HandleFunc("POST /api/v1/reservations/{id}/cancel", s.limiter.Wrap(s.handleCancel))
	mux.HandleFunc("POST /api/v1/reservations/{id}/reschedule", s.limiter.Wrap(s.handleReschedule))
	mux.HandleFunc("POST /api/v1/reservations/{id}/payment", s.handlePayment)

	mux.HandleFunc("GET /api/v1/track/{token}", s.handleTrack)
	mux.HandleFunc("GET /api/v1/my-reservations", s.handleMyReservations)
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("address", s.server.Addr).Msg("api server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

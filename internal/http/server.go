// Package http serves the bridge's status API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chbarnhouse/ha-finance-assistant/internal/core"
	"github.com/chbarnhouse/ha-finance-assistant/internal/log"
	"github.com/chbarnhouse/ha-finance-assistant/internal/sensor"
	"github.com/chbarnhouse/ha-finance-assistant/internal/storage"
)

// SensorSource exposes the most recently built sensors.
type SensorSource interface {
	Latest() []sensor.State
	Sensor(entityID string) (sensor.State, bool)
	LastPublished() time.Time
}

// Refresher is the coordinator surface used by the API.
type Refresher interface {
	RequestRefresh() bool
	Data() (*core.Snapshot, error)
	LastUpdate() time.Time
	LastUpdateSuccess() bool
	LastError() error
}

// HistoryReader returns stored readings of one entity, newest first.
type HistoryReader interface {
	History(ctx context.Context, entityID string, limit int) ([]storage.HistoryPoint, error)
}

type Options struct {
	Addr      string
	Sensors   SensorSource
	Refresher Refresher
	// History is optional; without it the history route answers 503.
	History HistoryReader
	Logger  *log.Logger

	// RefreshPerMinute limits POST /api/refresh per client IP (default 10).
	RefreshPerMinute int
}

type Server struct {
	http.Server
	sensors   SensorSource
	refresher Refresher
	history   HistoryReader
	logger    *log.Logger
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.RefreshPerMinute <= 0 {
		opts.RefreshPerMinute = 10
	}

	s := &Server{
		sensors:   opts.Sensors,
		refresher: opts.Refresher,
		history:   opts.History,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger))
	r.Use(log.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sensors", s.handleSensors)
		r.Get("/sensors/{entityID}", s.handleSensor)
		r.Get("/history/{entityID}", s.handleHistory)
		r.With(httprate.Limit(
			opts.RefreshPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return extractClientIP(r), nil
			}),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "too many refresh requests")
			}),
		)).Post("/refresh", s.handleRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Package server exposes the simulator over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"trade_sim/internal/domain"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource provides the installed order book.
type SnapshotSource interface {
	Latest() *domain.Snapshot
}

// Simulator runs one cost estimate.
type Simulator interface {
	Simulate(ctx context.Context, p domain.SimulateParams) (domain.CostEstimate, error)
}

// PerformanceSource reports rolling-window performance.
type PerformanceSource interface {
	Metrics() domain.PerformanceMetrics
}

// SimulationJournal lists journaled estimates, newest first.
type SimulationJournal interface {
	RecentSimulations(ctx context.Context, limit int) ([]domain.SimulationRecord, error)
}

// Config holds server configuration
type Config struct {
	Addr           string
	AllowedOrigin  string
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// Deps are the collaborators behind the routes. Journal, Hub and Gatherer are optional.
type Deps struct {
	Book        SnapshotSource
	Simulator   Simulator
	Performance PerformanceSource
	Journal     SimulationJournal
	Hub         http.Handler
	Gatherer    prometheus.Gatherer
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	deps    Deps
	router  *mux.Router
	server  *http.Server
	limiter *Limiter
}

// New creates a server and registers its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		router:  mux.NewRouter(),
		limiter: NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoverMiddleware)
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.corsMiddleware)
	api.Handle("/simulate", s.rateLimit(http.HandlerFunc(s.handleSimulate))).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/performance", s.handlePerformance).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/orderbook", s.handleOrderBook).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/simulations", s.handleSimulations).Methods(http.MethodGet, http.MethodOptions)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	if s.deps.Hub != nil {
		s.router.Handle("/ws", s.deps.Hub)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", slog.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/engine"
	"trade_sim/internal/infra"
	"trade_sim/internal/infra/cache/redis"
	"trade_sim/internal/infra/mock"
	"trade_sim/internal/infra/okx"
	"trade_sim/internal/infra/storage"
	"trade_sim/internal/model"
	"trade_sim/internal/server"
	"trade_sim/internal/server/ws"
	"trade_sim/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	feedSourceKey   = "feed.source"
	shutdownTimeout = 5 * time.Second
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config    *infra.Config
	Metrics   *infra.Metrics
	Registry  *prometheus.Registry
	Storage   *storage.Storage // nil when storage is disabled
	Redis     *redis.Publisher // nil when redis is disabled or unreachable
	Tracker   *service.PerformanceTracker
	Engine    *engine.OrderBookEngine
	Simulator *service.Simulator
	Hub       *ws.Hub
	Worker    *okx.Worker
	Server    *server.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	if configPath == "" {
		configPath = infra.DefaultConfigPath
	}
	return &Bootstrap{ConfigPath: configPath}
}

// LoadConfig loads the configuration and installs the logger.
func (b *Bootstrap) LoadConfig() error {
	cfg, found, err := infra.LoadConfigOrDefault(b.ConfigPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))
	if !found {
		slog.Warn("⚠️ Config file not found, using defaults", slog.String("path", b.ConfigPath))
	}
	return nil
}

// Initialize performs core system initialization (DB, cache, engine, server)
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Trade Sim...")

	// 1. Load Config
	if b.Config == nil {
		if err := b.LoadConfig(); err != nil {
			return err
		}
	}
	cfg := b.Config

	// 2. Metrics
	b.Metrics = infra.GlobalMetrics
	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(
		b.Metrics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. Initialize Storage (DB)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Database initialized")

		if prev, err := store.LoadConfigMap(); err == nil && prev[feedSourceKey] != "" {
			slog.Info("Previous feed source", slog.String("source", prev[feedSourceKey]))
		}
	}

	// 4. Redis snapshot mirror (optional)
	if cfg.Redis.Enabled {
		pub, err := redis.NewPublisher(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Timeout:  time.Duration(cfg.Redis.TimeoutMS) * time.Millisecond,
		})
		if err != nil {
			slog.Warn("⚠️ Redis unavailable, continuing without snapshot mirror", slog.Any("error", err))
		} else {
			b.Redis = pub
			slog.Info("✅ Redis publisher ready", slog.String("addr", cfg.Redis.Addr))
		}
	}

	// 5. Engine & Simulator
	b.Tracker = service.NewPerformanceTracker(cfg.Performance.WindowSize)

	// Publishers are attached once the hub exists; the engine does not run until Run.
	var fanout engine.MultiPublisher
	b.Engine = engine.NewOrderBookEngine(
		cfg.Engine.Exchange,
		cfg.Engine.Symbol,
		cfg.Engine.InboxSize,
		b.Tracker,
		engine.PublisherFunc(func(ctx context.Context, snap *domain.Snapshot) error {
			return fanout.Publish(ctx, snap)
		}),
		b.Metrics,
	)

	var recorder domain.SimulationRecorder
	if b.Storage != nil {
		recorder = b.Storage
	}
	b.Simulator = service.NewSimulator(b.Engine, b.Tracker, SimulatorConfig(cfg), recorder, b.Metrics)

	// 6. Client hub & HTTP server
	b.Hub = ws.NewHub(b.Simulator, b.Metrics, cfg.Server.AllowedOrigin)
	fanout = append(fanout, b.Hub)
	if b.Redis != nil {
		fanout = append(fanout, b.Redis)
	}

	deps := server.Deps{
		Book:        b.Engine,
		Simulator:   b.Simulator,
		Performance: b.Tracker,
		Hub:         b.Hub,
		Gatherer:    b.Registry,
	}
	if b.Storage != nil {
		deps.Journal = b.Storage
	}
	b.Server = server.New(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
	}, deps)

	// 7. Feed worker with synthetic fallback
	opts := okx.Options{
		URL:            cfg.Feed.URL,
		ReconnectDelay: cfg.ReconnectDelay(),
		ReadTimeout:    time.Duration(cfg.Feed.ReadTimeoutSec) * time.Second,
		Breaker: infra.NewFeedBreaker("okx-feed",
			cfg.Feed.Breaker.Failures,
			time.Duration(cfg.Feed.Breaker.OpenTimeoutSec)*time.Second,
			b.Metrics,
		),
		Metrics:        b.Metrics,
		OnSourceChange: b.onSourceChange,
	}
	if cfg.Feed.Mock.Enabled {
		opts.Fallback = mock.NewGenerator(
			cfg.Engine.Exchange,
			cfg.Engine.Symbol,
			cfg.Feed.Mock.BasePrice,
			time.Duration(cfg.Feed.Mock.IntervalMS)*time.Millisecond,
			0,
		)
	}
	b.Worker = okx.NewWorker(opts, b.Engine.Inbox())

	slog.Info("✅ Components initialized",
		slog.String("exchange", cfg.Engine.Exchange),
		slog.String("symbol", cfg.Engine.Symbol),
		slog.Bool("mock_fallback", cfg.Feed.Mock.Enabled),
	)
	return nil
}

// SimulatorConfig maps the models section onto the simulator settings.
func SimulatorConfig(cfg *infra.Config) service.SimulatorConfig {
	return service.SimulatorConfig{
		Impact: &model.ImpactParams{
			Gamma:   cfg.Models.Gamma,
			Eta:     cfg.Models.Eta,
			Epsilon: cfg.Models.Epsilon,
		},
		HorizonMin:  cfg.Models.HorizonMin,
		FeeTiers:    cfg.Models.FeeTiers,
		DefaultTier: cfg.Models.DefaultTier,
	}
}

func (b *Bootstrap) onSourceChange(source string) {
	slog.Info("📡 Feed source switched", slog.String("source", source))
	if b.Storage == nil {
		return
	}
	if err := b.Storage.SaveConfig(feedSourceKey, source); err != nil {
		slog.Warn("Failed to persist feed source", slog.Any("error", err))
	}
}

// Run starts the engine, feed and server, and blocks until ctx is cancelled
// or the server fails.
func (b *Bootstrap) Run(ctx context.Context) error {
	go b.Engine.Run(ctx)
	slog.InfoContext(ctx, "✅ Order book engine started")

	if err := b.Worker.Connect(ctx); err != nil {
		slog.Error("Failed to start feed worker", slog.Any("error", err))
	}
	defer b.Worker.Disconnect()
	slog.InfoContext(ctx, "✅ Feed worker started", slog.String("url", b.Config.Feed.URL))

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Server.Start()
	}()

	slog.InfoContext(ctx, "✨ Trade Sim fully operational. Press Ctrl+C to exit.",
		slog.String("addr", b.Config.Server.Addr),
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			slog.Error("❌ HTTP server failed", slog.Any("error", runErr))
		}
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("HTTP shutdown incomplete", slog.Any("error", err))
	}
	b.Hub.Close()
	return runErr
}

// Close releases storage and cache connections.
func (b *Bootstrap) Close() {
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			slog.Warn("Failed to close redis", slog.Any("error", err))
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close database", slog.Any("error", err))
		}
	}
}

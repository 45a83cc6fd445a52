package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
	"trade_sim/internal/model"
	"trade_sim/internal/service"
)

func testConfig(t *testing.T) *infra.Config {
	t.Helper()
	cfg := infra.DefaultConfig()
	dir := t.TempDir()
	cfg.Storage.Path = filepath.Join(dir, "test.db")
	cfg.Logging.Dir = filepath.Join(dir, "logs")
	cfg.Server.Addr = "127.0.0.1:0"
	return cfg
}

func initBootstrap(t *testing.T, cfg *infra.Config) *Bootstrap {
	t.Helper()
	b := NewBootstrap("")
	b.Config = cfg
	if err := b.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestNewBootstrap_DefaultPath(t *testing.T) {
	if got := NewBootstrap("").ConfigPath; got != infra.DefaultConfigPath {
		t.Errorf("ConfigPath = %q, want %q", got, infra.DefaultConfigPath)
	}
}

func TestBootstrap_Initialize(t *testing.T) {
	b := initBootstrap(t, testConfig(t))

	if b.Storage == nil || b.Engine == nil || b.Simulator == nil || b.Hub == nil || b.Worker == nil || b.Server == nil {
		t.Fatalf("components missing: %+v", b)
	}
	if b.Redis != nil {
		t.Error("redis is disabled by default")
	}
	if b.Engine.Symbol() != "BTC-USDT-SWAP" {
		t.Errorf("engine symbol = %s", b.Engine.Symbol())
	}
}

func TestBootstrap_EndToEnd(t *testing.T) {
	b := initBootstrap(t, testConfig(t))
	h := b.Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("simulate before data: status %d, want 503", rec.Code)
	}

	_, err := b.Engine.Update(domain.FeedRecord{
		Timestamp: "2025-01-01T00:00:00Z",
		Asks:      [][]string{{"101", "1"}, {"102", "2"}},
		Bids:      [][]string{{"100", "1"}, {"99", "2"}},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/simulate", strings.NewReader(`{"quantity":"100"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate: status %d body %s", rec.Code, rec.Body.String())
	}

	n, err := b.Storage.CountSimulations(context.Background())
	if err != nil || n != 1 {
		t.Errorf("journaled simulations = %d (%v), want 1", n, err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tradesim_simulations_total") {
		t.Error("metrics exposition missing tradesim counters")
	}

	if perf := b.Tracker.Metrics(); perf.AvgProcessingMs < 0 || perf.UpdatesPerSecond <= 0 {
		t.Errorf("performance = %+v", perf)
	}
}

func TestBootstrap_SourceChangePersisted(t *testing.T) {
	b := initBootstrap(t, testConfig(t))

	b.onSourceChange("mock")

	values, err := b.Storage.LoadConfigMap()
	if err != nil {
		t.Fatalf("LoadConfigMap failed: %v", err)
	}
	if values[feedSourceKey] != "mock" {
		t.Errorf("feed.source = %q, want mock", values[feedSourceKey])
	}
}

func TestBootstrap_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.URL = "ws://127.0.0.1:1/unreachable"
	cfg.Feed.ReconnectDelaySec = 1
	b := initBootstrap(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type fixedBook struct{ snap *domain.Snapshot }

func (b fixedBook) Latest() *domain.Snapshot { return b.snap }

func TestSimulatorConfig(t *testing.T) {
	cfg := infra.DefaultConfig()
	cfg.Models.Gamma = 0.2
	cfg.Models.HorizonMin = 2

	sc := SimulatorConfig(cfg)
	if sc.Impact == nil || sc.Impact.Gamma != 0.2 || sc.Impact.Eta != 0.01 || sc.Impact.Epsilon != 0.005 {
		t.Errorf("Impact = %+v", sc.Impact)
	}
	if sc.HorizonMin != 2 || sc.DefaultTier != "VIP0" {
		t.Errorf("SimulatorConfig = %+v", sc)
	}
	if len(sc.FeeTiers) != 6 {
		t.Errorf("FeeTiers = %d tiers, want 6", len(sc.FeeTiers))
	}
}

func TestSimulatorConfig_ZeroImpactParams(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want model.ImpactParams
	}{
		{"gamma zero", "models:\n  gamma: 0\n", model.ImpactParams{Gamma: 0, Eta: 0.01, Epsilon: 0.005}},
		{"epsilon zero", "models:\n  epsilon: 0\n", model.ImpactParams{Gamma: 0.1, Eta: 0.01, Epsilon: 0}},
		{"unset keeps defaults", "models:\n  horizon_min: 1\n", model.DefaultImpactParams()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			cfg, err := infra.LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}

			sc := SimulatorConfig(cfg)
			if sc.Impact == nil || *sc.Impact != tt.want {
				t.Fatalf("Impact = %+v, want %+v", sc.Impact, tt.want)
			}

			snap := &domain.Snapshot{
				Timestamp: "t",
				Asks:      []domain.PriceLevel{{Price: 101, Size: 1}, {Price: 102, Size: 2}},
				Bids:      []domain.PriceLevel{{Price: 100, Size: 1}, {Price: 99, Size: 2}},
				MidPrice:  100.5,
				SpreadPct: 1 / 100.5 * 100,
				AskDepth:  3,
				BidDepth:  3,
			}
			sim := service.NewSimulator(fixedBook{snap}, nil, sc, nil, nil)
			p := domain.DefaultSimulateParams()
			p.Quantity = 100
			p.Volatility = 0.02
			p.FeeTier = "VIP0"

			est, err := sim.Simulate(context.Background(), p)
			if err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			wantImpact := model.NewMarketImpactModel(tt.want).Calculate(0.02, 100/100.5, 100.5, cfg.Models.HorizonMin).Value
			if est.MarketImpact != wantImpact {
				t.Errorf("MarketImpact = %v, want %v", est.MarketImpact, wantImpact)
			}
		})
	}
}

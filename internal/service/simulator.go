package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"
	"trade_sim/internal/model"
)

// SnapshotSource provides the installed order book.
type SnapshotSource interface {
	Latest() *domain.Snapshot
}

// Simulator combines the cost models into one estimate against the latest book.
type Simulator struct {
	book     SnapshotSource
	tracker  *PerformanceTracker
	recorder domain.SimulationRecorder
	metrics  *infra.Metrics

	slippage   *model.SlippageModel
	makerTaker *model.MakerTakerModel
	fees       *model.FeeCalculator
	impact     *model.MarketImpactModel
	horizon    float64

	now func() time.Time
}

// SimulatorConfig holds model settings. Zero values take the model defaults;
// a nil Impact means model.DefaultImpactParams.
type SimulatorConfig struct {
	Impact      *model.ImpactParams
	HorizonMin  float64
	FeeTiers    domain.FeeTierTable
	DefaultTier string
}

// NewSimulator creates a Simulator. recorder and metrics may be nil.
func NewSimulator(book SnapshotSource, tracker *PerformanceTracker, cfg SimulatorConfig, recorder domain.SimulationRecorder, metrics *infra.Metrics) *Simulator {
	horizon := cfg.HorizonMin
	if horizon == 0 {
		horizon = model.DefaultHorizon
	}
	impact := model.DefaultImpactParams()
	if cfg.Impact != nil {
		impact = *cfg.Impact
	}
	return &Simulator{
		book:       book,
		tracker:    tracker,
		recorder:   recorder,
		metrics:    metrics,
		slippage:   model.NewSlippageModel(),
		makerTaker: model.NewMakerTakerModel(),
		fees:       model.NewFeeCalculator(cfg.FeeTiers, cfg.DefaultTier),
		impact:     model.NewMarketImpactModel(impact),
		horizon:    horizon,
		now:        time.Now,
	}
}

// Simulate estimates the cost of a market buy of p.Quantity USD.
// Every order is costed as a buy; there is no sell path.
// It returns domain.ErrNoOrderBook before the first accepted update.
func (s *Simulator) Simulate(ctx context.Context, p domain.SimulateParams) (est domain.CostEstimate, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in simulation", slog.Any("panic", r))
			err = fmt.Errorf("simulation failed: %v", r)
		}
		if err != nil && s.metrics != nil {
			s.metrics.RecordSimulationError()
		}
	}()

	snap := s.book.Latest()
	if snap == nil {
		return domain.CostEstimate{}, domain.ErrNoOrderBook
	}
	// Quantity scales every cost term; a bad volatility only affects impact,
	// which falls back on its own.
	if math.IsNaN(p.Quantity) || math.IsInf(p.Quantity, 0) {
		return domain.CostEstimate{}, fmt.Errorf("%w: quantity %v is not a finite number", domain.ErrInvalidParams, p.Quantity)
	}

	if snap.MidPrice <= 0 {
		return domain.CostEstimate{}, domain.ErrNoMidPrice
	}

	start := s.now()
	const isBuy = true

	slip := s.checked(infra.ModelSlippage, s.slippage.Estimate(snap, p.Quantity, isBuy))
	makerProb := s.checked(infra.ModelMakerTaker, s.makerTaker.Predict(snap, p.Quantity))
	fees := s.checked(infra.ModelFee, s.fees.Calculate(p.FeeTier, p.Quantity, makerProb))

	// The impact model works in base units.
	baseQty := p.Quantity / snap.MidPrice
	impact := s.checked(infra.ModelImpact, s.impact.Calculate(p.Volatility, baseQty, snap.MidPrice, s.horizon))

	// The float64 conversions forbid fused multiply-add; net cost must equal
	// the reported fields recombined.
	netCost := float64(p.Quantity*slip) + fees + float64(p.Quantity*impact)

	elapsed := s.now().Sub(start)
	latencyMs := float64(elapsed) / float64(time.Millisecond)
	if s.tracker != nil {
		s.tracker.TrackProcessing(latencyMs)
	}
	if s.metrics != nil {
		s.metrics.RecordSimulation(elapsed)
	}

	est = domain.CostEstimate{
		ExpectedSlippage:     slip,
		ExpectedFees:         fees,
		MarketImpact:         impact,
		NetCost:              netCost,
		MakerTakerProportion: makerProb,
		InternalLatency:      latencyMs,
		Timestamp:            s.now(),
	}

	if s.recorder != nil {
		if rerr := s.recorder.RecordSimulation(ctx, p, est); rerr != nil {
			slog.Warn("Failed to journal simulation", slog.Any("error", rerr))
		}
	}
	return est, nil
}

// checked unwraps a model result, counting and logging fallbacks.
func (s *Simulator) checked(name string, r model.Result) float64 {
	if r.Fallback {
		slog.Warn("Model fallback",
			slog.String("model", name),
			slog.Float64("value", r.Value),
			slog.Any("reason", r.Reason),
		)
		if s.metrics != nil {
			s.metrics.RecordFallback(name)
		}
	}
	return r.Value
}

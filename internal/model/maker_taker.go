package model

import (
	"math"

	"trade_sim/internal/domain"
)

// MakerTakerFallback is the maker probability used when prediction fails.
const MakerTakerFallback = 0.2

// Logistic weights. Fixed; there is no fitting step.
const (
	weightIntercept    = 0.2
	weightRelativeSize = -2.5
	weightSpread       = 1.5
	weightImbalance    = -1.0
)

// MakerTakerModel predicts the share of an order filled passively.
type MakerTakerModel struct{}

// NewMakerTakerModel creates a MakerTakerModel.
func NewMakerTakerModel() *MakerTakerModel {
	return &MakerTakerModel{}
}

// Predict returns the maker probability in [0, 1].
func (m *MakerTakerModel) Predict(snap *domain.Snapshot, quantityUSD float64) Result {
	if snap == nil {
		return fallback(MakerTakerFallback, ErrNoSnapshot)
	}

	relativeSize := math.Min(quantityUSD/math.Max(snap.TotalDepth(), 0.001), 1)
	spreadFeature := math.Min(snap.SpreadPct/0.1, 1)

	// ln(0) is -Inf, which saturates the feature at 1.
	ratio := snap.AskDepth / math.Max(snap.BidDepth, 1e-5)
	imbalance := math.Min(math.Abs(math.Log(ratio))/3, 1)

	logit := weightIntercept +
		weightRelativeSize*relativeSize +
		weightSpread*spreadFeature +
		weightImbalance*imbalance
	if !finite(logit) {
		return fallback(MakerTakerFallback, ErrNonFinite)
	}

	p := 1 / (1 + math.Exp(-logit))
	return ok(clamp(p, 0, 1))
}

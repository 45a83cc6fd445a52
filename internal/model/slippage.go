package model

import "trade_sim/internal/domain"

const (
	// SlippageFallback is returned when the estimate cannot be computed.
	SlippageFallback = 0.001

	maxSlippage = 0.05

	// tailPenalty inflates the worst visible price for size beyond the book.
	tailPenalty = 1.01
)

// SlippageModel walks one side of the book to estimate slippage against mid.
type SlippageModel struct{}

// NewSlippageModel creates a SlippageModel.
func NewSlippageModel() *SlippageModel {
	return &SlippageModel{}
}

// Estimate returns the expected slippage fraction in [0, 0.05] for an order
// of quantityUSD notional. An empty side yields exactly 0.
func (m *SlippageModel) Estimate(snap *domain.Snapshot, quantityUSD float64, isBuy bool) Result {
	if snap == nil {
		return fallback(SlippageFallback, ErrNoSnapshot)
	}
	if !finite(quantityUSD) {
		return fallback(SlippageFallback, ErrNonFinite)
	}

	levels := snap.Side(isBuy)
	if len(levels) == 0 {
		return ok(0)
	}

	remaining := quantityUSD
	totalCost := 0.0
	for _, l := range levels {
		notional := l.Price * l.Size
		if remaining <= notional {
			if notional == 0 {
				return fallback(SlippageFallback, ErrDivideByZero)
			}
			totalCost += l.Price * (remaining / notional) * remaining
			remaining = 0
			break
		}
		totalCost += notional
		remaining -= notional
	}
	if remaining > 0 {
		worst := levels[len(levels)-1].Price
		totalCost += worst * remaining * tailPenalty
	}

	effective := 0.0
	if quantityUSD > 0 {
		effective = totalCost / quantityUSD
	}

	slippage := 0.0
	if snap.MidPrice > 0 {
		if isBuy {
			slippage = effective/snap.MidPrice - 1
		} else {
			slippage = 1 - effective/snap.MidPrice
		}
	}

	spreadFactor := snap.SpreadPct * 0.1
	depthFactor := 0.05 / (snap.SideDepth(isBuy) + 1)

	adjusted := slippage + spreadFactor + depthFactor
	if !finite(adjusted) {
		return fallback(SlippageFallback, ErrNonFinite)
	}
	return ok(clamp(adjusted, 0, maxSlippage))
}

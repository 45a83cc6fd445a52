package model

import (
	"math"

	"trade_sim/internal/domain"
)

const tolerance = 1e-9

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// referenceBook is the two-level book used across model tests:
// bids [[100,1],[99,2]], asks [[101,1],[102,2]].
func referenceBook() *domain.Snapshot {
	return &domain.Snapshot{
		Exchange:  "OKX",
		Symbol:    "BTC-USDT-SWAP",
		Asks:      []domain.PriceLevel{{Price: 101, Size: 1}, {Price: 102, Size: 2}},
		Bids:      []domain.PriceLevel{{Price: 100, Size: 1}, {Price: 99, Size: 2}},
		MidPrice:  100.5,
		SpreadPct: (101.0 - 100.0) / 100.5 * 100,
		AskDepth:  3,
		BidDepth:  3,
	}
}

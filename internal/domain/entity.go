package domain

import (
	"time"
)

// SimulationRecord is one journaled cost estimate.
type SimulationRecord struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	OrderType  string  `json:"order_type"`
	FeeTier    string  `json:"fee_tier"`
	Quantity   float64 `json:"quantity"`
	Volatility float64 `json:"volatility"`

	ExpectedSlippage     float64 `json:"expected_slippage"`
	ExpectedFees         float64 `json:"expected_fees"`
	MarketImpact         float64 `json:"market_impact"`
	NetCost              float64 `json:"net_cost"`
	MakerTakerProportion float64 `json:"maker_taker_proportion"`
	InternalLatency      float64 `json:"internal_latency"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// NewSimulationRecord flattens a request and its estimate into a record.
func NewSimulationRecord(id string, p SimulateParams, est CostEstimate) *SimulationRecord {
	return &SimulationRecord{
		ID:                   id,
		Exchange:             p.Exchange,
		Symbol:               p.Symbol,
		OrderType:            p.OrderType,
		FeeTier:              p.FeeTier,
		Quantity:             p.Quantity,
		Volatility:           p.Volatility,
		ExpectedSlippage:     est.ExpectedSlippage,
		ExpectedFees:         est.ExpectedFees,
		MarketImpact:         est.MarketImpact,
		NetCost:              est.NetCost,
		MakerTakerProportion: est.MakerTakerProportion,
		InternalLatency:      est.InternalLatency,
		CreatedAt:            est.Timestamp,
	}
}

// AppConfig represents runtime state kept across restarts (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

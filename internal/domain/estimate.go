package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Simulate request defaults.
const (
	DefaultExchange   = "OKX"
	DefaultSymbol     = "BTC-USDT"
	DefaultOrderType  = "market"
	DefaultQuantity   = 100.0
	DefaultVolatility = 0.02
	DefaultFeeTier    = "VIP0"
)

// CostEstimate is the result of one simulated order.
type CostEstimate struct {
	ExpectedSlippage     float64   `json:"expected_slippage"`
	ExpectedFees         float64   `json:"expected_fees"`
	MarketImpact         float64   `json:"market_impact"`
	NetCost              float64   `json:"net_cost"`
	MakerTakerProportion float64   `json:"maker_taker_proportion"`
	InternalLatency      float64   `json:"internal_latency"` // milliseconds
	Timestamp            time.Time `json:"timestamp"`
}

// SimulateParams is a simulate request after defaults are applied.
type SimulateParams struct {
	Exchange   string  `json:"exchange"`
	Symbol     string  `json:"symbol"`
	OrderType  string  `json:"orderType"`
	Quantity   float64 `json:"quantity"` // USD notional
	Volatility float64 `json:"volatility"`
	FeeTier    string  `json:"feeTier"`
}

// DefaultSimulateParams returns a request with every field at its default.
func DefaultSimulateParams() SimulateParams {
	return SimulateParams{
		Exchange:   DefaultExchange,
		Symbol:     DefaultSymbol,
		OrderType:  DefaultOrderType,
		Quantity:   DefaultQuantity,
		Volatility: DefaultVolatility,
		FeeTier:    DefaultFeeTier,
	}
}

// UnmarshalJSON fills absent fields with defaults. quantity and volatility
// accept either a JSON number or a numeric string.
func (p *SimulateParams) UnmarshalJSON(data []byte) error {
	var raw struct {
		Exchange   *string         `json:"exchange"`
		Symbol     *string         `json:"symbol"`
		OrderType  *string         `json:"orderType"`
		Quantity   json.RawMessage `json:"quantity"`
		Volatility json.RawMessage `json:"volatility"`
		FeeTier    *string         `json:"feeTier"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := DefaultSimulateParams()
	if raw.Exchange != nil {
		out.Exchange = *raw.Exchange
	}
	if raw.Symbol != nil {
		out.Symbol = *raw.Symbol
	}
	if raw.OrderType != nil {
		out.OrderType = *raw.OrderType
	}
	if raw.FeeTier != nil {
		out.FeeTier = *raw.FeeTier
	}

	var err error
	if out.Quantity, err = flexFloat(raw.Quantity, out.Quantity); err != nil {
		return fmt.Errorf("quantity: %w", err)
	}
	if out.Volatility, err = flexFloat(raw.Volatility, out.Volatility); err != nil {
		return fmt.Errorf("volatility: %w", err)
	}

	*p = out
	return nil
}

// flexFloat decodes a number or numeric string, returning def when absent.
func flexFloat(raw json.RawMessage, def float64) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

// PerformanceMetrics is the rolling-window summary served to clients.
type PerformanceMetrics struct {
	AvgProcessingMs      float64 `json:"avg_processing_ms"`
	AvgUpdateIntervalSec float64 `json:"avg_update_interval_sec"`
	UpdatesPerSecond     float64 `json:"updates_per_second"`
}

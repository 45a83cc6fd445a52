package model

import "math"

const (
	DefaultGamma   = 0.1
	DefaultEta     = 0.01
	DefaultEpsilon = 0.005

	// DefaultHorizon is the execution horizon in minutes.
	DefaultHorizon = 1.0

	// ImpactFallback is returned when the formula cannot be evaluated.
	ImpactFallback = 0.001

	maxImpact = 0.1
)

// ImpactParams are the Almgren-Chriss coefficients. Every field is used as
// given, so an explicit zero switches that term off.
type ImpactParams struct {
	Gamma   float64 `yaml:"gamma"`   // risk aversion
	Eta     float64 `yaml:"eta"`     // permanent impact
	Epsilon float64 `yaml:"epsilon"` // temporary impact
}

// DefaultImpactParams returns the stock coefficients.
func DefaultImpactParams() ImpactParams {
	return ImpactParams{Gamma: DefaultGamma, Eta: DefaultEta, Epsilon: DefaultEpsilon}
}

// MarketImpactModel estimates price impact as a fraction in [0, 0.1].
type MarketImpactModel struct {
	params ImpactParams
}

// NewMarketImpactModel creates a model with coefficients p. A zero Eta makes
// every evaluation fall back.
func NewMarketImpactModel(p ImpactParams) *MarketImpactModel {
	return &MarketImpactModel{params: p}
}

// Params returns the effective coefficients.
func (m *MarketImpactModel) Params() ImpactParams {
	return m.params
}

// Calculate evaluates the impact of trading quantity (base units) over
// horizon minutes at volatility sigma. price is accepted for the record but
// does not enter the formula.
func (m *MarketImpactModel) Calculate(sigma, quantity, price, horizon float64) Result {
	if !finite(sigma, quantity, price, horizon) {
		return fallback(ImpactFallback, ErrNonFinite)
	}
	if horizon == 0 {
		return fallback(ImpactFallback, ErrDivideByZero)
	}

	gamma, eta, epsilon := m.params.Gamma, m.params.Eta, m.params.Epsilon

	kappa := math.Sqrt(gamma * sigma * sigma / (2 * eta))
	tau := horizon / math.Max(quantity, 0.01)

	temporary := epsilon * quantity / horizon
	permanent := eta * quantity * math.Tanh(kappa*tau)

	total := temporary + permanent
	if !finite(kappa, tau, total) {
		return fallback(ImpactFallback, ErrNonFinite)
	}
	return ok(clamp(total, 0, maxImpact))
}

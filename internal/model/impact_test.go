package model

import (
	"errors"
	"math"
	"testing"
)

func TestMarketImpactModel_ReferenceValue(t *testing.T) {
	m := NewMarketImpactModel(DefaultImpactParams())

	q := 100 / 100.5
	kappa := math.Sqrt(DefaultGamma * 0.02 * 0.02 / (2 * DefaultEta))
	want := DefaultEpsilon*q/DefaultHorizon + DefaultEta*q*math.Tanh(kappa*DefaultHorizon/q)

	r := m.Calculate(0.02, q, 100.5, DefaultHorizon)
	if r.Fallback {
		t.Fatalf("Unexpected fallback: %v", r.Reason)
	}
	if !approxEqual(r.Value, want, tolerance) {
		t.Errorf("Impact = %v, want %v", r.Value, want)
	}
	if !approxEqual(r.Value, 0.0054219, 1e-6) {
		t.Errorf("Impact = %v, want about 0.0054219", r.Value)
	}
}

func TestMarketImpactModel_Monotone(t *testing.T) {
	m := NewMarketImpactModel(DefaultImpactParams())

	for _, sigma := range []float64{0, 0.01, 0.02, 0.5} {
		prev := -1.0
		for q := 0.0; q <= 25; q += 0.005 {
			r := m.Calculate(sigma, q, 95000, DefaultHorizon)
			if r.Fallback {
				t.Fatalf("sigma=%v q=%v: unexpected fallback %v", sigma, q, r.Reason)
			}
			if r.Value < 0 || r.Value > 0.1 {
				t.Fatalf("sigma=%v q=%v: impact %v out of [0, 0.1]", sigma, q, r.Value)
			}
			if r.Value < prev {
				t.Fatalf("sigma=%v q=%v: impact decreased from %v to %v", sigma, q, prev, r.Value)
			}
			prev = r.Value
		}
	}
}

func TestMarketImpactModel_Clamp(t *testing.T) {
	m := NewMarketImpactModel(DefaultImpactParams())

	if r := m.Calculate(0.02, 1e6, 95000, DefaultHorizon); r.Value != 0.1 {
		t.Errorf("Large order should clamp to 0.1, got %v", r.Value)
	}
	if r := m.Calculate(0.02, -5, 95000, DefaultHorizon); r.Value != 0 {
		t.Errorf("Negative quantity should clamp to 0, got %v", r.Value)
	}
}

func TestMarketImpactModel_Fallback(t *testing.T) {
	m := NewMarketImpactModel(DefaultImpactParams())

	tests := []struct {
		name                    string
		sigma, qty, px, horizon float64
		reason                  error
	}{
		{"NaN sigma", math.NaN(), 1, 100, 1, ErrNonFinite},
		{"Inf quantity", 0.02, math.Inf(1), 100, 1, ErrNonFinite},
		{"Inf price", 0.02, 1, math.Inf(-1), 1, ErrNonFinite},
		{"zero horizon", 0.02, 1, 100, 0, ErrDivideByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := m.Calculate(tt.sigma, tt.qty, tt.px, tt.horizon)
			if !r.Fallback || r.Value != ImpactFallback {
				t.Errorf("Expected fallback %v, got %+v", ImpactFallback, r)
			}
			if !errors.Is(r.Reason, tt.reason) {
				t.Errorf("Reason = %v, want %v", r.Reason, tt.reason)
			}
		})
	}
}

func TestMarketImpactModel_Params(t *testing.T) {
	params := DefaultImpactParams()
	params.Epsilon = 0.01
	m := NewMarketImpactModel(params)
	p := m.Params()
	if p.Gamma != DefaultGamma || p.Eta != DefaultEta || p.Epsilon != 0.01 {
		t.Errorf("Unexpected params %+v", p)
	}

	// Doubling epsilon doubles the temporary term only.
	base := NewMarketImpactModel(DefaultImpactParams()).Calculate(0, 1, 100, 1).Value
	bumped := m.Calculate(0, 1, 100, 1).Value
	if !approxEqual(bumped, 2*base, tolerance) {
		t.Errorf("With sigma=0 impact should be pure temporary: base=%v bumped=%v", base, bumped)
	}
}

func TestMarketImpactModel_ExplicitZeroParams(t *testing.T) {
	const sigma, q, horizon = 0.02, 1.0, 1.0
	kappa := math.Sqrt(DefaultGamma * sigma * sigma / (2 * DefaultEta))

	tests := []struct {
		name     string
		params   ImpactParams
		want     float64
		fallback bool
	}{
		{"zero gamma drops the permanent term", ImpactParams{Gamma: 0, Eta: DefaultEta, Epsilon: DefaultEpsilon}, DefaultEpsilon * q / horizon, false},
		{"zero epsilon drops the temporary term", ImpactParams{Gamma: DefaultGamma, Eta: DefaultEta, Epsilon: 0}, DefaultEta * q * math.Tanh(kappa*horizon/q), false},
		{"zero eta falls back", ImpactParams{Gamma: DefaultGamma, Eta: 0, Epsilon: DefaultEpsilon}, ImpactFallback, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMarketImpactModel(tt.params)
			if m.Params() != tt.params {
				t.Errorf("Params = %+v, want %+v", m.Params(), tt.params)
			}
			r := m.Calculate(sigma, q, 100, horizon)
			if r.Fallback != tt.fallback {
				t.Fatalf("Fallback = %v (%v), want %v", r.Fallback, r.Reason, tt.fallback)
			}
			if !approxEqual(r.Value, tt.want, tolerance) {
				t.Errorf("Impact = %v, want %v", r.Value, tt.want)
			}
		})
	}
}

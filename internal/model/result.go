// Package model holds the fixed-coefficient cost models used by the simulator.
// Every model reports either a computed value or a documented fallback; none
// of them ever returns NaN or Inf.
package model

import (
	"errors"
	"math"
)

var (
	// ErrNonFinite marks an input or intermediate that was NaN or Inf.
	ErrNonFinite = errors.New("non-finite value")

	// ErrDivideByZero marks a zero denominator the formula does not guard.
	ErrDivideByZero = errors.New("division by zero")

	// ErrNoSnapshot marks a call made without an order book.
	ErrNoSnapshot = errors.New("nil snapshot")

	// ErrUnknownTier marks a fee table missing even its default tier.
	ErrUnknownTier = errors.New("fee tier not configured")
)

// Result is the outcome of one model evaluation.
// When Fallback is set, Value holds the model's fixed fallback and Reason says why.
type Result struct {
	Value    float64
	Fallback bool
	Reason   error
}

func ok(v float64) Result {
	return Result{Value: v}
}

func fallback(v float64, reason error) Result {
	return Result{Value: v, Fallback: true, Reason: reason}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

package model

import "trade_sim/internal/domain"

// feeFallbackRate is applied to the notional when the fee cannot be computed.
const feeFallbackRate = 0.001

// FeeCalculator prices an order from a tier schedule.
type FeeCalculator struct {
	tiers       domain.FeeTierTable
	defaultTier string
}

// NewFeeCalculator creates a calculator. A nil table means the default OKX schedule.
func NewFeeCalculator(tiers domain.FeeTierTable, defaultTier string) *FeeCalculator {
	if tiers == nil {
		tiers = domain.DefaultFeeTiers()
	}
	if defaultTier == "" {
		defaultTier = domain.DefaultFeeTier
	}
	return &FeeCalculator{tiers: tiers, defaultTier: defaultTier}
}

// Calculate returns the fee in quote currency for quantityUSD notional with
// the given maker probability. Unknown tiers are priced at the default tier.
// Rebates (negative maker rates) can make the result negative.
func (c *FeeCalculator) Calculate(tier string, quantityUSD, makerProb float64) Result {
	fb := quantityUSD * feeFallbackRate
	if !finite(fb) {
		fb = 0
	}
	if !finite(quantityUSD, makerProb) {
		return fallback(fb, ErrNonFinite)
	}

	rate, found := c.tiers.Lookup(tier, c.defaultTier)
	if !found {
		if _, ok := c.tiers[c.defaultTier]; !ok {
			return fallback(fb, ErrUnknownTier)
		}
	}

	maker := rate.Maker.InexactFloat64()
	taker := rate.Taker.InexactFloat64()

	fee := quantityUSD * (maker*makerProb + taker*(1-makerProb))
	if !finite(fee) {
		return fallback(fb, ErrNonFinite)
	}
	return ok(fee)
}

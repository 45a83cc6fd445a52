package domain

import "github.com/shopspring/decimal"

// FeeRate is the maker/taker pair of one fee tier. Negative maker rates are rebates.
type FeeRate struct {
	Maker decimal.Decimal `yaml:"maker" json:"maker"`
	Taker decimal.Decimal `yaml:"taker" json:"taker"`
}

// FeeTierTable maps a tier name (e.g. "VIP0") to its rates.
type FeeTierTable map[string]FeeRate

// DefaultFeeTiers is the OKX spot schedule.
func DefaultFeeTiers() FeeTierTable {
	return FeeTierTable{
		"VIP0": {Maker: decimal.RequireFromString("0.0008"), Taker: decimal.RequireFromString("0.0010")},
		"VIP1": {Maker: decimal.RequireFromString("0.0006"), Taker: decimal.RequireFromString("0.0008")},
		"VIP2": {Maker: decimal.RequireFromString("0.0004"), Taker: decimal.RequireFromString("0.0006")},
		"VIP3": {Maker: decimal.RequireFromString("0.0002"), Taker: decimal.RequireFromString("0.0004")},
		"VIP4": {Maker: decimal.RequireFromString("0.0000"), Taker: decimal.RequireFromString("0.0002")},
		"VIP5": {Maker: decimal.RequireFromString("-0.0001"), Taker: decimal.RequireFromString("0.0001")},
	}
}

// Lookup returns the rates for tier, substituting fallback when tier is unknown.
// The bool reports whether tier itself was found.
func (t FeeTierTable) Lookup(tier, fallback string) (FeeRate, bool) {
	if r, ok := t[tier]; ok {
		return r, true
	}
	return t[fallback], false
}

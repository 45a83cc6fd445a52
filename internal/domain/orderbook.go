package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DepthLevels is the number of top levels summed into AskDepth/BidDepth.
const DepthLevels = 10

// PriceLevel is a single (price, size) entry of one book side.
// It is encoded on the wire as a two-element array: [price, size].
type PriceLevel struct {
	Price float64
	Size  float64
}

// MarshalJSON encodes the level as [price, size].
func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Price, l.Size})
}

// UnmarshalJSON decodes a [price, size] array.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	l.Price, l.Size = pair[0], pair[1]
	return nil
}

// Snapshot is an immutable point-in-time view of both book sides.
// The engine builds a new Snapshot per accepted update; readers must never
// modify the slices they receive.
type Snapshot struct {
	Exchange  string       `json:"exchange"`
	Symbol    string       `json:"symbol"`
	Timestamp string       `json:"timestamp"` // feed event time, not reinterpreted
	Asks      []PriceLevel `json:"asks"`      // ascending by price
	Bids      []PriceLevel `json:"bids"`      // descending by price
	MidPrice  float64      `json:"mid_price"`
	SpreadPct float64      `json:"spread_pct"`
	AskDepth  float64      `json:"ask_depth"`
	BidDepth  float64      `json:"bid_depth"`

	// LastUpdateTime is the wall-clock instant the snapshot was built.
	LastUpdateTime time.Time `json:"-"`
}

// BestAsk returns the lowest ask, if any.
func (s *Snapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// BestBid returns the highest bid, if any.
func (s *Snapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// Side returns the levels an order of the given direction would consume.
func (s *Snapshot) Side(isBuy bool) []PriceLevel {
	if isBuy {
		return s.Asks
	}
	return s.Bids
}

// SideDepth returns the top-of-book depth on the side an order would consume.
func (s *Snapshot) SideDepth(isBuy bool) float64 {
	if isBuy {
		return s.AskDepth
	}
	return s.BidDepth
}

// TotalDepth is AskDepth + BidDepth.
func (s *Snapshot) TotalDepth() float64 {
	return s.AskDepth + s.BidDepth
}

// FeedRecord is one raw L2 message as delivered by a feed source.
// Prices and sizes stay decimal strings until the engine parses them.
type FeedRecord struct {
	Timestamp string     `json:"timestamp"`
	Exchange  string     `json:"exchange,omitempty"`
	Symbol    string     `json:"symbol,omitempty"`
	Asks      [][]string `json:"asks"`
	Bids      [][]string `json:"bids"`
}

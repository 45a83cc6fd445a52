// Package mock generates a synthetic L2 feed used when the live feed is down.
package mock

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"trade_sim/internal/domain"
)

const (
	// Levels is the number of levels generated per side.
	Levels = 10

	priceJitter = 500.0 // mid wanders uniformly in ±priceJitter around the base
	levelStep   = 10.0
	levelJitter = 5.0
)

// Generator produces random but well-formed order books around a base price.
type Generator struct {
	exchange  string
	symbol    string
	basePrice float64
	interval  time.Duration

	rng *rand.Rand
	now func() time.Time
}

var _ domain.FeedSource = (*Generator)(nil)

// NewGenerator creates a generator. A zero seed draws a random one.
func NewGenerator(exchange, symbol string, basePrice float64, interval time.Duration, seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{
		exchange:  exchange,
		symbol:    symbol,
		basePrice: basePrice,
		interval:  interval,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:       time.Now,
	}
}

// Next builds one record. Not safe for concurrent use.
func (g *Generator) Next() domain.FeedRecord {
	mid := g.basePrice + (g.rng.Float64()*2*priceJitter - priceJitter)

	rec := domain.FeedRecord{
		Timestamp: g.now().UTC().Format(time.RFC3339Nano),
		Exchange:  g.exchange,
		Symbol:    g.symbol,
		Asks:      make([][]string, Levels),
		Bids:      make([][]string, Levels),
	}
	for i := 0; i < Levels; i++ {
		step := float64(i+1) * levelStep
		askPx := mid + step + g.rng.Float64()*levelJitter
		askSz := g.rng.Float64()*10 + 1
		bidPx := mid - step - g.rng.Float64()*levelJitter
		bidSz := g.rng.Float64()*20 + 1

		rec.Asks[i] = []string{formatFloat(askPx), formatFloat(askSz)}
		rec.Bids[i] = []string{formatFloat(bidPx), formatFloat(bidSz)}
	}
	return rec
}

// Stream emits a record every interval until ctx is cancelled.
// Records are dropped when out is full.
func (g *Generator) Stream(ctx context.Context, out chan<- domain.FeedRecord) error {
	slog.Info("Using mock data generator",
		slog.String("symbol", g.symbol),
		slog.Duration("interval", g.interval),
	)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case out <- g.Next():
		case <-ctx.Done():
			return ctx.Err()
		default:
			slog.Warn("Feed inbox full, dropping mock record")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package engine

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"trade_sim/internal/domain"
	"trade_sim/internal/infra"

	"github.com/shopspring/decimal"
)

// UpdateTracker observes the cadence of accepted updates.
type UpdateTracker interface {
	TrackUpdate()
}

// OrderBookEngine owns the book for one instrument. Update builds a fresh
// Snapshot per accepted record and swaps it in atomically; readers call
// Latest and never see a half-built book.
type OrderBookEngine struct {
	exchange string
	symbol   string

	inbox  chan domain.FeedRecord
	latest atomic.Pointer[domain.Snapshot]

	mu sync.Mutex // serializes Update; never held by readers

	tracker   UpdateTracker
	publisher domain.SnapshotPublisher
	metrics   *infra.Metrics

	now func() time.Time
}

// NewOrderBookEngine creates an engine. tracker, publisher and metrics may be nil.
func NewOrderBookEngine(exchange, symbol string, inboxSize int, tracker UpdateTracker, publisher domain.SnapshotPublisher, metrics *infra.Metrics) *OrderBookEngine {
	return &OrderBookEngine{
		exchange:  exchange,
		symbol:    symbol,
		inbox:     make(chan domain.FeedRecord, inboxSize),
		tracker:   tracker,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Inbox returns the record channel. Feed workers send here.
func (e *OrderBookEngine) Inbox() chan<- domain.FeedRecord {
	return e.inbox
}

// Exchange returns the venue this engine tracks.
func (e *OrderBookEngine) Exchange() string { return e.exchange }

// Symbol returns the instrument this engine tracks.
func (e *OrderBookEngine) Symbol() string { return e.symbol }

// Latest returns the installed snapshot, or nil before the first accepted update.
// The returned value is shared and must not be modified.
func (e *OrderBookEngine) Latest() *domain.Snapshot {
	return e.latest.Load()
}

// Run drains the inbox until ctx is cancelled. It must run in a single goroutine.
func (e *OrderBookEngine) Run(ctx context.Context) {
	slog.Info("Order book engine started",
		slog.String("exchange", e.exchange),
		slog.String("symbol", e.symbol),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Order book engine stopping...")
			return
		case rec := <-e.inbox:
			e.process(ctx, rec)
		}
	}
}

func (e *OrderBookEngine) process(ctx context.Context, rec domain.FeedRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while applying feed record", slog.Any("panic", r))
			e.recordRejected()
		}
	}()

	snap, err := e.Update(rec)
	if err != nil {
		slog.Warn("Feed record rejected",
			slog.String("timestamp", rec.Timestamp),
			slog.Any("error", err),
		)
		return
	}

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, snap); err != nil {
			slog.Warn("Snapshot publish failed", slog.Any("error", err))
			if e.metrics != nil {
				e.metrics.RecordPublishError()
			}
		}
	}
}

// Update validates rec and installs a new snapshot built from it. On error the
// installed snapshot is left untouched and the error is a *domain.RejectError.
func (e *OrderBookEngine) Update(rec domain.FeedRecord) (*domain.Snapshot, error) {
	start := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.build(rec, e.latest.Load())
	if err != nil {
		e.recordRejected()
		return nil, err
	}
	e.latest.Store(snap)

	if e.tracker != nil {
		e.tracker.TrackUpdate()
	}
	if e.metrics != nil {
		e.metrics.RecordUpdate(e.now().Sub(start).Nanoseconds())
	}
	return snap, nil
}

func (e *OrderBookEngine) recordRejected() {
	if e.metrics != nil {
		e.metrics.RecordRejected()
	}
}

func (e *OrderBookEngine) build(rec domain.FeedRecord, prev *domain.Snapshot) (*domain.Snapshot, error) {
	if rec.Timestamp == "" {
		return nil, domain.NewRejectError("missing timestamp", nil)
	}

	asks, err := parseSide("asks", rec.Asks)
	if err != nil {
		return nil, err
	}
	bids, err := parseSide("bids", rec.Bids)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(asks, func(a, b domain.PriceLevel) int {
		return cmp.Compare(a.Price, b.Price)
	})
	slices.SortStableFunc(bids, func(a, b domain.PriceLevel) int {
		return cmp.Compare(b.Price, a.Price)
	})

	snap := &domain.Snapshot{
		Exchange:  e.exchange,
		Symbol:    e.symbol,
		Timestamp: rec.Timestamp,
		Asks:      asks,
		Bids:      bids,
		AskDepth:  depth(asks),
		BidDepth:  depth(bids),
	}

	// A one-sided book keeps the last two-sided mid and spread.
	if len(asks) > 0 && len(bids) > 0 {
		bestAsk, bestBid := asks[0].Price, bids[0].Price
		snap.MidPrice = (bestAsk + bestBid) / 2
		if snap.MidPrice > 0 {
			snap.SpreadPct = (bestAsk - bestBid) / snap.MidPrice * 100
		}
	} else if prev != nil {
		snap.MidPrice = prev.MidPrice
		snap.SpreadPct = prev.SpreadPct
	}

	snap.LastUpdateTime = e.now()
	return snap, nil
}

func parseSide(side string, rows [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) != 2 {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: expected [price, size], got %d fields", side, i, len(row)), nil)
		}

		price, err := decimal.NewFromString(row[0])
		if err != nil {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: bad price %q", side, i, row[0]), err)
		}
		size, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: bad size %q", side, i, row[1]), err)
		}
		if !price.IsPositive() {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: price %s is not positive", side, i, row[0]), nil)
		}
		if size.IsNegative() {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: size %s is negative", side, i, row[1]), nil)
		}

		p, s := price.InexactFloat64(), size.InexactFloat64()
		if math.IsInf(p, 0) || math.IsInf(s, 0) {
			return nil, domain.NewRejectError(fmt.Sprintf("%s[%d]: value out of range", side, i), nil)
		}
		levels = append(levels, domain.PriceLevel{Price: p, Size: s})
	}
	return levels, nil
}

func depth(levels []domain.PriceLevel) float64 {
	sum := 0.0
	for _, l := range levels[:min(len(levels), domain.DepthLevels)] {
		sum += l.Size
	}
	return sum
}

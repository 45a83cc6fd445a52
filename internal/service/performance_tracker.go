package service

import (
	"math"
	"sync"
	"time"

	"trade_sim/internal/domain"
)

// DefaultWindowSize is the number of samples each window keeps.
const DefaultWindowSize = 100

// minUpdateInterval floors the mean interval before inverting it.
const minUpdateInterval = 0.001

// PerformanceTracker keeps rolling windows of simulation latency and feed
// update cadence. It is safe for concurrent use.
type PerformanceTracker struct {
	mu         sync.Mutex
	processing *rollingWindow // milliseconds
	intervals  *rollingWindow // seconds
	lastUpdate time.Time

	now func() time.Time
}

// NewPerformanceTracker creates a tracker. A non-positive windowSize means DefaultWindowSize.
func NewPerformanceTracker(windowSize int) *PerformanceTracker {
	return newPerformanceTracker(windowSize, time.Now)
}

func newPerformanceTracker(windowSize int, now func() time.Time) *PerformanceTracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &PerformanceTracker{
		processing: newRollingWindow(windowSize),
		intervals:  newRollingWindow(windowSize),
		lastUpdate: now(),
		now:        now,
	}
}

// TrackProcessing records one simulation's latency in milliseconds.
func (t *PerformanceTracker) TrackProcessing(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processing.push(ms)
}

// TrackUpdate records the interval since the previous accepted update.
// The first interval is measured from tracker creation.
func (t *PerformanceTracker) TrackUpdate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.intervals.push(now.Sub(t.lastUpdate).Seconds())
	t.lastUpdate = now
}

// Metrics returns the current window averages.
func (t *PerformanceTracker) Metrics() domain.PerformanceMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	avgInterval := t.intervals.mean()
	return domain.PerformanceMetrics{
		AvgProcessingMs:      t.processing.mean(),
		AvgUpdateIntervalSec: avgInterval,
		UpdatesPerSecond:     1 / math.Max(avgInterval, minUpdateInterval),
	}
}

// ProcessingSamples returns the retained latency samples, oldest first.
func (t *PerformanceTracker) ProcessingSamples() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.processing.samples()
}

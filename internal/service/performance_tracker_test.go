package service

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestPerformanceTracker_WindowEviction(t *testing.T) {
	tr := NewPerformanceTracker(3)

	for _, ms := range []float64{1, 2, 3, 4, 5} {
		tr.TrackProcessing(ms)
	}

	got := tr.ProcessingSamples()
	want := []float64{3, 4, 5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Samples = %v, want %v", got, want)
	}
	if m := tr.Metrics(); m.AvgProcessingMs != 4 {
		t.Errorf("AvgProcessingMs = %v, want 4", m.AvgProcessingMs)
	}
}

func TestPerformanceTracker_Empty(t *testing.T) {
	tr := NewPerformanceTracker(0)

	m := tr.Metrics()
	if m.AvgProcessingMs != 0 || m.AvgUpdateIntervalSec != 0 {
		t.Errorf("Expected zero averages, got %+v", m)
	}
	// Inverse of the 1ms floor.
	if m.UpdatesPerSecond != 1000 {
		t.Errorf("UpdatesPerSecond = %v, want 1000", m.UpdatesPerSecond)
	}
	if len(tr.processing.values) != DefaultWindowSize {
		t.Errorf("Window size = %d, want %d", len(tr.processing.values), DefaultWindowSize)
	}
}

func TestPerformanceTracker_UpdateCadence(t *testing.T) {
	clock := newFakeClock()
	tr := newPerformanceTracker(3, clock.Now)

	// Intervals: 1s, 2s, 3s, 4s -> window keeps 2, 3, 4.
	for _, s := range []int{1, 2, 3, 4} {
		clock.Advance(time.Duration(s) * time.Second)
		tr.TrackUpdate()
	}

	m := tr.Metrics()
	if m.AvgUpdateIntervalSec != 3 {
		t.Errorf("AvgUpdateIntervalSec = %v, want 3", m.AvgUpdateIntervalSec)
	}
	if m.UpdatesPerSecond != 1.0/3 {
		t.Errorf("UpdatesPerSecond = %v, want %v", m.UpdatesPerSecond, 1.0/3)
	}
}

func TestPerformanceTracker_BurstFloor(t *testing.T) {
	clock := newFakeClock()
	tr := newPerformanceTracker(10, clock.Now)

	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Microsecond)
		tr.TrackUpdate()
	}

	if m := tr.Metrics(); m.UpdatesPerSecond != 1000 {
		t.Errorf("UpdatesPerSecond = %v, want floor-limited 1000", m.UpdatesPerSecond)
	}
}

func TestPerformanceTracker_Concurrent(t *testing.T) {
	tr := NewPerformanceTracker(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.TrackProcessing(1)
				tr.TrackUpdate()
				_ = tr.Metrics()
			}
		}()
	}
	wg.Wait()

	if n := len(tr.ProcessingSamples()); n != 50 {
		t.Errorf("Expected a full window of 50, got %d", n)
	}
	if m := tr.Metrics(); m.AvgProcessingMs != 1 {
		t.Errorf("AvgProcessingMs = %v, want 1", m.AvgProcessingMs)
	}
}

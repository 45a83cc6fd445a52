package infra

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RecordUpdate(t *testing.T) {
	m := &Metrics{}

	m.RecordUpdate(1000)
	m.RecordUpdate(2000)
	m.RecordUpdate(3000)
	m.RecordRejected()

	snap := m.Snapshot()

	if snap.UpdatesAccepted != 3 {
		t.Errorf("Expected 3 updates, got %d", snap.UpdatesAccepted)
	}
	if snap.UpdatesRejected != 1 {
		t.Errorf("Expected 1 rejection, got %d", snap.UpdatesRejected)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgUpdateNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgUpdateNs)
	}
}

func TestMetrics_Fallbacks(t *testing.T) {
	m := &Metrics{}

	m.RecordFallback(ModelSlippage)
	m.RecordFallback(ModelSlippage)
	m.RecordFallback(ModelFee)
	m.RecordFallback("unknown")

	snap := m.Snapshot()
	if snap.Fallbacks[ModelSlippage] != 2 {
		t.Errorf("Expected 2 slippage fallbacks, got %d", snap.Fallbacks[ModelSlippage])
	}
	if snap.Fallbacks[ModelFee] != 1 {
		t.Errorf("Expected 1 fee fallback, got %d", snap.Fallbacks[ModelFee])
	}
	if snap.Fallbacks[ModelImpact] != 0 {
		t.Errorf("Expected 0 impact fallbacks, got %d", snap.Fallbacks[ModelImpact])
	}
}

func TestMetrics_Connections(t *testing.T) {
	m := &Metrics{}

	m.IncrementConnections()
	m.IncrementConnections()
	m.IncrementConnections()

	snap := m.Snapshot()
	if snap.ActiveConnections != 3 {
		t.Errorf("Expected 3 connections, got %d", snap.ActiveConnections)
	}

	m.DecrementConnections()
	snap = m.Snapshot()
	if snap.ActiveConnections != 2 {
		t.Errorf("Expected 2 connections, got %d", snap.ActiveConnections)
	}
}

func TestMetrics_CircuitState(t *testing.T) {
	m := &Metrics{}

	if m.Snapshot().CircuitOpen {
		t.Error("Expected circuit closed initially")
	}

	m.SetCircuitState(true)
	if !m.Snapshot().CircuitOpen {
		t.Error("Expected circuit open")
	}

	m.SetCircuitState(false)
	if m.Snapshot().CircuitOpen {
		t.Error("Expected circuit closed")
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}

	m.RecordUpdate(1000)
	m.RecordSimulationError()
	m.RecordFallback(ModelImpact)
	m.IncrementConnections()
	m.SetMockFeed(true)

	m.Reset()
	snap := m.Snapshot()

	if snap.UpdatesAccepted != 0 {
		t.Error("Expected 0 updates after reset")
	}
	if snap.SimulationErrors != 0 {
		t.Error("Expected 0 errors after reset")
	}
	if snap.Fallbacks[ModelImpact] != 0 {
		t.Error("Expected 0 fallbacks after reset")
	}
	if snap.ActiveConnections != 0 {
		t.Error("Expected 0 connections after reset")
	}
	if snap.MockFeed {
		t.Error("Expected mock feed flag cleared after reset")
	}
}

func TestMetrics_Collector(t *testing.T) {
	m := NewMetrics()
	m.RecordUpdate(500)
	m.RecordUpdate(500)
	m.RecordRejected()
	m.RecordSimulation(2 * time.Millisecond)
	m.SetCircuitState(true)

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(m); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	expected := `
# HELP tradesim_feed_updates_total Feed records processed by the order book engine
# TYPE tradesim_feed_updates_total counter
tradesim_feed_updates_total{result="accepted"} 2
tradesim_feed_updates_total{result="rejected"} 1
# HELP tradesim_feed_circuit_open 1 when the live feed circuit breaker is open
# TYPE tradesim_feed_circuit_open gauge
tradesim_feed_circuit_open 1
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"tradesim_feed_updates_total", "tradesim_feed_circuit_open")
	if err != nil {
		t.Error(err)
	}

	if n := testutil.CollectAndCount(m, "tradesim_simulation_latency_ms"); n != 1 {
		t.Errorf("Expected latency histogram to be collected once, got %d", n)
	}
}

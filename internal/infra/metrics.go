package infra

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Model names used as the "model" label on fallback counts.
const (
	ModelSlippage   = "slippage"
	ModelMakerTaker = "maker_taker"
	ModelFee        = "fee"
	ModelImpact     = "impact"
)

var modelNames = [...]string{ModelSlippage, ModelMakerTaker, ModelFee, ModelImpact}

// Metrics keeps process counters in atomics and exposes them to Prometheus
// as a Collector. The zero value is usable; NewMetrics also sets up the
// simulation latency histogram.
type Metrics struct {
	// Counters
	updatesAccepted  atomic.Uint64
	updatesRejected  atomic.Uint64
	simulations      atomic.Uint64
	simulationErrors atomic.Uint64
	fallbacks        [len(modelNames)]atomic.Uint64
	publishErrors    atomic.Uint64

	// Update latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	circuitOpen       atomic.Int32 // 1 = open, 0 = closed
	feedMock          atomic.Int32 // 1 = synthetic feed active

	simLatency prometheus.Histogram
}

// NewMetrics creates a Metrics with its latency histogram.
func NewMetrics() *Metrics {
	return &Metrics{
		simLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradesim_simulation_latency_ms",
			Help:    "Internal latency of cost simulations in milliseconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		}),
	}
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = NewMetrics()

// RecordUpdate records an accepted feed record and the time it took to apply.
func (m *Metrics) RecordUpdate(latencyNs int64) {
	m.updatesAccepted.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRejected records a feed record that failed validation.
func (m *Metrics) RecordRejected() {
	m.updatesRejected.Add(1)
}

// RecordSimulation records a completed simulation.
func (m *Metrics) RecordSimulation(latency time.Duration) {
	m.simulations.Add(1)
	if m.simLatency != nil {
		m.simLatency.Observe(float64(latency) / float64(time.Millisecond))
	}
}

// RecordSimulationError records a simulation that returned an error.
func (m *Metrics) RecordSimulationError() {
	m.simulationErrors.Add(1)
}

// RecordFallback records a model returning its fallback value. Unknown names are ignored.
func (m *Metrics) RecordFallback(model string) {
	for i, name := range modelNames {
		if name == model {
			m.fallbacks[i].Add(1)
			return
		}
	}
}

// RecordPublishError records a failed snapshot publish.
func (m *Metrics) RecordPublishError() {
	m.publishErrors.Add(1)
}

// IncrementConnections increments active client connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active client connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetCircuitState sets the circuit breaker state (true = open).
func (m *Metrics) SetCircuitState(open bool) {
	m.circuitOpen.Store(boolToInt32(open))
}

// SetMockFeed marks whether the synthetic feed is the active source.
func (m *Metrics) SetMockFeed(active bool) {
	m.feedMock.Store(boolToInt32(active))
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	UpdatesAccepted   uint64
	UpdatesRejected   uint64
	Simulations       uint64
	SimulationErrors  uint64
	Fallbacks         map[string]uint64
	PublishErrors     uint64
	AvgUpdateNs       int64
	ActiveConnections int32
	CircuitOpen       bool
	MockFeed          bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	fallbacks := make(map[string]uint64, len(modelNames))
	for i, name := range modelNames {
		fallbacks[name] = m.fallbacks[i].Load()
	}

	return MetricsSnapshot{
		UpdatesAccepted:   m.updatesAccepted.Load(),
		UpdatesRejected:   m.updatesRejected.Load(),
		Simulations:       m.simulations.Load(),
		SimulationErrors:  m.simulationErrors.Load(),
		Fallbacks:         fallbacks,
		PublishErrors:     m.publishErrors.Load(),
		AvgUpdateNs:       avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		CircuitOpen:       m.circuitOpen.Load() == 1,
		MockFeed:          m.feedMock.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all counters and gauges (for testing). The histogram is kept.
func (m *Metrics) Reset() {
	m.updatesAccepted.Store(0)
	m.updatesRejected.Store(0)
	m.simulations.Store(0)
	m.simulationErrors.Store(0)
	for i := range m.fallbacks {
		m.fallbacks[i].Store(0)
	}
	m.publishErrors.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.circuitOpen.Store(0)
	m.feedMock.Store(0)
}

var (
	descUpdates = prometheus.NewDesc("tradesim_feed_updates_total",
		"Feed records processed by the order book engine", []string{"result"}, nil)
	descSimulations = prometheus.NewDesc("tradesim_simulations_total",
		"Cost simulations served", []string{"result"}, nil)
	descFallbacks = prometheus.NewDesc("tradesim_model_fallbacks_total",
		"Model evaluations that returned the fallback value", []string{"model"}, nil)
	descPublishErrors = prometheus.NewDesc("tradesim_publish_errors_total",
		"Snapshot publishes that failed", nil, nil)
	descAvgUpdate = prometheus.NewDesc("tradesim_update_apply_avg_seconds",
		"Mean time to apply an accepted feed record", nil, nil)
	descConnections = prometheus.NewDesc("tradesim_ws_clients",
		"Connected websocket clients", nil, nil)
	descCircuitOpen = prometheus.NewDesc("tradesim_feed_circuit_open",
		"1 when the live feed circuit breaker is open", nil, nil)
	descMockFeed = prometheus.NewDesc("tradesim_feed_mock_active",
		"1 when the synthetic feed is the active source", nil, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descUpdates
	ch <- descSimulations
	ch <- descFallbacks
	ch <- descPublishErrors
	ch <- descAvgUpdate
	ch <- descConnections
	ch <- descCircuitOpen
	ch <- descMockFeed
	if m.simLatency != nil {
		m.simLatency.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()

	ch <- prometheus.MustNewConstMetric(descUpdates, prometheus.CounterValue, float64(s.UpdatesAccepted), "accepted")
	ch <- prometheus.MustNewConstMetric(descUpdates, prometheus.CounterValue, float64(s.UpdatesRejected), "rejected")
	ch <- prometheus.MustNewConstMetric(descSimulations, prometheus.CounterValue, float64(s.Simulations), "ok")
	ch <- prometheus.MustNewConstMetric(descSimulations, prometheus.CounterValue, float64(s.SimulationErrors), "error")
	for _, name := range modelNames {
		ch <- prometheus.MustNewConstMetric(descFallbacks, prometheus.CounterValue, float64(s.Fallbacks[name]), name)
	}
	ch <- prometheus.MustNewConstMetric(descPublishErrors, prometheus.CounterValue, float64(s.PublishErrors))
	ch <- prometheus.MustNewConstMetric(descAvgUpdate, prometheus.GaugeValue, float64(s.AvgUpdateNs)/1e9)
	ch <- prometheus.MustNewConstMetric(descConnections, prometheus.GaugeValue, float64(s.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(descCircuitOpen, prometheus.GaugeValue, float64(boolToInt32(s.CircuitOpen)))
	ch <- prometheus.MustNewConstMetric(descMockFeed, prometheus.GaugeValue, float64(boolToInt32(s.MockFeed)))
	if m.simLatency != nil {
		m.simLatency.Collect(ch)
	}
}

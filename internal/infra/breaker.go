package infra

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// NewFeedBreaker builds the circuit breaker guarding a live feed. It trips
// after `failures` consecutive failed sessions and stays open for openTimeout
// before letting one trial session through.
func NewFeedBreaker(name string, failures uint32, openTimeout time.Duration, m *Metrics) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Feed circuit state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if m != nil {
				m.SetCircuitState(to == gobreaker.StateOpen)
			}
		},
	})
}

package health

import "github.com/uber-go/tally"

// Metrics holds the gauges and counters emitted by the heartbeat loop.
type Metrics struct {
	Init      tally.Counter
	Heartbeat tally.Gauge
}

// NewMetrics returns a new instance of Metrics.
func NewMetrics(scope tally.Scope) *Metrics {
	return &Metrics{
		Init:      scope.Counter("init"),
		Heartbeat: scope.Gauge("heartbeat"),
	}
}

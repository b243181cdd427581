package analyzer

import (
	"sync"

	"github.com/uber/workloadcompactor/pkg/graph"
)

// Synthetic is a test/synthetic Analyzer that returns a fixed or
// test-injected latency per flow, grounded on the teacher's pattern of
// swappable strategy implementations behind one interface (e.g.
// placement/plugins.Strategy's batch/mimir implementations) so the
// admission and placement layers can be unit tested without paying for
// DNC computation.
type Synthetic struct {
	mu        sync.Mutex
	latencies map[int64]float64
	// Default is returned for any flow id without an explicit override.
	Default float64
}

// NewSynthetic returns a Synthetic analyzer with a zero default latency.
func NewSynthetic() *Synthetic {
	return &Synthetic{latencies: make(map[int64]float64)}
}

// SetLatency overrides the latency returned for flowID.
func (s *Synthetic) SetLatency(flowID int64, latency float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[flowID] = latency
}

// ComputeFlowLatency implements Analyzer.
func (s *Synthetic) ComputeFlowLatency(g *graph.Graph, flowID int64) (float64, error) {
	flow, ok := g.FlowByID(flowID)
	if !ok {
		return 0, errFlowNotFound(flowID)
	}
	if flow.IgnoreLatency {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.latencies[flowID]; ok {
		return v, nil
	}
	return s.Default, nil
}

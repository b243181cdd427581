package analyzer

import (
	"github.com/pkg/errors"

	"github.com/uber/workloadcompactor/pkg/graph"
)

// workloadCompactor wraps an inner analyzer (aggregateTwoHop) and additionally
// requires the flow to carry an initialized (r,b) shaper curve — the
// optimizer in pkg/optimizer is what populates it. A flow with a zero
// shaper has not yet been through a successful optimizer solve.
type workloadCompactor struct {
	inner Analyzer
}

// ComputeFlowLatency implements Analyzer.
func (w workloadCompactor) ComputeFlowLatency(g *graph.Graph, flowID int64) (float64, error) {
	flow, ok := g.FlowByID(flowID)
	if !ok {
		return 0, errFlowNotFound(flowID)
	}
	if !flow.IgnoreLatency && flow.Shaper.Rate == 0 && flow.Shaper.Burst == 0 {
		return 0, errors.Errorf("flow %q has an uninitialized shaper curve; run the optimizer first", flow.Name)
	}
	return w.inner.ComputeFlowLatency(g, flowID)
}

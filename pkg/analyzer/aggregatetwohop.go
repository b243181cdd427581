package analyzer

import (
	"github.com/uber/workloadcompactor/pkg/dnc"
	"github.com/uber/workloadcompactor/pkg/graph"
)

// aggregateTwoHop specializes the analysis to the canonical ≤2-hop path
// (client-side link, server-side link) described in §4.4: at the first
// hop, strictly-higher-priority flows subtract from service and
// same-priority flows aggregate; at the second hop, every other flow
// that also reaches it (regardless of its own first hop) is accounted
// for before a single DNCLatencyBound evaluation. Paths longer than two
// hops fall through to a zero contribution from this analysis, per the
// open question recorded in DESIGN.md (§9 note 2) — this mirrors the
// original implementation's narrow `calcClientLatency`, which is not a
// general solver.
type aggregateTwoHop struct{}

// ComputeFlowLatency implements Analyzer.
func (a aggregateTwoHop) ComputeFlowLatency(g *graph.Graph, flowID int64) (float64, error) {
	flow, ok := g.FlowByID(flowID)
	if !ok {
		return 0, errFlowNotFound(flowID)
	}
	if flow.IgnoreLatency {
		return 0, nil
	}
	if len(flow.Path) > 2 {
		return totalFlowLatency(flow, 0), nil
	}

	c := newHopComputer(g)
	hopLatency, err := a.compute(c, flow)
	if err != nil {
		return 0, err
	}
	return totalFlowLatency(flow, hopLatency), nil
}

func (a aggregateTwoHop) compute(c *hopComputer, flow *graph.Flow) (float64, error) {
	if len(flow.Path) == 0 {
		return 0, nil
	}
	if len(flow.Path) == 1 {
		service, err := c.leftoverServiceAboveClass(flow.Path[0], flow.Priority, flow.ID)
		if err != nil {
			return 0, err
		}
		classAgg, err := c.classAggregateAtHop(flow.Path[0], flow.Priority)
		if err != nil {
			return 0, err
		}
		return dnc.LatencyBound(classAgg, service), nil
	}

	q1, q2 := flow.Path[0], flow.Path[1]

	leftover1, err := c.leftoverServiceAboveClass(q1, flow.Priority, flow.ID)
	if err != nil {
		return 0, err
	}

	// Second hop: strictly-higher-priority flows reaching q2, regardless
	// of their own first hop, via each one's own chain up to q2.
	leftover2, err := c.leftoverServiceAboveClass(q2, flow.Priority, flow.ID)
	if err != nil {
		return 0, err
	}

	finalService := dnc.Convolve(leftover1, leftover2)

	classAgg, err := c.classAggregateAtHop(q2, flow.Priority)
	if err != nil {
		return 0, err
	}

	return dnc.LatencyBound(classAgg, finalService), nil
}

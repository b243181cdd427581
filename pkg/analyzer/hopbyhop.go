package analyzer

import (
	"github.com/pkg/errors"

	"github.com/uber/workloadcompactor/pkg/dnc"
	"github.com/uber/workloadcompactor/pkg/graph"
)

func errFlowNotFound(flowID int64) error {
	return errors.Errorf("flow id %d not found", flowID)
}

// hopByHop implements the hop-by-hop analysis of §4.4: at each hop, the
// service curve is the queue's constant service with strictly
// higher-priority traffic's leftover subtracted, and a same-priority
// flow's latency contribution at that hop is the latency bound of its
// priority class's aggregate arrival against that leftover service — so
// every flow sharing a (queue, priority) pair gets the same contribution
// there, matching spec §8 scenario 1.
type hopByHop struct{}

// ComputeFlowLatency implements Analyzer.
func (hopByHop) ComputeFlowLatency(g *graph.Graph, flowID int64) (float64, error) {
	flow, ok := g.FlowByID(flowID)
	if !ok {
		return 0, errFlowNotFound(flowID)
	}
	if flow.IgnoreLatency {
		return 0, nil
	}

	c := newHopComputer(g)
	hopLatency, err := c.flowTotalHopLatency(flowID)
	if err != nil {
		return 0, err
	}
	return totalFlowLatency(flow, hopLatency), nil
}

// hopComputer memoizes, per flow, the arrival curve entering each hop of
// its path. Leftover service curves are not cached; they are recomputed
// on each visit to a hop.
type hopComputer struct {
	g *graph.Graph

	// arrivalAtHop[flowID][hopIndex] is the arrival curve entering that
	// hop (index 0 = the flow's own shaper curve, before any queue).
	arrivalAtHop map[int64][]dnc.Arrival
	inProgress   map[int64]bool
}

func newHopComputer(g *graph.Graph) *hopComputer {
	return &hopComputer{
		g:            g,
		arrivalAtHop: make(map[int64][]dnc.Arrival),
		inProgress:   make(map[int64]bool),
	}
}

// arrivalsFor returns, for the given flow, the arrival curve entering
// each hop of its path (length = len(path)+1; the last entry is the
// arrival departing the final hop).
func (c *hopComputer) arrivalsFor(flowID int64) ([]dnc.Arrival, error) {
	if cached, ok := c.arrivalAtHop[flowID]; ok {
		return cached, nil
	}
	if c.inProgress[flowID] {
		return nil, errors.Errorf("cycle detected computing hop arrivals for flow %d", flowID)
	}
	c.inProgress[flowID] = true
	defer delete(c.inProgress, flowID)

	flow, ok := c.g.FlowByID(flowID)
	if !ok {
		return nil, errFlowNotFound(flowID)
	}

	arrivals := make([]dnc.Arrival, 0, len(flow.Path)+1)
	current := shaperArrival(flow)
	arrivals = append(arrivals, current)

	for _, qid := range flow.Path {
		service, err := c.leftoverServiceAboveClass(qid, flow.Priority, flowID)
		if err != nil {
			return nil, err
		}
		current = dnc.OutputArrival(current, service)
		arrivals = append(arrivals, current)
	}

	c.arrivalAtHop[flowID] = arrivals
	return arrivals, nil
}

// hopIndexInPath returns the index of queueID within flow's path.
func hopIndexInPath(flow *graph.Flow, queueID int64) int {
	for i, qid := range flow.Path {
		if qid == queueID {
			return i
		}
	}
	return -1
}

// leftoverServiceAboveClass returns the service curve remaining at
// queueID after subtracting the aggregate arrival of every flow with
// strictly higher priority (lower Priority value) than priority,
// excluding excludeFlowID's own chain (it is one of the flows being
// aggregated for its own class, not the higher-priority set).
func (c *hopComputer) leftoverServiceAboveClass(queueID int64, priority int32, excludeFlowID int64) (dnc.Service, error) {
	q, ok := c.g.QueueByID(queueID)
	if !ok {
		return dnc.Service{}, errors.Errorf("queue id %d not found", queueID)
	}

	higher := dnc.ZeroArrival
	for _, fid := range q.Flows() {
		other, ok := c.g.FlowByID(fid)
		if !ok {
			continue
		}
		if other.Priority >= priority {
			continue
		}
		otherArrivals, err := c.arrivalsFor(fid)
		if err != nil {
			return dnc.Service{}, err
		}
		hop := hopIndexInPath(other, queueID)
		if hop < 0 {
			continue
		}
		higher = dnc.Aggregate(higher, otherArrivals[hop])
	}

	return dnc.LeftoverService(dnc.ConstantService(q.Bandwidth), higher), nil
}

// classAggregateAtHop returns the aggregate arrival of every flow with
// exactly the given priority at queueID, using each flow's arrival
// curve as it stands upon reaching that hop.
func (c *hopComputer) classAggregateAtHop(queueID int64, priority int32) (dnc.Arrival, error) {
	q, ok := c.g.QueueByID(queueID)
	if !ok {
		return dnc.Arrival{}, errors.Errorf("queue id %d not found", queueID)
	}

	agg := dnc.ZeroArrival
	for _, fid := range q.Flows() {
		other, ok := c.g.FlowByID(fid)
		if !ok || other.Priority != priority {
			continue
		}
		otherArrivals, err := c.arrivalsFor(fid)
		if err != nil {
			return dnc.Arrival{}, err
		}
		hop := hopIndexInPath(other, queueID)
		if hop < 0 {
			continue
		}
		agg = dnc.Aggregate(agg, otherArrivals[hop])
	}
	return agg, nil
}

// flowTotalHopLatency sums, over every hop in flow's path, the latency
// bound of its priority class's aggregate arrival against the leftover
// service at that hop.
func (c *hopComputer) flowTotalHopLatency(flowID int64) (float64, error) {
	flow, ok := c.g.FlowByID(flowID)
	if !ok {
		return 0, errFlowNotFound(flowID)
	}

	total := 0.0
	for _, qid := range flow.Path {
		service, err := c.leftoverServiceAboveClass(qid, flow.Priority, flowID)
		if err != nil {
			return 0, err
		}
		classAgg, err := c.classAggregateAtHop(qid, flow.Priority)
		if err != nil {
			return 0, err
		}
		total += dnc.LatencyBound(classAgg, service)
	}
	return total, nil
}

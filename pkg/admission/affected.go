package admission

import "github.com/uber/workloadcompactor/pkg/graph"

// affectedClientIDs computes §4.6 step 5's affected set: starting from
// the newly added flows, any flow sharing a queue with a flow already in
// the frontier at that flow's priority or lower precedence (a numerically
// larger or equal Priority) joins the set, and its own queues are
// explored transitively at its own (non-decreasing) priority threshold.
// Returns the distinct client ids owning the affected flows.
func affectedClientIDs(g *graph.Graph, addedFlowIDs []int64) []int64 {
	type frontierItem struct {
		flowID   int64
		priority int32
	}

	seeded := make(map[int64]bool, len(addedFlowIDs))
	for _, fid := range addedFlowIDs {
		seeded[fid] = true
	}

	pending := make([]frontierItem, 0, len(addedFlowIDs))
	for _, fid := range addedFlowIDs {
		flow, ok := g.FlowByID(fid)
		if !ok {
			continue
		}
		pending = append(pending, frontierItem{flowID: fid, priority: flow.Priority})
	}

	affected := make(map[int64]bool)
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		flow, ok := g.FlowByID(cur.flowID)
		if !ok {
			continue
		}
		for _, qid := range flow.Path {
			q, ok := g.QueueByID(qid)
			if !ok {
				continue
			}
			for _, otherID := range q.Flows() {
				if seeded[otherID] || affected[otherID] {
					continue
				}
				other, ok := g.FlowByID(otherID)
				if !ok {
					continue
				}
				if other.Priority < cur.priority {
					// Strictly higher precedence: not affected by this flow.
					continue
				}
				affected[otherID] = true
				pending = append(pending, frontierItem{flowID: otherID, priority: other.Priority})
			}
		}
	}

	seenClients := make(map[int64]bool)
	var clientIDs []int64
	for fid := range affected {
		flow, ok := g.FlowByID(fid)
		if !ok {
			continue
		}
		if !seenClients[flow.ClientID] {
			seenClients[flow.ClientID] = true
			clientIDs = append(clientIDs, flow.ClientID)
		}
	}
	return clientIDs
}

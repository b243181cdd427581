package admission

import "github.com/uber/workloadcompactor/pkg/graph"

// maxQueueUtilization is the fast-overload threshold of §4.6 step 2: a
// queue is rejected outright once asymptotic demand would exceed this
// fraction of its bandwidth.
const maxQueueUtilization = 0.999999

// asymptoticRate returns a flow's sustained arrival rate: the slope of
// its arrival curve's last breakpoint, or 0 for a flow with no real
// breakpoints beyond the sentinel.
func asymptoticRate(f FlowInfo) float64 {
	bps := f.Arrival.Breakpoints
	if len(bps) <= 1 {
		return 0
	}
	return bps[len(bps)-1].Slope
}

// fastOverloadCheck estimates, without touching the graph, whether any
// queue touched by the batch would be driven over maxQueueUtilization by
// the sum of its current residents' shaper rates and the new flows'
// asymptotic rates. Returns the first overloaded queue name, or "" if
// none.
func fastOverloadCheck(g *graph.Graph, batch []ClientInfo) string {
	newRatePerQueue := make(map[string]float64)
	for _, c := range batch {
		for _, f := range c.Flows {
			rate := asymptoticRate(f)
			for _, qn := range f.QueueNames {
				newRatePerQueue[qn] += rate
			}
		}
	}

	for qn, newRate := range newRatePerQueue {
		q, ok := g.Queue(qn)
		if !ok {
			continue
		}
		residentRate := 0.0
		for _, fid := range q.Flows() {
			flow, ok := g.FlowByID(fid)
			if !ok {
				continue
			}
			residentRate += flow.Shaper.Rate
		}
		if residentRate+newRate > maxQueueUtilization*q.Bandwidth {
			return qn
		}
	}
	return ""
}

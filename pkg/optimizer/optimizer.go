package optimizer

import (
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/uber/workloadcompactor/pkg/graph"
)

// epsilon keeps decision variables strictly inside their feasible region,
// per the `1-ε`/`SLO-ε` bounds of §4.5 steps 4 and 6.
const epsilon = 1e-6

// NewSolver constructs a fresh Solver. Optimize requires a new Solver per
// coupling group, so Resolve takes a factory rather than a single instance.
type NewSolver func() Solver

// Resolve drains g's dirty queue set, partitions the affected queues into
// coupling groups, and re-solves each group independently. This is the
// entry point the admission controller calls after every mutation.
func Resolve(g *graph.Graph, newSolver NewSolver) error {
	dirtyQueues := g.Dirty().Drain()
	if len(dirtyQueues) == 0 {
		return nil
	}
	for _, group := range g.CouplingGroups(dirtyQueues) {
		if err := Optimize(g, group, newSolver()); err != nil {
			return err
		}
	}
	return nil
}

type flowVars struct {
	rho, beta VarID
}

// Optimize solves the LP for every flow reachable from group (per §4.5)
// and writes the resulting (rate, burst) shaper back into g. Priorities
// are assigned by SLO rank regardless of whether the solve converges. If
// the solver fails, every flow in the group is left with an
// uninitialized (0,0) shaper, per step 9.
func Optimize(g *graph.Graph, group graph.CouplingGroup, solver Solver) error {
	flowIDs := flowsInGroup(g, group)
	if len(flowIDs) == 0 {
		return nil
	}

	assignPriorities(g, flowIDs)

	pathKeyOf := make(map[int64]string, len(flowIDs))
	distinctPaths := make(map[string][]int64) // path key -> queue ids
	bwFirst := make(map[int64]float64, len(flowIDs))

	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		key := pathKey(flow.Path)
		pathKeyOf[fid] = key
		if _, ok := distinctPaths[key]; !ok {
			distinctPaths[key] = flow.Path
		}
		if len(flow.Path) > 0 {
			q, _ := g.QueueByID(flow.Path[0])
			bwFirst[fid] = q.Bandwidth
		} else {
			bwFirst[fid] = 1
		}
	}

	vars := make(map[int64]flowVars, len(flowIDs))
	sloOf := make(map[int64]float64, len(flowIDs))
	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		client, _ := g.ClientByID(flow.ClientID)
		slo := client.SLOSeconds
		sloOf[fid] = slo

		rho := solver.AddVariable(1 - epsilon)
		beta := solver.AddVariable(slo - epsilon)
		vars[fid] = flowVars{rho: rho, beta: beta}
	}

	// queueBandwidth looks up a queue's bandwidth for the per-stage
	// normalization of step 3; queues the graph no longer has an entry
	// for (shouldn't happen for an id drawn from group.QueueIDs) fall
	// back to 1, the same default used for a pathless flow's bwFirst.
	queueBandwidth := func(qid int64) float64 {
		if q, ok := g.QueueByID(qid); ok {
			return q.Bandwidth
		}
		return 1
	}

	// Step 5: arrival-envelope constraints. A line β_k + ρ_k*x dominates a
	// concave piecewise-linear curve everywhere iff it dominates at every
	// breakpoint and its slope is at least the curve's terminal slope
	// (the curve's own segments are affine, so domination at both
	// endpoints of a segment implies domination along it). The arrival
	// curve is in raw units while ρ_k/β_k are normalized by bwFirst(k)
	// (step 9 denormalizes via r_k = ρ_k·bwFirst), so every right-hand
	// side here is divided by bwFirst(k) too.
	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		v := vars[fid]
		bw := bwFirst[fid]
		bps := flow.Arrival.Breakpoints
		for i := 1; i < len(bps); i++ {
			bp := bps[i]
			// β_k + ρ_k*X_i >= Y_i/bw  =>  -ρ_k*X_i - β_k <= -Y_i/bw
			solver.AddConstraint(map[VarID]float64{
				v.rho:  -bp.X,
				v.beta: -1,
			}, LessOrEqual, -bp.Y/bw)
		}
		if len(bps) >= 2 {
			last := bps[len(bps)-1]
			// ρ_k >= r_last/bw  =>  -ρ_k <= -r_last/bw
			solver.AddConstraint(map[VarID]float64{v.rho: -1}, LessOrEqual, -last.Slope/bw)
		}
	}

	// Step 6: stage capacity constraints, one per distinct queue touched.
	// Σ ρ_k is a sum of rates each normalized by its own flow's bwFirst,
	// but the constraint bounds the real rate sum against this stage's
	// own bandwidth, so each ρ_k is rescaled by bwFirst(k)/bw(stage).
	for _, qid := range group.QueueIDs {
		coeffs := make(map[VarID]float64)
		stageBW := queueBandwidth(qid)
		for _, fid := range flowIDs {
			flow, _ := g.FlowByID(fid)
			if containsQueue(flow.Path, qid) {
				coeffs[vars[fid].rho] = bwFirst[fid] / stageBW
			}
		}
		if len(coeffs) == 0 {
			continue
		}
		solver.AddConstraint(coeffs, LessOrEqual, 1-epsilon)
	}

	// Step 7: burst/SLO constraints, one per (SLO level, path, stage).
	// The ρ_k term is the same per-stage rate contribution as step 6, so
	// it gets the same bwFirst(k)/bw(stage) rescaling.
	distinctSLOs := distinctSorted(sloOf)
	for _, sloLevel := range distinctSLOs {
		for _, path := range distinctPaths {
			for _, stage := range path {
				coeffs := make(map[VarID]float64)
				for _, fid := range flowIDs {
					if pathKey(path) != pathKeyOf[fid] {
						continue
					}
					if sloOf[fid] <= sloLevel {
						coeffs[vars[fid].beta] += 1 / sloLevel
					}
				}
				stageBW := queueBandwidth(stage)
				for _, fid := range flowIDs {
					flow, _ := g.FlowByID(fid)
					if sloOf[fid] < sloLevel && containsQueue(flow.Path, stage) {
						coeffs[vars[fid].rho] += bwFirst[fid] / stageBW
					}
				}
				if len(coeffs) == 0 {
					continue
				}
				solver.AddConstraint(coeffs, LessOrEqual, 1)
			}
		}
	}

	// Step 8: minimize sum of rho_k.
	objective := make(map[VarID]float64, len(flowIDs))
	for _, fid := range flowIDs {
		objective[vars[fid].rho] = 1
	}
	solver.SetObjective(objective)

	// Step 9: solve and write back, or leave (0,0) on failure.
	values, err := solver.Solve()
	if err != nil {
		log.WithError(err).
			WithField("flows", len(flowIDs)).
			Warn("LP solve failed, leaving shapers uninitialized")
		for _, fid := range flowIDs {
			flow, _ := g.FlowByID(fid)
			flow.Shaper = graph.Shaper{Rate: 0, Burst: 0}
		}
		return nil
	}

	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		v := vars[fid]
		bw := bwFirst[fid]
		flow.Shaper = graph.Shaper{
			Rate:  values[v.rho] * bw,
			Burst: values[v.beta] * bw,
		}
	}
	return nil
}

func flowsInGroup(g *graph.Graph, group graph.CouplingGroup) []int64 {
	var flowIDs []int64
	for _, cid := range group.ClientIDs {
		client, ok := g.ClientByID(cid)
		if !ok {
			continue
		}
		flowIDs = append(flowIDs, client.FlowIDs...)
	}
	return flowIDs
}

// assignPriorities ranks the distinct SLOs of the clients owning
// flowIDs ascending (tightest SLO -> priority 0) and sets every flow's
// Priority to its owning client's rank.
func assignPriorities(g *graph.Graph, flowIDs []int64) {
	sloSet := make(map[float64]struct{})
	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		client, _ := g.ClientByID(flow.ClientID)
		sloSet[client.SLOSeconds] = struct{}{}
	}

	slos := make([]float64, 0, len(sloSet))
	for s := range sloSet {
		slos = append(slos, s)
	}
	sort.Float64s(slos)

	rank := make(map[float64]int32, len(slos))
	for i, s := range slos {
		rank[s] = int32(i)
	}

	for _, fid := range flowIDs {
		flow, _ := g.FlowByID(fid)
		client, _ := g.ClientByID(flow.ClientID)
		flow.Priority = rank[client.SLOSeconds]
	}
}

func pathKey(path []int64) string {
	parts := make([]string, len(path))
	for i, qid := range path {
		parts[i] = strconv.FormatInt(qid, 10)
	}
	return strings.Join(parts, ",")
}

func containsQueue(path []int64, qid int64) bool {
	for _, q := range path {
		if q == qid {
			return true
		}
	}
	return false
}

func distinctSorted(values map[int64]float64) []float64 {
	set := make(map[float64]struct{})
	for _, v := range values {
		set[v] = struct{}{}
	}
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

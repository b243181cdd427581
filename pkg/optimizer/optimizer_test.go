package optimizer_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/curve"
	"github.com/uber/workloadcompactor/pkg/graph"
	"github.com/uber/workloadcompactor/pkg/optimizer"
	"github.com/uber/workloadcompactor/pkg/optimizer/gonumsolver"
)

// burstyArrival returns a two-breakpoint curve (sentinel + one real
// point) describing a constant-rate/burst flow, the simplest shape the
// curve package ever produces for a single-rate trace.
func burstyArrival(burst, rate float64) curve.Curve {
	c := curve.NewCurve()
	c.Breakpoints = append(c.Breakpoints, curve.Breakpoint{X: 0, Y: burst, Slope: rate})
	return c
}

func oneFlowGraph(t *testing.T, bandwidth, slo, burst, rate float64) (*graph.Graph, graph.CouplingGroup) {
	t.Helper()
	g := graph.New()
	_, err := g.AddQueue("q0", bandwidth)
	require.NoError(t, err)
	_, err = g.AddClient(graph.ClientSpec{
		Name:       "c0",
		SLOSeconds: slo,
		Flows: []graph.FlowSpec{
			{Name: "f0", QueueNames: []string{"q0"}, Priority: 1, Arrival: burstyArrival(burst, rate)},
		},
	})
	require.NoError(t, err)
	client, _ := g.Client("c0")
	q, _ := g.Queue("q0")
	return g, graph.CouplingGroup{ClientIDs: []int64{client.ID}, QueueIDs: []int64{q.ID}}
}

func TestOptimizeShaperDominatesArrivalCurve(t *testing.T) {
	g, group := oneFlowGraph(t, 1, 100, 0.5, 0.2)

	require.NoError(t, optimizer.Optimize(g, group, gonumsolver.New()))

	flow, ok := g.Flow("f0")
	require.True(t, ok)

	for _, bp := range flow.Arrival.Breakpoints[1:] {
		dominated := flow.Shaper.Burst + flow.Shaper.Rate*bp.X
		assert.GreaterOrEqual(t, dominated, bp.Y-1e-6, "shaper must dominate arrival at x=%v", bp.X)
	}
	last := flow.Arrival.Breakpoints[len(flow.Arrival.Breakpoints)-1]
	assert.GreaterOrEqual(t, flow.Shaper.Rate, last.Slope-1e-6)
}

func TestOptimizeRespectsStageCapacity(t *testing.T) {
	g := graph.New()
	_, err := g.AddQueue("q0", 1)
	require.NoError(t, err)

	var clientIDs []int64
	for i, name := range []string{"c0", "c1", "c2"} {
		_, err := g.AddClient(graph.ClientSpec{
			Name:       name,
			SLOSeconds: 10,
			Flows: []graph.FlowSpec{
				{Name: name + "-f", QueueNames: []string{"q0"}, Priority: int32(i), Arrival: burstyArrival(0.2, 0.2)},
			},
		})
		require.NoError(t, err)
		c, _ := g.Client(name)
		clientIDs = append(clientIDs, c.ID)
	}
	q, _ := g.Queue("q0")
	group := graph.CouplingGroup{ClientIDs: clientIDs, QueueIDs: []int64{q.ID}}

	require.NoError(t, optimizer.Optimize(g, group, gonumsolver.New()))

	total := 0.0
	for _, name := range []string{"c0", "c1", "c2"} {
		flow, _ := g.Flow(name + "-f")
		total += flow.Shaper.Rate / q.Bandwidth
	}
	assert.LessOrEqual(t, total, 1.0+1e-6)
}

func TestAssignPrioritiesOrderedBySLORank(t *testing.T) {
	g := graph.New()
	_, err := g.AddQueue("q0", 1)
	require.NoError(t, err)

	add := func(name string, slo float64) {
		_, err := g.AddClient(graph.ClientSpec{
			Name:       name,
			SLOSeconds: slo,
			Flows: []graph.FlowSpec{
				{Name: name + "-f", QueueNames: []string{"q0"}, Arrival: curve.NewCurve()},
			},
		})
		require.NoError(t, err)
	}
	add("tight", 1)
	add("loose", 100)
	add("medium", 10)

	clientIDs := make([]int64, 0, 3)
	for _, name := range []string{"tight", "loose", "medium"} {
		c, _ := g.Client(name)
		clientIDs = append(clientIDs, c.ID)
	}
	q, _ := g.Queue("q0")
	group := graph.CouplingGroup{ClientIDs: clientIDs, QueueIDs: []int64{q.ID}}

	require.NoError(t, optimizer.Optimize(g, group, gonumsolver.New()))

	tightFlow, _ := g.Flow("tight-f")
	mediumFlow, _ := g.Flow("medium-f")
	looseFlow, _ := g.Flow("loose-f")

	assert.Less(t, tightFlow.Priority, mediumFlow.Priority)
	assert.Less(t, mediumFlow.Priority, looseFlow.Priority)
}

// failingSolver always fails Solve, exercising the graceful-degradation
// path: priorities still get assigned, but every shaper stays (0,0).
type failingSolver struct {
	*gonumsolver.Solver
}

func (f failingSolver) Solve() (map[optimizer.VarID]float64, error) {
	return nil, errors.New("simplex did not converge")
}

func TestOptimizeFallsBackToZeroShaperOnSolveFailure(t *testing.T) {
	g, group := oneFlowGraph(t, 1, 100, 0.5, 0.2)

	require.NoError(t, optimizer.Optimize(g, group, failingSolver{gonumsolver.New()}))

	flow, _ := g.Flow("f0")
	assert.Equal(t, graph.Shaper{Rate: 0, Burst: 0}, flow.Shaper)
	assert.Equal(t, int32(0), flow.Priority)
}

func TestOptimizeNoFlowsIsNoop(t *testing.T) {
	g := graph.New()
	require.NoError(t, optimizer.Optimize(g, graph.CouplingGroup{}, gonumsolver.New()))
}

func TestResolveDrainsDirtySetAndSolvesEachGroup(t *testing.T) {
	g, _ := oneFlowGraph(t, 1, 100, 0.5, 0.2)
	require.Greater(t, g.Dirty().Len(), 0)

	require.NoError(t, optimizer.Resolve(g, func() optimizer.Solver { return gonumsolver.New() }))

	assert.Equal(t, 0, g.Dirty().Len())
	flow, _ := g.Flow("f0")
	assert.Greater(t, flow.Shaper.Rate, 0.0)
}

func TestResolveNoopWhenNothingDirty(t *testing.T) {
	g, _ := oneFlowGraph(t, 1, 100, 0.5, 0.2)
	g.Dirty().Drain()
	require.NoError(t, optimizer.Resolve(g, func() optimizer.Solver { return gonumsolver.New() }))
}

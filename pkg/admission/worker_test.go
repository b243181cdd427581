package admission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/analyzer"
	"github.com/uber/workloadcompactor/pkg/curve"
	"github.com/uber/workloadcompactor/pkg/optimizer"
	"github.com/uber/workloadcompactor/pkg/optimizer/gonumsolver"
)

func newTestWorker() *admission.Worker {
	scope := tally.NoopScope
	newSolver := func() optimizer.Solver { return gonumsolver.New() }
	return admission.NewWorker(analyzer.New(analyzer.VariantHopByHop), newSolver, admission.NewMetrics(scope))
}

func burstyArrival(burst, rate float64) *curve.Curve {
	c := curve.NewCurve()
	c.Breakpoints = append(c.Breakpoints, curve.Breakpoint{X: 0, Y: burst, Slope: rate})
	return &c
}

func TestAddQueueAndDelQueue(t *testing.T) {
	w := newTestWorker()

	assert.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))
	assert.Equal(t, admission.StatusErrQueueNameInUse, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))
	assert.Equal(t, admission.StatusSuccess, w.DelQueue("q0"))
	assert.Equal(t, admission.StatusErrQueueNameNonexistent, w.DelQueue("q0"))
}

func TestDelQueueRejectsWhileFlowsActive(t *testing.T) {
	w := newTestWorker()
	require.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))

	result := w.AddClients([]admission.ClientInfo{{
		Name:       "c0",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "f0", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.1, 0.1)},
		},
	}}, false)
	require.True(t, result.Admitted)

	assert.Equal(t, admission.StatusErrQueueHasActiveFlows, w.DelQueue("q0"))
}

func TestAddClientsRejectsMissingQueue(t *testing.T) {
	w := newTestWorker()

	result := w.AddClients([]admission.ClientInfo{{
		Name:       "c0",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "f0", QueueNames: []string{"nope"}, Arrival: burstyArrival(0.1, 0.1)},
		},
	}}, false)
	assert.Equal(t, admission.StatusErrQueueNameNonexistent, result.Status)
	assert.False(t, result.Admitted)
}

func TestAddClientsRejectsNonPositiveSLO(t *testing.T) {
	w := newTestWorker()
	require.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))

	result := w.AddClients([]admission.ClientInfo{{
		Name:       "c0",
		SLOSeconds: 0,
		Flows: []admission.FlowInfo{
			{Name: "f0", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.1, 0.1)},
		},
	}}, false)
	assert.Equal(t, admission.StatusErrInvalidArgument, result.Status)
}

func TestAddClientsHappyPath(t *testing.T) {
	w := newTestWorker()
	require.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))

	result := w.AddClients([]admission.ClientInfo{{
		Name:       "c0",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "f0", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.2, 0.1)},
		},
	}}, false)

	require.Equal(t, admission.StatusSuccess, result.Status)
	require.True(t, result.Admitted)
	require.Len(t, result.Flows, 1)
	assert.Greater(t, result.Flows[0].Rate, 0.0)
}

func TestAddClientsFastFirstFitRejectsOverload(t *testing.T) {
	w := newTestWorker()
	require.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))

	first := w.AddClients([]admission.ClientInfo{{
		Name:       "resident",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "resident-f", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.1, 0.9)},
		},
	}}, false)
	require.True(t, first.Admitted)

	second := w.AddClients([]admission.ClientInfo{{
		Name:       "newcomer",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "newcomer-f", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.1, 0.5)},
		},
	}}, true)

	assert.Equal(t, admission.StatusSuccess, second.Status)
	assert.False(t, second.Admitted)

	_, ok := w.Graph().Client("newcomer")
	assert.False(t, ok, "rejected client must not remain in the graph")
}

func TestDelClientRemovesFlowsAndFreesQueue(t *testing.T) {
	w := newTestWorker()
	require.Equal(t, admission.StatusSuccess, w.AddQueue(admission.QueueInfo{Name: "q0", Bandwidth: 1}))

	result := w.AddClients([]admission.ClientInfo{{
		Name:       "c0",
		SLOSeconds: 100,
		Flows: []admission.FlowInfo{
			{Name: "f0", QueueNames: []string{"q0"}, Arrival: burstyArrival(0.1, 0.1)},
		},
	}}, false)
	require.True(t, result.Admitted)

	assert.Equal(t, admission.StatusSuccess, w.DelClient("c0"))
	assert.Equal(t, admission.StatusErrClientNameNonexistent, w.DelClient("c0"))
	assert.Equal(t, admission.StatusSuccess, w.DelQueue("q0"))
}

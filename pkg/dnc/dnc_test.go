package dnc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/uber/workloadcompactor/pkg/curve"
)

func TestAggregate(t *testing.T) {
	a := Arrival{Rate: 0.25, Burst: 0.5}
	b := Arrival{Rate: 0.125, Burst: 1.0}
	got := Aggregate(a, b)
	assert.InDelta(t, 0.375, got.Rate, 1e-9)
	assert.InDelta(t, 1.5, got.Burst, 1e-9)
}

func TestConvolve(t *testing.T) {
	s := Service{Rate: 2, Latency: 1}
	u := Service{Rate: 1, Latency: 3}
	got := Convolve(s, u)
	assert.InDelta(t, 1, got.Rate, 1e-9)
	assert.InDelta(t, 4, got.Latency, 1e-9)
}

func TestLeftoverServiceInfeasible(t *testing.T) {
	s := Service{Rate: 1, Latency: 0}
	a := Arrival{Rate: 1, Burst: 1}
	got := LeftoverService(s, a)
	assert.True(t, math.IsInf(got.Latency, 1))
}

func TestLatencyBoundInfiniteWhenRateExceeded(t *testing.T) {
	a := Arrival{Rate: 2, Burst: 1}
	s := Service{Rate: 1, Latency: 0}
	assert.True(t, math.IsInf(LatencyBound(a, s), 1))
}

// TestOneHopTwoPriorityClasses reproduces the scenario from spec §8.1:
// queue Q0 with bandwidth 1, two priority-1 flows (0.25,0.5) and
// (0.125,1.0), two priority-2 flows (0.125,0.25) and (0.5,2.25).
// Expected per-client latency: priority 1 -> 1.5, priority 2 -> 6.4.
//
// Every flow within a priority class shares the same latency bound,
// computed against that class's aggregate arrival curve and a service
// curve with strictly-higher-priority classes' aggregate arrival
// subtracted via LeftoverService.
func TestOneHopTwoPriorityClasses(t *testing.T) {
	bw := 1.0
	pri1 := Aggregate(Arrival{Rate: 0.25, Burst: 0.5}, Arrival{Rate: 0.125, Burst: 1.0})
	pri2 := Aggregate(Arrival{Rate: 0.125, Burst: 0.25}, Arrival{Rate: 0.5, Burst: 2.25})

	servicePri1 := ConstantService(bw) // no higher-priority class exists
	latencyPri1 := LatencyBound(pri1, servicePri1)
	assert.InDelta(t, 1.5, latencyPri1, 1e-9)

	servicePri2 := LeftoverService(ConstantService(bw), pri1)
	latencyPri2 := LatencyBound(pri2, servicePri2)
	assert.InDelta(t, 6.4, latencyPri2, 1e-9)
}

func TestShaperLatencyDominatedByArrival(t *testing.T) {
	pl := curve.Curve{Breakpoints: []curve.Breakpoint{
		{X: 0, Y: 0, Slope: math.Inf(1)},
		{X: 1, Y: 1, Slope: 0.5},
		{X: 3, Y: 2, Slope: 0.1},
	}}
	shaper := Arrival{Rate: 0.1, Burst: 2}
	d := ShaperLatency(pl, shaper)
	assert.GreaterOrEqual(t, d, 0.0)
}

// Package dnc implements the Deterministic Network Calculus operators
// over simple (r,b) arrival curves and (R,T) rate-latency service
// curves.
package dnc

import (
	"math"

	"github.com/uber/workloadcompactor/pkg/curve"
)

// Arrival is a simple (r,b) token-bucket arrival curve: y = b + r*x.
type Arrival struct {
	Rate  float64
	Burst float64
}

// ZeroArrival is the arrival curve of a flow contributing no traffic.
var ZeroArrival = Arrival{Rate: 0, Burst: 0}

// Service is a simple (R,T) rate-latency service curve: guarantees at
// least R*max(0, t-T) work served by time t.
type Service struct {
	Rate    float64
	Latency float64
}

// ConstantService is the service curve of an unshared queue of bandwidth C.
func ConstantService(bandwidth float64) Service {
	return Service{Rate: bandwidth, Latency: 0}
}

// Aggregate sums two arrival curves.
func Aggregate(a, b Arrival) Arrival {
	return Arrival{Rate: a.Rate + b.Rate, Burst: a.Burst + b.Burst}
}

// Convolve combines two service curves in series.
func Convolve(s, t Service) Service {
	return Service{Rate: math.Min(s.Rate, t.Rate), Latency: s.Latency + t.Latency}
}

// OutputArrival bounds the arrival curve of traffic departing a server
// offering service curve s to arrival curve a.
func OutputArrival(a Arrival, s Service) Arrival {
	return Arrival{Rate: a.Rate, Burst: a.Burst + a.Rate*s.Latency}
}

// LeftoverService is the service curve left over for the remaining
// traffic at a queue, after competing arrival curve a has taken priority.
// Infeasible (a's rate meets or exceeds the queue's rate) is represented
// by an infinite latency.
func LeftoverService(s Service, a Arrival) Service {
	if s.Rate <= a.Rate {
		return Service{Rate: s.Rate - a.Rate, Latency: math.Inf(1)}
	}
	leftoverRate := s.Rate - a.Rate
	leftoverLatency := s.Latency + (a.Burst+a.Rate*s.Latency)/leftoverRate
	return Service{Rate: leftoverRate, Latency: leftoverLatency}
}

// LatencyBound returns the worst-case delay a flow with arrival curve a
// experiences from service curve s: +Inf if a's rate exceeds s's rate.
func LatencyBound(a Arrival, s Service) float64 {
	if a.Rate > s.Rate {
		return math.Inf(1)
	}
	return s.Latency + a.Burst/s.Rate
}

// ShaperLatency returns the additional latency a (r,b) shaper imposes on
// traffic whose unshaped arrival is the full piecewise-linear curve pl,
// per §4.3: the maximum horizontal distance between pl and the straight
// shaper line y = b + r*x.
func ShaperLatency(pl curve.Curve, shaper Arrival) float64 {
	maxDist := 0.0

	shaperX := func(y float64) float64 {
		if shaper.Rate == 0 {
			return math.Inf(1)
		}
		return (y - shaper.Burst) / shaper.Rate
	}

	for _, bp := range pl.Breakpoints {
		sx := shaperX(bp.Y)
		if math.IsInf(sx, 0) {
			continue
		}
		dist := sx - bp.X
		if dist > maxDist {
			maxDist = dist
		}
	}

	// Also sample the shaper line's height at each breakpoint's x and
	// project it onto pl, to catch the case where pl's breakpoints alone
	// miss the true maximum.
	for i := 1; i < len(pl.Breakpoints); i++ {
		prev := pl.Breakpoints[i-1]
		seg := pl.Breakpoints[i]
		if prev.Slope <= 0 || math.IsInf(prev.Slope, 0) {
			continue
		}
		// The pl segment from prev to seg has slope prev.Slope; find
		// where it reaches the shaper line's height at x=seg.X.
		y := shaper.Burst + shaper.Rate*seg.X
		if y < prev.Y || y > seg.Y {
			continue
		}
		plX := prev.X + (y-prev.Y)/prev.Slope
		sx := shaperX(y)
		if math.IsInf(sx, 0) {
			continue
		}
		dist := sx - plX
		if dist > maxDist {
			maxDist = dist
		}
	}

	return maxDist
}

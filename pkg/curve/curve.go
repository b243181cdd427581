// Package curve builds and prunes piecewise-linear concave arrival
// curves from a request trace, and persists them to disk as CSV.
package curve

import "math"

// Breakpoint is one vertex of a piecewise-linear arrival curve: at
// elapsed time X the curve has accumulated Y units of work, and the
// curve's slope to the right of X is Slope.
type Breakpoint struct {
	X     float64
	Y     float64
	Slope float64
}

// Curve is a piecewise-linear, concave, non-decreasing upper envelope on
// cumulative work over any interval of length t. Breakpoints[0] is always
// the sentinel (0, 0, +Inf); callers iterate Breakpoints[1:] for the
// interesting segments.
type Curve struct {
	Breakpoints []Breakpoint
}

// NewCurve returns the trivial curve with only the sentinel breakpoint,
// representing zero arrivals.
func NewCurve() Curve {
	return Curve{Breakpoints: []Breakpoint{{X: 0, Y: 0, Slope: math.Inf(1)}}}
}

// Sample is one (arrival time in nanoseconds, work) pair from a trace.
type Sample struct {
	ArrivalNanos int64
	Work         float64
}

// rateStep is the fraction of r_max used as the sweep step in §4.2.
const rateStep = 0.001

// Build runs the token-bucket sweep described in spec §4.2 over the given
// samples (already sorted by arrival time) and returns the resulting
// piecewise-linear curve, pruned to at most maxBreakpoints interior
// points.
func Build(samples []Sample, maxBreakpoints int) Curve {
	if len(samples) == 0 {
		return NewCurve()
	}

	totalWork := 0.0
	for _, s := range samples {
		totalWork += s.Work
	}
	durationSec := float64(samples[len(samples)-1].ArrivalNanos-samples[0].ArrivalNanos) / 1e9
	if durationSec <= 0 {
		durationSec = 1
	}
	rMin := totalWork / durationSec

	rMax := maxInstantaneousRate(samples)
	if rMax < rMin {
		rMax = rMin
	}

	type ratePoint struct {
		r, b float64
	}
	var points []ratePoint
	step := rateStep * rMax
	if step <= 0 {
		// rMax <= 0 means every sample carries zero work.
		return NewCurve()
	}
	for r := rMax; r >= rMin; r -= step {
		points = append(points, ratePoint{r: r, b: peakBucketLevel(samples, r)})
	}
	// Ensure rMin itself is represented even if the step overshoots it.
	if len(points) == 0 || points[len(points)-1].r > rMin {
		points = append(points, ratePoint{r: rMin, b: peakBucketLevel(samples, rMin)})
	}

	c := NewCurve()
	for _, p := range points {
		appendRatePoint(&c, p.r, p.b)
	}

	return Prune(c, maxBreakpoints)
}

// maxInstantaneousRate bounds the sweep's starting rate by the largest
// single-request rate seen (work delivered with zero elapsed time is
// approximated by the largest per-request work over the smallest
// positive inter-arrival gap).
func maxInstantaneousRate(samples []Sample) float64 {
	maxWork := 0.0
	for _, s := range samples {
		if s.Work > maxWork {
			maxWork = s.Work
		}
	}
	minGap := math.Inf(1)
	for i := 1; i < len(samples); i++ {
		gap := float64(samples[i].ArrivalNanos-samples[i-1].ArrivalNanos) / 1e9
		if gap > 0 && gap < minGap {
			minGap = gap
		}
	}
	if math.IsInf(minGap, 1) {
		minGap = 1
	}
	if minGap == 0 {
		minGap = 1e-9
	}
	return maxWork / minGap
}

// peakBucketLevel simulates a virtual token bucket draining at rate r and
// filled by each sample's work, returning the peak level observed.
func peakBucketLevel(samples []Sample, r float64) float64 {
	level := 0.0
	peak := 0.0
	prevNanos := samples[0].ArrivalNanos
	for _, s := range samples {
		dt := float64(s.ArrivalNanos-prevNanos) / 1e9
		level -= r * dt
		if level < 0 {
			level = 0
		}
		level += s.Work
		if level > peak {
			peak = level
		}
		prevNanos = s.ArrivalNanos
	}
	return peak
}

// appendRatePoint converts one (r, b) token-bucket point into a curve
// breakpoint, popping dominated prior segments per §4.2 step 3.
func appendRatePoint(c *Curve, r, b float64) {
	for {
		last := c.Breakpoints[len(c.Breakpoints)-1]
		// Intersection of y = b + r*x with the line through `last` at
		// slope `last.Slope`: last.Y + last.Slope*(x-last.X) = b + r*x.
		var x float64
		if math.IsInf(last.Slope, 1) {
			// Only the sentinel is left: this line starts the curve at x=0.
			c.Breakpoints = append(c.Breakpoints, Breakpoint{X: last.X, Y: b, Slope: r})
			return
		} else {
			denom := last.Slope - r
			if denom == 0 {
				return
			}
			x = (b - last.Y + last.Slope*last.X) / denom
		}

		if x <= last.X {
			if len(c.Breakpoints) == 1 {
				// Can't pop the sentinel; this rate point is dominated.
				return
			}
			c.Breakpoints = c.Breakpoints[:len(c.Breakpoints)-1]
			continue
		}

		y := b + r*x
		c.Breakpoints = append(c.Breakpoints, Breakpoint{X: x, Y: y, Slope: r})
		return
	}
}

// Prune reduces c to at most maxBreakpoints interior breakpoints
// (plus the sentinel), per §4.2 step 4.
func Prune(c Curve, maxBreakpoints int) Curve {
	// Step 4a: drop breakpoints with x > 30 from the tail.
	for len(c.Breakpoints) > 1 && c.Breakpoints[len(c.Breakpoints)-1].X > 30 {
		c.Breakpoints = c.Breakpoints[:len(c.Breakpoints)-1]
	}

	// Step 4b: while too many points remain, collapse the interior
	// breakpoint with the smallest delta-y to its right neighbor.
	for len(c.Breakpoints)-1 > maxBreakpoints {
		// interior breakpoints are indices [1, len-2]; index len-1 is the
		// last point and has no right neighbor to merge into.
		if len(c.Breakpoints) < 3 {
			break
		}
		minIdx := 1
		minDelta := math.Inf(1)
		for i := 1; i < len(c.Breakpoints)-1; i++ {
			delta := c.Breakpoints[i+1].Y - c.Breakpoints[i].Y
			if delta < minDelta {
				minDelta = delta
				minIdx = i
			}
		}

		prior := c.Breakpoints[minIdx-1]
		next := c.Breakpoints[minIdx+1]
		// Intersection of next's outgoing segment (slope = next.Slope,
		// passing through next) with prior's outgoing segment (slope =
		// prior.Slope, passing through prior).
		var x, y float64
		if math.IsInf(prior.Slope, 1) {
			x, y = prior.X, prior.Y
		} else if prior.Slope == next.Slope {
			x, y = prior.X, prior.Y
		} else {
			x = (next.Y - next.Slope*next.X - prior.Y + prior.Slope*prior.X) / (prior.Slope - next.Slope)
			y = prior.Y + prior.Slope*(x-prior.X)
		}

		merged := Breakpoint{X: x, Y: y, Slope: next.Slope}
		newBreakpoints := make([]Breakpoint, 0, len(c.Breakpoints)-1)
		newBreakpoints = append(newBreakpoints, c.Breakpoints[:minIdx]...)
		newBreakpoints = append(newBreakpoints, merged)
		newBreakpoints = append(newBreakpoints, c.Breakpoints[minIdx+2:]...)
		c.Breakpoints = newBreakpoints
	}

	return c
}

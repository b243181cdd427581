// Package gonumsolver adapts gonum's dense simplex solver to the
// optimizer.Solver interface. It is the one dependency pulled into this
// repository fresh rather than carried over from the teacher: gonum is
// the only numerical/LP-adjacent library visible anywhere in the
// retrieval pack (see DESIGN.md).
package gonumsolver

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/uber/workloadcompactor/pkg/optimizer"
)

type leConstraint struct {
	coeffs map[optimizer.VarID]float64
	rhs    float64
}

type eqConstraint struct {
	coeffs map[optimizer.VarID]float64
	rhs    float64
}

// Solver is a single-use optimizer.Solver backed by gonum's simplex
// implementation. A new Solver must be created for each LP solve.
type Solver struct {
	upperBounds []float64
	le          []leConstraint
	eq          []eqConstraint
	objective   map[optimizer.VarID]float64
}

// New returns an empty Solver.
func New() *Solver {
	return &Solver{objective: make(map[optimizer.VarID]float64)}
}

// AddVariable implements optimizer.Solver.
func (s *Solver) AddVariable(upperBound float64) optimizer.VarID {
	id := optimizer.VarID(len(s.upperBounds))
	s.upperBounds = append(s.upperBounds, upperBound)
	return id
}

// AddConstraint implements optimizer.Solver.
func (s *Solver) AddConstraint(coeffs map[optimizer.VarID]float64, rel optimizer.Relation, rhs float64) {
	switch rel {
	case optimizer.Equal:
		s.eq = append(s.eq, eqConstraint{coeffs: coeffs, rhs: rhs})
	default:
		s.le = append(s.le, leConstraint{coeffs: coeffs, rhs: rhs})
	}
}

// SetObjective implements optimizer.Solver.
func (s *Solver) SetObjective(coeffs map[optimizer.VarID]float64) {
	s.objective = coeffs
}

// Solve implements optimizer.Solver. It converts the symbolic
// constraints into gonum's standard equality form (A*x = b, x >= 0) by
// introducing one slack or surplus variable per <= constraint (negating
// rows with a negative right-hand side so every row of b is
// non-negative, as gonum's Simplex requires), then reads the original
// variables back out of the returned solution vector.
func (s *Solver) Solve() (map[optimizer.VarID]float64, error) {
	n := len(s.upperBounds)

	boundRows := make([]leConstraint, 0, n)
	for i, ub := range s.upperBounds {
		boundRows = append(boundRows, leConstraint{
			coeffs: map[optimizer.VarID]float64{optimizer.VarID(i): 1},
			rhs:    ub,
		})
	}
	leRows := append(boundRows, s.le...)

	numExtra := len(leRows)
	totalVars := n + numExtra
	numRows := len(leRows) + len(s.eq)

	a := mat.NewDense(numRows, totalVars, nil)
	b := make([]float64, numRows)

	row := 0
	for i, lc := range leRows {
		sign := 1.0
		rhs := lc.rhs
		if rhs < 0 {
			sign = -1
			rhs = -rhs
		}
		for v, coeff := range lc.coeffs {
			a.Set(row, int(v), coeff*sign)
		}
		extraCol := n + i
		a.Set(row, extraCol, sign)
		b[row] = rhs
		row++
	}
	for _, ec := range s.eq {
		sign := 1.0
		rhs := ec.rhs
		if rhs < 0 {
			sign = -1
			rhs = -rhs
		}
		for v, coeff := range ec.coeffs {
			a.Set(row, int(v), coeff*sign)
		}
		b[row] = rhs
		row++
	}

	c := make([]float64, totalVars)
	for v, coeff := range s.objective {
		c[int(v)] = coeff
	}

	_, optX, err := lp.Simplex(c, a, b, 0, nil)
	if err != nil {
		return nil, errors.Wrap(err, "simplex solve failed")
	}

	out := make(map[optimizer.VarID]float64, n)
	for i := 0; i < n; i++ {
		out[optimizer.VarID(i)] = optX[i]
	}
	return out, nil
}

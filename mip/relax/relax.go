// Package relax computes the LP-relaxation bound of an assignment model.
//
// Binaries are relaxed to [0, 1] and the resulting linear program is put into
// standard form (min c'x, Ax = b, x >= 0) for gonum's simplex.
package relax

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/meenmo/hedgeassign/mip"
)

// Tolerance is passed to lp.Simplex.
const Tolerance = 1e-9

// Result is the outcome of the relaxation.
type Result struct {
	// Status is Optimal, Infeasible or Unbounded.
	Status mip.Status
	// Delta is a lower bound on the optimal objective when Status is Optimal.
	Delta float64
	// Values holds the relaxed variable values in model index order.
	Values []float64
}

// Bound solves the continuous relaxation of m.
//
// An infeasible relaxation proves the integer model infeasible.
func Bound(m *mip.Model) (Result, error) {
	if m == nil {
		return Result{}, errors.New("Bound: nil model")
	}
	vars := m.Vars()
	nv := len(vars)

	lower := make([]float64, nv)
	upper := make([]float64, nv)
	for i, v := range vars {
		lo, hi := v.Lower, v.Upper
		if v.Kind == mip.Binary {
			lo, hi = math.Max(lo, 0), math.Min(hi, 1)
		}
		if math.IsInf(lo, 0) || math.IsNaN(lo) {
			return Result{}, fmt.Errorf("Bound: variable %s has no finite lower bound", v.Name)
		}
		lower[i], upper[i] = lo, hi
	}

	cost := make([]float64, nv)
	for _, t := range m.Objective() {
		cost[t.Var] += t.Coef
	}

	// Rows in shifted variables y = x - lower.
	type row struct {
		coefs []float64
		sense mip.Sense
		rhs   float64
	}
	var rows []row
	used := make([]bool, nv)
	for _, c := range m.Constraints() {
		coefs := make([]float64, nv)
		rhs := c.RHS
		empty := true
		for _, t := range c.Terms {
			coefs[t.Var] += t.Coef
			rhs -= t.Coef * lower[t.Var]
		}
		for i, a := range coefs {
			if a != 0 {
				used[i] = true
				empty = false
			}
		}
		if empty {
			if !holdsAtZero(c.Sense, rhs) {
				return Result{Status: mip.StatusInfeasible}, nil
			}
			continue
		}
		rows = append(rows, row{coefs: coefs, sense: c.Sense, rhs: rhs})
	}
	for i := range vars {
		if upper[i] < lower[i] {
			return Result{Status: mip.StatusInfeasible}, nil
		}
		if math.IsInf(upper[i], 1) {
			continue
		}
		coefs := make([]float64, nv)
		coefs[i] = 1
		used[i] = true
		rows = append(rows, row{coefs: coefs, sense: mip.LessEqual, rhs: upper[i] - lower[i]})
	}

	// A column in no row sits at its lower bound unless the objective pulls it to infinity.
	for i := range vars {
		if !used[i] && cost[i] < 0 {
			return Result{Status: mip.StatusUnbounded}, nil
		}
	}

	slacks := 0
	for _, r := range rows {
		if r.sense != mip.Equal {
			slacks++
		}
	}
	cols := nv + slacks
	if len(rows) == 0 {
		return finish(cost, lower, make([]float64, nv)), nil
	}

	A := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	c := make([]float64, cols)
	copy(c, cost)

	s := nv
	for k, r := range rows {
		for i, a := range r.coefs {
			A.Set(k, i, a)
		}
		switch r.sense {
		case mip.LessEqual:
			A.Set(k, s, 1)
			s++
		case mip.GreaterEqual:
			A.Set(k, s, -1)
			s++
		}
		b[k] = r.rhs
	}

	// lp.Simplex rejects zero columns.
	keep := make([]int, 0, cols)
	for j := 0; j < cols; j++ {
		if j >= nv || used[j] {
			keep = append(keep, j)
		}
	}
	if len(keep) != cols {
		A, c = selectColumns(A, c, keep)
	}

	_, x, err := lp.Simplex(c, A, b, Tolerance, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return Result{Status: mip.StatusInfeasible}, nil
	case errors.Is(err, lp.ErrUnbounded):
		return Result{Status: mip.StatusUnbounded}, nil
	case err != nil:
		return Result{}, fmt.Errorf("Bound: %w", err)
	}

	shifted := make([]float64, nv)
	for k, j := range keep {
		if j < nv {
			shifted[j] = x[k]
		}
	}
	return finish(cost, lower, shifted), nil
}

func finish(cost, lower, shifted []float64) Result {
	values := make([]float64, len(lower))
	obj := 0.0
	for i := range lower {
		values[i] = shifted[i] + lower[i]
		obj += cost[i] * values[i]
	}
	return Result{Status: mip.StatusOptimal, Delta: obj, Values: values}
}

func selectColumns(A *mat.Dense, c []float64, keep []int) (*mat.Dense, []float64) {
	r, _ := A.Dims()
	out := mat.NewDense(r, len(keep), nil)
	cc := make([]float64, len(keep))
	for k, j := range keep {
		for i := 0; i < r; i++ {
			out.Set(i, k, A.At(i, j))
		}
		cc[k] = c[j]
	}
	return out, cc
}

func holdsAtZero(sense mip.Sense, rhs float64) bool {
	switch sense {
	case mip.LessEqual:
		return 0 <= rhs+Tolerance
	case mip.GreaterEqual:
		return 0 >= rhs-Tolerance
	default:
		return math.Abs(rhs) <= Tolerance
	}
}

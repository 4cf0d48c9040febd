// Package miptest provides an exhaustive Solver for tiny models in tests.
package miptest

import (
	"context"
	"fmt"
	"math"

	"github.com/meenmo/hedgeassign/mip"
)

// MaxBinaries caps the enumeration at 2^MaxBinaries assignments.
const MaxBinaries = 22

const tol = 1e-9

// Exhaustive enumerates every 0/1 vector of a model with a single continuous
// variable and, for each, solves the one-dimensional remainder in closed form.
//
// It honours the mip.Solver contract and nothing else: rows are read from the
// model, never from knowledge of how Build lays them out.
type Exhaustive struct{}

func (Exhaustive) Name() string { return "exhaustive" }

func (Exhaustive) Solve(ctx context.Context, m *mip.Model, _ mip.Options) (mip.Solution, error) {
	vars := m.Vars()
	var binaries []int
	cont := -1
	for _, v := range vars {
		if v.Kind == mip.Binary {
			binaries = append(binaries, v.Index)
			continue
		}
		if cont >= 0 {
			return mip.Solution{}, fmt.Errorf("exhaustive: more than one continuous variable")
		}
		cont = v.Index
	}
	if cont < 0 {
		return mip.Solution{}, fmt.Errorf("exhaustive: no continuous variable")
	}
	if len(binaries) > MaxBinaries {
		return mip.Solution{}, fmt.Errorf("exhaustive: %d binaries exceed %d", len(binaries), MaxBinaries)
	}

	objCoef := 0.0
	for _, t := range m.Objective() {
		if t.Var != cont {
			return mip.Solution{}, fmt.Errorf("exhaustive: objective must only involve the continuous variable")
		}
		objCoef += t.Coef
	}
	rows := m.Constraints()
	cv := vars[cont]

	values := make([]float64, len(vars))
	best := make([]float64, len(vars))
	bestObj := math.Inf(1)
	found := false

	for mask := uint64(0); mask < 1<<len(binaries); mask++ {
		if mask&0xffff == 0 && ctx.Err() != nil {
			return mip.Solution{Status: mip.StatusTimeLimitReached}, nil
		}
		for k, idx := range binaries {
			values[idx] = float64((mask >> k) & 1)
		}

		lo, hi, ok := feasibleInterval(rows, values, cont, cv.Lower, cv.Upper)
		if !ok {
			continue
		}
		x := lo
		if objCoef < 0 {
			x = hi
		}
		if math.IsInf(x, 0) {
			return mip.Solution{Status: mip.StatusUnbounded}, nil
		}
		if obj := objCoef * x; obj < bestObj-tol {
			bestObj = obj
			values[cont] = x
			copy(best, values)
			found = true
		}
	}

	if !found {
		return mip.Solution{Status: mip.StatusInfeasible}, nil
	}
	out := make(map[string]float64, len(vars))
	for _, v := range vars {
		out[v.Name] = best[v.Index]
	}
	return mip.Solution{Status: mip.StatusOptimal, Values: out}, nil
}

// feasibleInterval intersects every row, with the binaries fixed, into bounds on
// the continuous variable.
func feasibleInterval(rows []mip.Constraint, values []float64, cont int, lo, hi float64) (float64, float64, bool) {
	for _, r := range rows {
		a, rest := 0.0, 0.0
		for _, t := range r.Terms {
			if t.Var == cont {
				a += t.Coef
				continue
			}
			rest += t.Coef * values[t.Var]
		}
		b := r.RHS - rest // a*x (sense) b

		switch {
		case a == 0:
			if !satisfied(0, r.Sense, b) {
				return 0, 0, false
			}
		case r.Sense == mip.Equal:
			lo = math.Max(lo, b/a)
			hi = math.Min(hi, b/a)
		case (r.Sense == mip.LessEqual) == (a > 0):
			hi = math.Min(hi, b/a)
		default:
			lo = math.Max(lo, b/a)
		}
		if lo > hi+tol {
			return 0, 0, false
		}
	}
	return lo, math.Max(lo, hi), true
}

func satisfied(lhs float64, sense mip.Sense, rhs float64) bool {
	switch sense {
	case mip.LessEqual:
		return lhs <= rhs+tol
	case mip.GreaterEqual:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}

package mip

import (
	"math"

	"github.com/meenmo/hedgeassign/hedge"
)

// FeasibilityTolerance is the row slack accepted by Evaluate.
const FeasibilityTolerance = 1e-6

// Evaluation is the model's verdict on a candidate assignment.
type Evaluation struct {
	// Delta is the smallest delta the assignment admits.
	Delta float64
	// Feasible is true when every row holds at Delta.
	Feasible bool
	// Violated names the rows that fail at Delta.
	Violated []string
}

// Evaluate fixes the binaries from a and checks every row, choosing the smallest
// delta the rows allow.
//
// It detects scenarios that cannot be satisfied by a known assignment before a
// solve, and gives an upper bound on the optimal delta when they can.
func (m *Model) Evaluate(a hedge.Assignment) Evaluation {
	values := make([]float64, len(m.vars))
	ns := len(m.swapIDs)
	for i, cid := range m.creditIDs {
		for j, sid := range m.swapIDs {
			if a.Get(cid, sid) {
				values[m.assign[i*ns+j]] = 1
			}
		}
	}

	delta := math.Max(0, m.vars[m.delta].Lower)
	for _, c := range m.constraints {
		coef, rest := 0.0, 0.0
		for _, t := range c.Terms {
			if t.Var == m.delta {
				coef += t.Coef
				continue
			}
			rest += t.Coef * values[t.Var]
		}
		if coef == 0 {
			continue
		}
		bound := (c.RHS - rest) / coef
		// coef*delta <= b with coef < 0, or coef*delta >= b with coef > 0, bounds delta below.
		if (c.Sense == GreaterEqual) == (coef > 0) || c.Sense == Equal {
			delta = math.Max(delta, bound)
		}
	}
	values[m.delta] = delta

	ev := Evaluation{Delta: delta, Feasible: true}
	for _, c := range m.constraints {
		if !c.Holds(values, FeasibilityTolerance) {
			ev.Feasible = false
			ev.Violated = append(ev.Violated, c.Name)
		}
	}
	return ev
}

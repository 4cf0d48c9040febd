package mip

import (
	"fmt"
	"math"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/utils"
)

// DeltaName is the name of the objective variable.
const DeltaName = "delta"

// BuildOptions controls model construction.
type BuildOptions struct {
	// Name labels the model in exports.
	Name string
	// Precision is the number of decimal places coefficients are rounded to
	// (half away from zero). Zero selects DefaultPrecision.
	Precision int32
}

// DefaultPrecision keeps coefficients at 4 decimal places.
const DefaultPrecision int32 = 4

// DefaultBuildOptions names the model the way exported LP files expect.
var DefaultBuildOptions = BuildOptions{
	Name:      "Dollar_Offset_Optimization",
	Precision: DefaultPrecision,
}

// Build formulates the assignment of credits to swaps.
//
// Variables are delta >= 0 and one binary x_<credit>_<swap> per pair. For every swap j,
// with T_j the swap delta, P_j its principal and M_j its maturity:
//
//	Dollar_Offset_Upper_j:  Σ -d_i x_ij - T_j delta <= T_j
//	Dollar_Offset_Lower_j:  Σ -d_i x_ij + T_j delta >= T_j
//	Swap_Assignment_j:      Σ x_ij >= 1
//	Principal_Swap_j:       Σ p_i x_ij >= P_j
//	Maturity_Swap_j:        Σ p_i (m_i - M_j) x_ij >= 0
//
// and for every credit i, Credit_Assignment_i: Σ x_ij <= 1. The objective is min delta.
func Build(credits []credit.Credit, swaps []hedge.SwapTarget, opts BuildOptions) (*Model, error) {
	if err := checkTables(credits, swaps); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = DefaultBuildOptions.Name
	}
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	round := func(v float64) float64 { return utils.RoundHalfUp(v, opts.Precision) }

	nc, ns := len(credits), len(swaps)
	m := &Model{
		name:      opts.Name,
		byName:    make(map[string]int, 1+nc*ns),
		creditIDs: make([]int, nc),
		swapIDs:   make([]int, ns),
		assign:    make([]int, nc*ns),
	}
	for i, c := range credits {
		m.creditIDs[i] = c.ID
	}
	for j, s := range swaps {
		m.swapIDs[j] = s.ID
	}

	m.delta = m.addVar(DeltaName, Continuous, 0, math.Inf(1))
	for i, c := range credits {
		for j, s := range swaps {
			m.assign[i*ns+j] = m.addVar(assignName(c.ID, s.ID), Binary, 0, 1)
		}
	}
	m.objective = []Term{{Var: m.delta, Coef: 1}}

	x := func(i, j int) int { return m.assign[i*ns+j] }

	for j, s := range swaps {
		target := round(s.DeltaFV)

		var offset []Term
		for i, c := range credits {
			offset = appendTerm(offset, x(i, j), round(-c.DeltaFV))
		}
		m.addConstraint(fmt.Sprintf("Dollar_Offset_Upper_%d", s.ID),
			appendTerm(cloneTerms(offset), m.delta, -target), LessEqual, target)
		m.addConstraint(fmt.Sprintf("Dollar_Offset_Lower_%d", s.ID),
			appendTerm(cloneTerms(offset), m.delta, target), GreaterEqual, target)
	}

	for i, c := range credits {
		var row []Term
		for j := range swaps {
			row = append(row, Term{Var: x(i, j), Coef: 1})
		}
		m.addConstraint(fmt.Sprintf("Credit_Assignment_%d", c.ID), row, LessEqual, 1)
	}

	for j, s := range swaps {
		var row []Term
		for i := range credits {
			row = append(row, Term{Var: x(i, j), Coef: 1})
		}
		m.addConstraint(fmt.Sprintf("Swap_Assignment_%d", s.ID), row, GreaterEqual, 1)
	}

	for j, s := range swaps {
		var row []Term
		for i, c := range credits {
			row = appendTerm(row, x(i, j), round(c.Principal))
		}
		m.addConstraint(fmt.Sprintf("Principal_Swap_%d", s.ID), row, GreaterEqual, round(s.Principal))
	}

	for j, s := range swaps {
		var row []Term
		for i, c := range credits {
			row = appendTerm(row, x(i, j), round(c.Principal*(float64(c.Maturity)-s.Maturity)))
		}
		m.addConstraint(fmt.Sprintf("Maturity_Swap_%d", s.ID), row, GreaterEqual, 0)
	}

	m.state = StateBuilt
	return m, nil
}

func (m *Model) addVar(name string, kind VarKind, lower, upper float64) int {
	idx := len(m.vars)
	m.vars = append(m.vars, Var{Index: idx, Name: name, Kind: kind, Lower: lower, Upper: upper})
	m.byName[name] = idx
	return idx
}

func (m *Model) addConstraint(name string, terms []Term, sense Sense, rhs float64) {
	m.constraints = append(m.constraints, Constraint{Name: name, Terms: terms, Sense: sense, RHS: rhs})
}

// appendTerm skips zero coefficients; a row without terms is still emitted.
func appendTerm(terms []Term, v int, coef float64) []Term {
	if coef == 0 {
		return terms
	}
	return append(terms, Term{Var: v, Coef: coef})
}

func cloneTerms(terms []Term) []Term {
	out := make([]Term, len(terms), len(terms)+1)
	copy(out, terms)
	return out
}

func checkTables(credits []credit.Credit, swaps []hedge.SwapTarget) error {
	var reasons []string
	if len(credits) == 0 {
		reasons = append(reasons, "no credits")
	}
	if len(swaps) == 0 {
		reasons = append(reasons, "no swaps")
	}

	seenCredit := make(map[int]struct{}, len(credits))
	for _, c := range credits {
		if _, dup := seenCredit[c.ID]; dup {
			reasons = append(reasons, fmt.Sprintf("duplicate credit id %d", c.ID))
		}
		seenCredit[c.ID] = struct{}{}
		if !finite(c.Principal) || !finite(c.DeltaFV) || !finite(c.CreditSpread) {
			reasons = append(reasons, fmt.Sprintf("credit %d has a non-numeric field", c.ID))
		}
		if c.Principal <= 0 {
			reasons = append(reasons, fmt.Sprintf("credit %d principal %v is not positive", c.ID, c.Principal))
		}
		if c.Maturity <= 0 {
			reasons = append(reasons, fmt.Sprintf("credit %d maturity %d is not positive", c.ID, c.Maturity))
		}
	}

	seenSwap := make(map[int]struct{}, len(swaps))
	for _, s := range swaps {
		if _, dup := seenSwap[s.ID]; dup {
			reasons = append(reasons, fmt.Sprintf("duplicate swap id %d", s.ID))
		}
		seenSwap[s.ID] = struct{}{}
		if !finite(s.Principal) || !finite(s.DeltaFV) || !finite(s.Maturity) {
			reasons = append(reasons, fmt.Sprintf("swap %d has a non-numeric field", s.ID))
		}
		if s.Principal <= 0 {
			reasons = append(reasons, fmt.Sprintf("swap %d principal %v is not positive", s.ID, s.Principal))
		}
		if s.Maturity <= 0 {
			reasons = append(reasons, fmt.Sprintf("swap %d maturity %v is not positive", s.ID, s.Maturity))
		}
	}

	if len(reasons) > 0 {
		return &DimensionMismatchError{Reasons: reasons}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package mip_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/mip/miptest"
)

// twoCredits must both go to the swap: neither covers its principal alone.
func twoCredits() ([]credit.Credit, []hedge.SwapTarget) {
	credits := []credit.Credit{
		{ID: 1, Type: "A", Principal: 1500, Maturity: 24, CreditSpread: 0.02, DeltaFV: -10},
		{ID: 2, Type: "A", Principal: 2500, Maturity: 30, CreditSpread: 0.02, DeltaFV: -20},
	}
	swaps := []hedge.SwapTarget{
		{ID: 1, Principal: 3800, DeltaFV: 28.5, Maturity: 27.5},
	}
	return credits, swaps
}

func coefOf(t *testing.T, m *mip.Model, c mip.Constraint, name string) float64 {
	t.Helper()
	v, ok := m.Var(name)
	require.True(t, ok, "variable %s", name)
	total := 0.0
	for _, term := range c.Terms {
		if term.Var == v.Index {
			total += term.Coef
		}
	}
	return total
}

func TestBuild_Structure(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	assert.Equal(t, mip.StateBuilt, m.State())
	assert.Equal(t, "Dollar_Offset_Optimization", m.Name())

	vars := m.Vars()
	require.Len(t, vars, 3)
	assert.Equal(t, mip.DeltaName, vars[0].Name)
	assert.Equal(t, mip.Continuous, vars[0].Kind)
	assert.Equal(t, 0.0, vars[0].Lower)
	assert.True(t, math.IsInf(vars[0].Upper, 1))
	for _, v := range vars[1:] {
		assert.Equal(t, mip.Binary, v.Kind)
		assert.Equal(t, 1.0, v.Upper)
	}
	x21, ok := m.AssignVar(2, 1)
	require.True(t, ok)
	assert.Equal(t, "x_2_1", x21.Name)
	assert.Equal(t, vars[2], x21)
	_, ok = m.AssignVar(3, 1)
	assert.False(t, ok)

	obj := m.Objective()
	require.Len(t, obj, 1)
	assert.Equal(t, m.DeltaVar().Index, obj[0].Var)
	assert.Equal(t, 1.0, obj[0].Coef)

	names := make([]string, 0)
	for _, c := range m.Constraints() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"Dollar_Offset_Upper_1", "Dollar_Offset_Lower_1",
		"Credit_Assignment_1", "Credit_Assignment_2",
		"Swap_Assignment_1",
		"Principal_Swap_1",
		"Maturity_Swap_1",
	}, names)
}

func TestBuild_PrincipalSufficiency(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	c, ok := m.Constraint("Principal_Swap_1")
	require.True(t, ok)
	assert.Equal(t, mip.GreaterEqual, c.Sense)
	assert.Equal(t, 3800.0, c.RHS)
	assert.Equal(t, 1500.0, coefOf(t, m, c, "x_1_1"))
	assert.Equal(t, 2500.0, coefOf(t, m, c, "x_2_1"))

	// Only both credits together satisfy the row.
	both := []float64{0, 1, 1}
	one := []float64{0, 0, 1}
	assert.True(t, c.Holds(both, 0))
	assert.False(t, c.Holds(one, 0))
}

func TestBuild_BandAndMaturityRows(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	upper, _ := m.Constraint("Dollar_Offset_Upper_1")
	assert.Equal(t, mip.LessEqual, upper.Sense)
	assert.Equal(t, 28.5, upper.RHS)
	assert.Equal(t, 10.0, coefOf(t, m, upper, "x_1_1"))
	assert.Equal(t, 20.0, coefOf(t, m, upper, "x_2_1"))
	assert.Equal(t, -28.5, coefOf(t, m, upper, mip.DeltaName))

	lower, _ := m.Constraint("Dollar_Offset_Lower_1")
	assert.Equal(t, mip.GreaterEqual, lower.Sense)
	assert.Equal(t, 28.5, coefOf(t, m, lower, mip.DeltaName))

	mat, _ := m.Constraint("Maturity_Swap_1")
	assert.Equal(t, mip.GreaterEqual, mat.Sense)
	assert.Equal(t, 0.0, mat.RHS)
	assert.Equal(t, 1500*(24-27.5), coefOf(t, m, mat, "x_1_1"))
	assert.Equal(t, 2500*(30-27.5), coefOf(t, m, mat, "x_2_1"))

	cov, _ := m.Constraint("Swap_Assignment_1")
	assert.Equal(t, mip.GreaterEqual, cov.Sense)
	assert.Equal(t, 1.0, cov.RHS)
	assert.Len(t, cov.Terms, 2)

	once, _ := m.Constraint("Credit_Assignment_2")
	assert.Equal(t, mip.LessEqual, once.Sense)
	assert.Equal(t, 1.0, once.RHS)
}

func TestBuild_RoundsCoefficientsHalfUp(t *testing.T) {
	credits := []credit.Credit{
		{ID: 7, Principal: 1000, Maturity: 12, DeltaFV: -1.23456},
		{ID: 8, Principal: 1000, Maturity: 12, DeltaFV: -0.00005},
	}
	swaps := []hedge.SwapTarget{{ID: 3, Principal: 1500.123456, DeltaFV: 1.00005, Maturity: 12}}

	m, err := mip.Build(credits, swaps, mip.BuildOptions{Precision: 4})
	require.NoError(t, err)

	upper, _ := m.Constraint("Dollar_Offset_Upper_3")
	assert.Equal(t, 1.2346, coefOf(t, m, upper, "x_7_3"))
	assert.Equal(t, 0.0001, coefOf(t, m, upper, "x_8_3"))
	assert.Equal(t, 1.0001, upper.RHS)

	p, _ := m.Constraint("Principal_Swap_3")
	assert.Equal(t, 1500.1235, p.RHS)

	// p_i*(m_i - M) is zero for both credits, so the row carries no terms.
	mat, _ := m.Constraint("Maturity_Swap_3")
	assert.Empty(t, mat.Terms)
}

func TestBuild_DimensionMismatch(t *testing.T) {
	credits, swaps := twoCredits()

	tests := []struct {
		name    string
		credits []credit.Credit
		swaps   []hedge.SwapTarget
	}{
		{name: "no credits", credits: nil, swaps: swaps},
		{name: "no swaps", credits: credits, swaps: nil},
		{name: "duplicate credit", credits: []credit.Credit{credits[0], credits[0]}, swaps: swaps},
		{name: "duplicate swap", credits: credits, swaps: []hedge.SwapTarget{swaps[0], swaps[0]}},
		{name: "nan delta", credits: []credit.Credit{{ID: 1, Principal: 1, Maturity: 1, DeltaFV: math.NaN()}}, swaps: swaps},
		{name: "zero principal", credits: []credit.Credit{{ID: 1, Principal: 0, Maturity: 1}}, swaps: swaps},
		{name: "zero maturity", credits: []credit.Credit{{ID: 1, Principal: 1, Maturity: 0}}, swaps: swaps},
		{name: "inf swap delta", credits: credits, swaps: []hedge.SwapTarget{{ID: 1, Principal: 1, Maturity: 1, DeltaFV: math.Inf(1)}}},
		{name: "negative swap maturity", credits: credits, swaps: []hedge.SwapTarget{{ID: 1, Principal: 1, Maturity: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := mip.Build(tt.credits, tt.swaps, mip.DefaultBuildOptions)
			assert.Nil(t, m)
			require.ErrorIs(t, err, mip.ErrDimensionMismatch)
			var dm *mip.DimensionMismatchError
			require.ErrorAs(t, err, &dm)
			assert.NotEmpty(t, dm.Reasons)
		})
	}
}

func TestWriteLP(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteLP(&buf))
	lp := buf.String()

	assert.True(t, strings.HasPrefix(lp, "\\* Dollar_Offset_Optimization *\\\nMinimize\nOBJ: 1 delta\nSubject To\n"))
	assert.Contains(t, lp, "Dollar_Offset_Upper_1: 10 x_1_1 + 20 x_2_1 - 28.5 delta <= 28.5\n")
	assert.Contains(t, lp, "Dollar_Offset_Lower_1: 10 x_1_1 + 20 x_2_1 + 28.5 delta >= 28.5\n")
	assert.Contains(t, lp, "Principal_Swap_1: 1500 x_1_1 + 2500 x_2_1 >= 3800\n")
	assert.Contains(t, lp, "Maturity_Swap_1: - 5250 x_1_1 + 6250 x_2_1 >= 0\n")
	assert.Contains(t, lp, "Binaries\nx_1_1\nx_2_1\nEnd\n")
	assert.NotContains(t, lp, "Bounds")
}

func TestExportLP(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	path, err := m.ExportLP(t.TempDir(), "First")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "output_model_First.lp"))
}

func TestSolve_Exhaustive(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	_, err = m.Assignment()
	require.ErrorIs(t, err, mip.ErrNotSolved)
	_, err = m.Values()
	require.ErrorIs(t, err, mip.ErrNotSolved)

	res, err := mip.Solve(context.Background(), miptest.Exhaustive{}, m, mip.DefaultOptions)
	require.NoError(t, err)
	require.Equal(t, mip.StatusOptimal, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, "exhaustive", res.Solver)
	assert.Equal(t, mip.StateSolved, m.State())

	// Both credits: lhs = 30, T = 28.5, delta = 30/28.5 - 1.
	assert.InDelta(t, 30/28.5-1, res.Delta, 1e-9)
	assert.Equal(t, []int{1, 2}, res.Assignment.Assigned(1))

	obj, err := m.ObjectiveValue()
	require.NoError(t, err)
	assert.Equal(t, res.Delta, obj)

	values, err := m.Values()
	require.NoError(t, err)
	for _, c := range m.Constraints() {
		assert.True(t, c.Holds(values, mip.FeasibilityTolerance), c.Name)
	}
	x11, err := m.Value("x_1_1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, x11)
	_, err = m.Value("x_9_9")
	assert.Error(t, err)

	_, err = mip.Solve(context.Background(), miptest.Exhaustive{}, m, mip.DefaultOptions)
	assert.ErrorIs(t, err, mip.ErrAlreadySolved)
}

func TestSolve_Infeasible(t *testing.T) {
	credits, swaps := twoCredits()
	swaps[0].Principal = 5000 // more than both credits together
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	res, err := mip.Solve(context.Background(), miptest.Exhaustive{}, m, mip.DefaultOptions)
	require.NoError(t, err)
	assert.Equal(t, mip.StatusInfeasible, res.Status)
	assert.False(t, res.OK())
	assert.Equal(t, mip.StateBuilt, m.State())

	ev := m.Evaluate(mustAssignAll(t, m))
	assert.False(t, ev.Feasible)
	assert.Equal(t, []string{"Principal_Swap_1"}, ev.Violated)
}

type stubSolver struct {
	sol mip.Solution
	err error
}

func (s stubSolver) Name() string { return "stub" }

func (s stubSolver) Solve(context.Context, *mip.Model, mip.Options) (mip.Solution, error) {
	return s.sol, s.err
}

func TestSolve_BackendOutcomesAreData(t *testing.T) {
	tests := []struct {
		name   string
		solver stubSolver
		want   mip.Status
	}{
		{name: "backend error", solver: stubSolver{err: errors.New("cbc crashed")}, want: mip.StatusError},
		{name: "time limit", solver: stubSolver{sol: mip.Solution{Status: mip.StatusTimeLimitReached}}, want: mip.StatusTimeLimitReached},
		{name: "unbounded", solver: stubSolver{sol: mip.Solution{Status: mip.StatusUnbounded}}, want: mip.StatusUnbounded},
		{name: "optimal without values", solver: stubSolver{sol: mip.Solution{Status: mip.StatusOptimal}}, want: mip.StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits, swaps := twoCredits()
			m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
			require.NoError(t, err)

			res, err := mip.Solve(context.Background(), tt.solver, m, mip.DefaultOptions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.False(t, res.OK())
			assert.Equal(t, mip.StateBuilt, m.State())
		})
	}
}

func TestSolve_Misuse(t *testing.T) {
	_, err := mip.Solve(context.Background(), nil, nil, mip.DefaultOptions)
	assert.Error(t, err)
	_, err = mip.Solve(context.Background(), miptest.Exhaustive{}, nil, mip.DefaultOptions)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	credits, swaps := twoCredits()
	m, err := mip.Build(credits, swaps, mip.DefaultBuildOptions)
	require.NoError(t, err)

	ev := m.Evaluate(mustAssignAll(t, m))
	assert.True(t, ev.Feasible)
	assert.Empty(t, ev.Violated)
	assert.InDelta(t, 30/28.5-1, ev.Delta, 1e-9)

	empty, err := hedge.NewAssignment(m.CreditIDs(), m.SwapIDs())
	require.NoError(t, err)
	ev = m.Evaluate(empty)
	assert.False(t, ev.Feasible)
	assert.Contains(t, ev.Violated, "Swap_Assignment_1")
	assert.Contains(t, ev.Violated, "Principal_Swap_1")
}

func mustAssignAll(t *testing.T, m *mip.Model) hedge.Assignment {
	t.Helper()
	a, err := hedge.NewAssignment(m.CreditIDs(), m.SwapIDs())
	require.NoError(t, err)
	for _, c := range m.CreditIDs() {
		require.NoError(t, a.Set(c, m.SwapIDs()[0], true))
	}
	return a
}

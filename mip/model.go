package mip

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/meenmo/hedgeassign/hedge"
)

var (
	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("inconsistent credit/swap tables")
	// ErrAlreadySolved is returned when a solved model is submitted again.
	ErrAlreadySolved = errors.New("model already solved")
	// ErrNotSolved is returned when solution values are read from a built model.
	ErrNotSolved = errors.New("model not solved")
)

// DimensionMismatchError reports malformed credit or swap tables passed to Build.
type DimensionMismatchError struct {
	Reasons []string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDimensionMismatch, strings.Join(e.Reasons, "; "))
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// VarKind is the domain of a decision variable.
type VarKind int

const (
	// Continuous variables take real values within their bounds.
	Continuous VarKind = iota
	// Binary variables take 0 or 1.
	Binary
)

func (k VarKind) String() string {
	if k == Binary {
		return "binary"
	}
	return "continuous"
}

// Var is a decision variable. Index is its position in Model.Vars.
type Var struct {
	Index int
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64 // math.Inf(1) when unbounded
}

// Term is coef * Vars[Var].
type Term struct {
	Var  int
	Coef float64
}

// Sense is the relation of a constraint row.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// Constraint is the row  Σ Terms  Sense  RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Holds reports whether values satisfy the row within tol.
func (c Constraint) Holds(values []float64, tol float64) bool {
	lhs := 0.0
	for _, t := range c.Terms {
		lhs += t.Coef * values[t.Var]
	}
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// State is the lifecycle stage of a model.
type State int

const (
	// StateBuilt models are complete and ready to submit to a Solver.
	StateBuilt State = iota
	// StateSolved models carry a value for every variable.
	StateSolved
)

func (s State) String() string {
	if s == StateSolved {
		return "solved"
	}
	return "built"
}

// Model is the dollar-offset assignment MIP: minimize delta subject to the
// per-swap band, coverage, principal and maturity rows.
//
// Models are only obtained from Build, fully formed. Solve populates the values
// once; a Model must not be shared between concurrent solves.
type Model struct {
	name        string
	vars        []Var
	byName      map[string]int
	objective   []Term
	constraints []Constraint

	creditIDs []int
	swapIDs   []int
	assign    []int // var index of x[i*len(swapIDs)+j]
	delta     int

	state    State
	values   []float64
	objValue float64
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// State returns the lifecycle stage.
func (m *Model) State() State { return m.state }

// Vars returns a copy of the variables in index order.
func (m *Model) Vars() []Var {
	return append([]Var(nil), m.vars...)
}

// Var looks a variable up by name.
func (m *Model) Var(name string) (Var, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Var{}, false
	}
	return m.vars[i], true
}

// DeltaVar returns the objective variable.
func (m *Model) DeltaVar() Var { return m.vars[m.delta] }

// AssignVar returns the binary deciding whether a credit goes to a swap.
func (m *Model) AssignVar(creditID, swapID int) (Var, bool) {
	return m.Var(assignName(creditID, swapID))
}

// Objective returns the minimized linear objective.
func (m *Model) Objective() []Term {
	return append([]Term(nil), m.objective...)
}

// Constraints returns a copy of the rows in insertion order.
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	for i, c := range m.constraints {
		c.Terms = append([]Term(nil), c.Terms...)
		out[i] = c
	}
	return out
}

// Constraint looks a row up by name.
func (m *Model) Constraint(name string) (Constraint, bool) {
	for _, c := range m.constraints {
		if c.Name == name {
			c.Terms = append([]Term(nil), c.Terms...)
			return c, true
		}
	}
	return Constraint{}, false
}

// CreditIDs returns the credit ids in row order.
func (m *Model) CreditIDs() []int { return append([]int(nil), m.creditIDs...) }

// SwapIDs returns the swap ids in column order.
func (m *Model) SwapIDs() []int { return append([]int(nil), m.swapIDs...) }

// Value returns the solved value of a named variable.
func (m *Model) Value(name string) (float64, error) {
	if m.state != StateSolved {
		return 0, ErrNotSolved
	}
	i, ok := m.byName[name]
	if !ok {
		return 0, fmt.Errorf("Value: unknown variable %q", name)
	}
	return m.values[i], nil
}

// Values returns the solved values in variable index order.
func (m *Model) Values() ([]float64, error) {
	if m.state != StateSolved {
		return nil, ErrNotSolved
	}
	return append([]float64(nil), m.values...), nil
}

// ObjectiveValue returns the solved delta.
func (m *Model) ObjectiveValue() (float64, error) {
	if m.state != StateSolved {
		return 0, ErrNotSolved
	}
	return m.objValue, nil
}

// Assignment reads the solved binaries, rounded to the nearest integer, into a matrix.
func (m *Model) Assignment() (hedge.Assignment, error) {
	if m.state != StateSolved {
		return hedge.Assignment{}, ErrNotSolved
	}
	a, err := hedge.NewAssignment(m.creditIDs, m.swapIDs)
	if err != nil {
		return hedge.Assignment{}, err
	}
	ns := len(m.swapIDs)
	for i, cid := range m.creditIDs {
		for j, sid := range m.swapIDs {
			if math.Round(m.values[m.assign[i*ns+j]]) == 1 {
				if err := a.Set(cid, sid, true); err != nil {
					return hedge.Assignment{}, err
				}
			}
		}
	}
	return a, nil
}

// markSolved stores a complete value vector and flips the model to StateSolved.
func (m *Model) markSolved(values []float64) {
	m.values = values
	obj := 0.0
	for _, t := range m.objective {
		obj += t.Coef * values[t.Var]
	}
	m.objValue = obj
	m.state = StateSolved
}

func assignName(creditID, swapID int) string {
	return fmt.Sprintf("x_%d_%d", creditID, swapID)
}

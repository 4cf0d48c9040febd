package mip

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meenmo/hedgeassign/hedge"
)

// Status is the outcome reported by a Solver. Values are passed through unchanged.
type Status string

const (
	StatusOptimal          Status = "Optimal"
	StatusFeasible         Status = "Feasible"
	StatusInfeasible       Status = "Infeasible"
	StatusTimeLimitReached Status = "TimeLimitReached"
	StatusUnbounded        Status = "Unbounded"
	StatusError            Status = "Error"
)

// HasSolution reports whether the status carries variable values.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusFeasible
}

// Options are passed to the solver backend.
type Options struct {
	// TimeLimit bounds wall-clock time; zero means no limit.
	TimeLimit time.Duration
	// Workers is the thread count; zero lets the backend decide.
	Workers int
	// RelativeGap is the relative MIP gap at which the search stops.
	RelativeGap float64
}

// DefaultOptions matches the usual 1% relative gap with no time limit.
var DefaultOptions = Options{RelativeGap: 0.01}

// Solution is what a backend returns for one model.
//
// Values is keyed by variable name and must hold every variable when Status
// has a solution.
type Solution struct {
	Status  Status
	Values  map[string]float64
	Message string
}

// Solver is an external MIP capability.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model, opts Options) (Solution, error)
}

// Result is the outcome of Solve.
//
// Assignment and Delta are only meaningful when Status.HasSolution() is true.
type Result struct {
	Solver     string
	Status     Status
	Delta      float64
	Assignment hedge.Assignment
	WallTime   time.Duration
	Message    string
}

// OK reports whether an assignment was produced.
func (r Result) OK() bool {
	return r.Status.HasSolution()
}

// Solve submits m to s and, on Optimal or Feasible, moves m to StateSolved.
//
// Backend failures are reported as StatusError results, never as errors: the
// returned error is reserved for misuse (nil arguments, re-solving a solved model).
// A non-success status leaves m in StateBuilt and the result without assignment.
func Solve(ctx context.Context, s Solver, m *Model, opts Options) (Result, error) {
	if s == nil {
		return Result{}, errors.New("Solve: nil solver")
	}
	if m == nil {
		return Result{}, errors.New("Solve: nil model")
	}
	if m.state == StateSolved {
		return Result{}, fmt.Errorf("Solve: %w", ErrAlreadySolved)
	}

	start := time.Now()
	sol, err := s.Solve(ctx, m, opts)
	res := Result{
		Solver:   s.Name(),
		Status:   sol.Status,
		WallTime: time.Since(start),
		Message:  sol.Message,
	}
	if err != nil {
		res.Status = StatusError
		res.Message = err.Error()
		return res, nil
	}
	if !res.Status.HasSolution() {
		return res, nil
	}

	values := make([]float64, len(m.vars))
	for i, v := range m.vars {
		val, ok := sol.Values[v.Name]
		if !ok {
			res.Status = StatusError
			res.Message = fmt.Sprintf("solver returned no value for %s", v.Name)
			return res, nil
		}
		values[i] = val
	}

	m.markSolved(values)
	res.Delta = m.objValue
	res.Assignment, err = m.Assignment()
	if err != nil {
		return Result{}, fmt.Errorf("Solve: %w", err)
	}
	return res, nil
}

package hedge

import (
	"errors"
	"fmt"

	"github.com/meenmo/hedgeassign/credit"
)

var (
	// ErrInfeasibleScenario is matched by every *InfeasibleScenarioError.
	ErrInfeasibleScenario = errors.New("infeasible scenario")
)

// InfeasibleScenarioError reports swaps that received no retained credit during aggregation.
//
// Such a scenario cannot satisfy the at-least-one coverage constraint of the assignment model.
type InfeasibleScenarioError struct {
	EmptySwaps []int
}

func (e *InfeasibleScenarioError) Error() string {
	return fmt.Sprintf("%s: swaps %v received no retained credit", ErrInfeasibleScenario, e.EmptySwaps)
}

func (e *InfeasibleScenarioError) Is(target error) bool {
	return target == ErrInfeasibleScenario
}

// Dropped is the swap label of a credit that is not assigned to any swap.
const Dropped = 0

// SwapTarget is the aggregate exposure a hedging swap must be covered with.
//
// DeltaFV carries the opposite sign of the aggregated credit deltas: the swap offsets
// the hedged exposure rather than replicating it.
type SwapTarget struct {
	ID        int
	Principal float64
	DeltaFV   float64
	Maturity  float64 // principal-weighted average, in periods
}

// LabeledCredit is a credit tagged with its swap (or Dropped) after aggregation.
//
// UniqueIndex is the row position in the labeled table and is independent of
// Credit.ID. It only records table order: models, assignments and the validator
// join credits on Credit.ID, so the labeled table may be reordered freely.
type LabeledCredit struct {
	credit.Credit
	UniqueIndex int
	Swap        int
}

// IsDropped reports whether the credit was left out of every swap.
func (c LabeledCredit) IsDropped() bool {
	return c.Swap == Dropped
}

// SwapLabel renders the swap column value: the swap id, or "Dropped".
func (c LabeledCredit) SwapLabel() string {
	if c.IsDropped() {
		return "Dropped"
	}
	return fmt.Sprintf("%d", c.Swap)
}

// Credits strips the labels.
func Credits(labeled []LabeledCredit) []credit.Credit {
	out := make([]credit.Credit, len(labeled))
	for i, c := range labeled {
		out[i] = c.Credit
	}
	return out
}

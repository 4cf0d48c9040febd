package hedge

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/utils"
)

// AggregateOptions controls how a portfolio is split into swap targets.
type AggregateOptions struct {
	// NumSwaps is the number of hedging swaps, ids 1..NumSwaps.
	NumSwaps int
	// RetainFraction is the share of credits kept for assignment (0 < f <= 1).
	RetainFraction float64
	// ScaleFactor scales the aggregated delta before the sign flip.
	ScaleFactor float64
}

// DefaultAggregateOptions mirrors the usual synthetic scenario: 90% retained, 0.95 scaling.
var DefaultAggregateOptions = AggregateOptions{
	NumSwaps:       1,
	RetainFraction: 0.9,
	ScaleFactor:    0.95,
}

func (o AggregateOptions) validate() error {
	if o.NumSwaps < 1 {
		return fmt.Errorf("num swaps %d must be at least 1", o.NumSwaps)
	}
	if math.IsNaN(o.RetainFraction) || o.RetainFraction <= 0 || o.RetainFraction > 1 {
		return fmt.Errorf("retain fraction %v must be in (0, 1]", o.RetainFraction)
	}
	if math.IsNaN(o.ScaleFactor) || math.IsInf(o.ScaleFactor, 0) {
		return fmt.Errorf("scale factor %v must be finite", o.ScaleFactor)
	}
	return nil
}

// Aggregate retains a random subset of credits, spreads it over swaps and returns
// the per-swap targets together with the labeled credit table.
//
// round(RetainFraction*N) credits are retained and each gets a uniform swap id. For every
// swap the target is the retained principal sum, the principal-weighted maturity
// (2 dp) and the retained delta sum scaled by ScaleFactor with its sign flipped.
// Labeled rows list retained credits first, then dropped ones.
//
// A swap left without credits makes the scenario unusable; Aggregate then returns an
// *InfeasibleScenarioError and the caller decides whether to redraw.
func Aggregate(rng *rand.Rand, credits []credit.Credit, opts AggregateOptions) ([]SwapTarget, []LabeledCredit, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, fmt.Errorf("Aggregate: %w", err)
	}

	n := len(credits)
	k := int(math.Round(opts.RetainFraction * float64(n)))
	perm := rng.Perm(n)

	retained := make([]bool, n)
	labeled := make([]LabeledCredit, 0, n)
	for _, idx := range perm[:k] {
		retained[idx] = true
		labeled = append(labeled, LabeledCredit{
			Credit: credits[idx],
			Swap:   1 + rng.IntN(opts.NumSwaps),
		})
	}
	for idx, c := range credits {
		if !retained[idx] {
			labeled = append(labeled, LabeledCredit{Credit: c, Swap: Dropped})
		}
	}
	for i := range labeled {
		labeled[i].UniqueIndex = i
	}

	type sums struct {
		principal, deltaFV, weightedMaturity float64
		count                                int
	}
	agg := make([]sums, opts.NumSwaps+1)
	for _, c := range labeled {
		if c.IsDropped() {
			continue
		}
		s := &agg[c.Swap]
		s.principal += c.Principal
		s.deltaFV += c.DeltaFV
		s.weightedMaturity += c.Principal * float64(c.Maturity)
		s.count++
	}

	var empty []int
	targets := make([]SwapTarget, 0, opts.NumSwaps)
	for id := 1; id <= opts.NumSwaps; id++ {
		s := agg[id]
		if s.count == 0 {
			empty = append(empty, id)
			continue
		}
		targets = append(targets, SwapTarget{
			ID:        id,
			Principal: s.principal,
			DeltaFV:   s.deltaFV * opts.ScaleFactor * -1,
			Maturity:  utils.RoundHalfUp(s.weightedMaturity/s.principal, 2),
		})
	}
	if len(empty) > 0 {
		return nil, nil, &InfeasibleScenarioError{EmptySwaps: empty}
	}

	return targets, labeled, nil
}

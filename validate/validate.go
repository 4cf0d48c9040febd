// Package validate re-checks an assignment against the raw credit and swap tables.
//
// It knows nothing about the model or the solver that produced the assignment.
package validate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/utils"
)

// Options sets the acceptance bands and the labels copied into the summary.
type Options struct {
	// LowerBand and UpperBand bound the offset ratio r_j.
	LowerBand float64
	UpperBand float64
	// ZeroTolerance decides when a delta counts as zero.
	ZeroTolerance float64

	ExperimentName string
	Solver         string
	WallTime       time.Duration
}

// DefaultOptions accepts offsets between 85% and 115%.
var DefaultOptions = Options{
	LowerBand:     0.85,
	UpperBand:     1.15,
	ZeroTolerance: 1e-8,
}

// SwapReport is the per-swap outcome.
type SwapReport struct {
	SwapID int `json:"Swap_ID" yaml:"Swap_ID"`

	AssignedPrincipal float64 `json:"Assigned_Principal" yaml:"Assigned_Principal"`
	SwapPrincipal     float64 `json:"Swap_Principal" yaml:"Swap_Principal"`
	PrincipalOK       bool    `json:"Principal_OK" yaml:"Principal_OK"`

	AssignedDeltaFV float64 `json:"Assigned_Delta_FV" yaml:"Assigned_Delta_FV"`
	SwapDeltaFV     float64 `json:"Swap_Delta_FV" yaml:"Swap_Delta_FV"`
	// Ratio is nil when the swap delta is zero.
	Ratio   *float64 `json:"r_j" yaml:"r_j"`
	DeltaOK bool     `json:"Delta_OK" yaml:"Delta_OK"`

	// AssignedWeightedMaturity is nil when nothing is assigned.
	AssignedWeightedMaturity *float64 `json:"Assigned_Weighted_Maturity" yaml:"Assigned_Weighted_Maturity"`
	SwapMaturity             float64  `json:"Swap_Maturity" yaml:"Swap_Maturity"`
	MaturityOK               bool     `json:"Maturity_OK" yaml:"Maturity_OK"`
}

// Summary aggregates the reports. The All_ flags are false when there are no swaps.
type Summary struct {
	ExperimentName string  `json:"Experiment_Name" yaml:"Experiment_Name"`
	Solver         string  `json:"Solver" yaml:"Solver"`
	WallTime       float64 `json:"Wall_Time" yaml:"Wall_Time"`
	ObjectiveDelta string  `json:"Objective_Delta" yaml:"Objective_Delta"`
	AllDeltaOK     bool    `json:"All_Delta_OK" yaml:"All_Delta_OK"`
	AllPrincipalOK bool    `json:"All_Principal_OK" yaml:"All_Principal_OK"`
	AllMaturityOK  bool    `json:"All_Maturity_OK" yaml:"All_Maturity_OK"`
}

// OK reports whether every check passed.
func (s Summary) OK() bool {
	return s.AllDeltaOK && s.AllPrincipalOK && s.AllMaturityOK
}

// Validate recomputes principal, delta and weighted maturity for every swap
// column of a and compares them with the swap targets.
//
// Assignment rows are matched to credits by Credit.ID, so the order of credits
// is irrelevant. Assigned_* quantities are rounded to 2 places, ratios and
// maturities to 6; the checks use the unrounded values.
func Validate(a hedge.Assignment, swaps []hedge.SwapTarget, credits []credit.Credit, objectiveDelta float64, opts Options) ([]SwapReport, Summary, error) {
	if math.IsNaN(opts.LowerBand) || math.IsNaN(opts.UpperBand) || opts.LowerBand > opts.UpperBand {
		return nil, Summary{}, fmt.Errorf("Validate: band [%v, %v] is empty", opts.LowerBand, opts.UpperBand)
	}
	if opts.ZeroTolerance < 0 {
		return nil, Summary{}, errors.New("Validate: negative zero tolerance")
	}

	swapByID := make(map[int]hedge.SwapTarget, len(swaps))
	for _, s := range swaps {
		swapByID[s.ID] = s
	}
	creditByID := make(map[int]credit.Credit, len(credits))
	for _, c := range credits {
		if _, dup := creditByID[c.ID]; dup {
			return nil, Summary{}, fmt.Errorf("Validate: duplicate credit id %d", c.ID)
		}
		creditByID[c.ID] = c
	}
	for _, id := range a.CreditIDs() {
		if _, ok := creditByID[id]; !ok {
			return nil, Summary{}, fmt.Errorf("Validate: assignment row for unknown credit %d", id)
		}
	}

	reports := make([]SwapReport, 0, len(a.SwapIDs()))
	for _, sid := range a.SwapIDs() {
		swap, ok := swapByID[sid]
		if !ok {
			return nil, Summary{}, fmt.Errorf("Validate: column %s has no swap target", hedge.ColumnName(sid))
		}
		reports = append(reports, check(swap, a.Assigned(sid), creditByID, opts))
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].SwapID < reports[j].SwapID })

	summary := Summary{
		ExperimentName: opts.ExperimentName,
		Solver:         opts.Solver,
		WallTime:       opts.WallTime.Seconds(),
		ObjectiveDelta: formatObjective(objectiveDelta),
	}
	if len(reports) > 0 {
		summary.AllDeltaOK, summary.AllPrincipalOK, summary.AllMaturityOK = true, true, true
		for _, r := range reports {
			summary.AllDeltaOK = summary.AllDeltaOK && r.DeltaOK
			summary.AllPrincipalOK = summary.AllPrincipalOK && r.PrincipalOK
			summary.AllMaturityOK = summary.AllMaturityOK && r.MaturityOK
		}
	}
	return reports, summary, nil
}

func check(swap hedge.SwapTarget, assigned []int, credits map[int]credit.Credit, opts Options) SwapReport {
	var principal, delta, weighted float64
	for _, id := range assigned {
		c := credits[id]
		principal += c.Principal
		delta += c.DeltaFV
		weighted += c.Principal * float64(c.Maturity)
	}

	r := SwapReport{
		SwapID:            swap.ID,
		AssignedPrincipal: utils.RoundHalfUp(principal, 2),
		SwapPrincipal:     utils.RoundHalfUp(swap.Principal, 2),
		PrincipalOK:       principal >= swap.Principal,
		AssignedDeltaFV:   utils.RoundHalfUp(delta, 2),
		SwapDeltaFV:       utils.RoundHalfUp(swap.DeltaFV, 2),
		SwapMaturity:      utils.RoundHalfUp(swap.Maturity, 6),
	}

	if math.Abs(swap.DeltaFV) <= opts.ZeroTolerance {
		r.DeltaOK = math.Abs(delta) <= opts.ZeroTolerance
	} else {
		ratio := delta / -swap.DeltaFV
		r.DeltaOK = opts.LowerBand <= ratio && ratio <= opts.UpperBand
		rounded := utils.RoundHalfUp(ratio, 6)
		r.Ratio = &rounded
	}

	if principal > 0 {
		wm := weighted / principal
		// An exact p*(m-M) balance can divide to a few ulps below M.
		r.MaturityOK = wm >= swap.Maturity-opts.ZeroTolerance
		rounded := utils.RoundHalfUp(wm, 6)
		r.AssignedWeightedMaturity = &rounded
	}
	return r
}

// formatObjective renders delta with 4 places and thousands separators.
func formatObjective(v float64) string {
	s := utils.FormatFixed(v, 4)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var sb strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(ch)
	}
	return sign + sb.String() + "." + frac
}

// Package check implements the validate subcommand.
package check

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/common"
	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/store"
	"github.com/meenmo/hedgeassign/table"
	"github.com/meenmo/hedgeassign/validate"
)

func Run(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common.Flags
	flags.Register(fs)
	creditsPath := fs.String("credits", "", "Credits CSV (default <out>/labeled_credits_<experiment>.csv)")
	swapsPath := fs.String("swaps", "", "Swap targets CSV (default <out>/swaps_<experiment>.csv)")
	assignmentPath := fs.String("assignment", "", "Assignment CSV (default <out>/assignment_<experiment>.csv)")
	delta := fs.Float64("delta", 0, "Objective delta reported by the solver")
	solver := fs.String("solver", "", "Solver name for the summary")
	wallTime := fs.Duration("wall-time", 0, "Solver wall time for the summary")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if flags.Help {
		usage(stderr)
		return 0
	}

	cfg, err := flags.Load()
	if err != nil {
		return common.Fail(stdout, err)
	}

	paths := map[string]*string{"labeled_credits": creditsPath, "swaps": swapsPath, "assignment": assignmentPath}
	for name, p := range paths {
		if strings.TrimSpace(*p) != "" {
			continue
		}
		if *p, err = common.OutPath(cfg, name); err != nil {
			return common.Fail(stdout, err)
		}
	}

	credits, err := table.ReadFile(*creditsPath, table.ReadCredits)
	if err != nil {
		return common.Fail(stdout, err)
	}
	swaps, err := table.ReadFile(*swapsPath, table.ReadSwaps)
	if err != nil {
		return common.Fail(stdout, err)
	}
	a, err := table.ReadFile(*assignmentPath, table.ReadAssignment)
	if err != nil {
		return common.Fail(stdout, err)
	}

	opts := cfg.ValidateOptions()
	opts.Solver = *solver
	opts.WallTime = *wallTime
	report, err := Report(a, swaps, credits, *delta, opts)
	if err != nil {
		return common.Fail(stdout, err)
	}
	if err := common.Write(stdout, cfg.Export.Format, report); err != nil {
		return common.Fail(stdout, err)
	}
	if !report.Summary.OK() {
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hedgeassign validate [-config experiment.yaml] [-assignment a.csv] [-delta D] [-solver cbc] [-wall-time 12s]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Recompute per-swap principal, delta ratio and weighted maturity from the raw tables.")
}

// Report runs the validator and packs the result as the stored report document.
func Report(a hedge.Assignment, swaps []hedge.SwapTarget, credits []credit.Credit, delta float64, opts validate.Options) (store.Report, error) {
	reports, summary, err := validate.Validate(a, swaps, credits, delta, opts)
	if err != nil {
		return store.Report{}, err
	}
	return store.Report{Summary: summary, Swaps: reports}, nil
}

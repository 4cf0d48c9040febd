// Package run chains generate, aggregate, solve and validate in memory.
package run

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/aggregate"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/check"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/common"
	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/generate"
	"github.com/meenmo/hedgeassign/config"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/store"
	"github.com/meenmo/hedgeassign/table"
)

type Output struct {
	RunID          string             `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Generate       generate.Output    `json:"generate" yaml:"generate"`
	Aggregate      aggregate.Output   `json:"aggregate" yaml:"aggregate"`
	ReferenceDelta *float64           `json:"reference_delta,omitempty" yaml:"reference_delta,omitempty"`
	Solve          common.SolveOutput `json:"solve" yaml:"solve"`
	Report         *store.Report      `json:"report,omitempty" yaml:"report,omitempty"`
}

func Run(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common.Flags
	flags.Register(fs)
	bound := fs.Bool("bound", true, "Compute the LP-relaxation bound before solving")
	persist := fs.Bool("store", true, "Record the run when db.dsn is set")

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
	log := common.Logger(cfg, stderr)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var st *store.Store
	if *persist && cfg.DB.DSN != "" {
		db, err := store.Open(cfg.DB, nil)
		if err != nil {
			return common.Fail(stdout, err)
		}
		st = store.New(db)
		if err := st.Migrate(ctx); err != nil {
			return common.Fail(stdout, err)
		}
	}

	out, err := Pipeline(ctx, cfg, common.Solver(cfg, log), st, *bound, log)
	if err != nil {
		return common.Fail(stdout, err)
	}
	if err := common.Write(stdout, cfg.Export.Format, out); err != nil {
		return common.Fail(stdout, err)
	}
	if out.Report == nil || !out.Report.Summary.OK() {
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hedgeassign run [-config experiment.yaml] [-seed N] [-bound=false] [-store=false]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate, aggregate, solve and validate one experiment, writing every table")
	fmt.Fprintln(w, "under the output directory and recording the run when a database is configured.")
}

// Pipeline runs one experiment end to end. st may be nil.
func Pipeline(ctx context.Context, cfg config.Config, s mip.Solver, st *store.Store, withBound bool, log *zap.Logger) (Output, error) {
	var out Output

	credits, err := generate.Credits(cfg)
	if err != nil {
		return out, err
	}
	out.Generate = generate.Summarize(cfg, credits)
	if out.Generate.Path, err = common.OutPath(cfg, "credits"); err != nil {
		return out, err
	}
	if err := table.WriteFile(out.Generate.Path, credits, table.WriteCredits); err != nil {
		return out, err
	}

	swaps, labeled, attempts, err := common.Aggregate(cfg, credits, log)
	if err != nil {
		return out, err
	}
	out.Aggregate = aggregate.Summarize(swaps, labeled)
	out.Aggregate.Experiment = cfg.Experiment
	out.Aggregate.Attempts = attempts
	if out.Aggregate.LabeledPath, err = common.OutPath(cfg, "labeled_credits"); err != nil {
		return out, err
	}
	if err := table.WriteFile(out.Aggregate.LabeledPath, labeled, table.WriteLabeled); err != nil {
		return out, err
	}
	if out.Aggregate.SwapsPath, err = common.OutPath(cfg, "swaps"); err != nil {
		return out, err
	}
	if err := table.WriteFile(out.Aggregate.SwapsPath, swaps, table.WriteSwaps); err != nil {
		return out, err
	}

	all := hedge.Credits(labeled)
	m, err := mip.Build(all, swaps, cfg.BuildOptions())
	if err != nil {
		return out, err
	}

	// The aggregation's own labels are a candidate; rounding of swap maturities can
	// make them violate the maturity rows.
	truth, err := hedge.LabeledAssignment(labeled, swaps)
	if err != nil {
		return out, err
	}
	if ev := m.Evaluate(truth); ev.Feasible {
		out.ReferenceDelta = &ev.Delta
		log.Info("reference assignment feasible", zap.Float64("delta", ev.Delta))
	} else {
		log.Info("reference assignment infeasible", zap.Strings("violated", ev.Violated))
	}

	res, solved, err := common.SolveModel(ctx, cfg, s, m, withBound, log)
	if err != nil {
		return out, err
	}
	out.Solve = solved

	if res.OK() {
		opts := cfg.ValidateOptions()
		opts.Solver = res.Solver
		opts.WallTime = res.WallTime
		report, err := check.Report(res.Assignment, swaps, all, res.Delta, opts)
		if err != nil {
			return out, err
		}
		out.Report = &report
		log.Info("validated",
			zap.Bool("delta_ok", report.Summary.AllDeltaOK),
			zap.Bool("principal_ok", report.Summary.AllPrincipalOK),
			zap.Bool("maturity_ok", report.Summary.AllMaturityOK))
	}

	if st != nil {
		var rep store.Report
		if out.Report != nil {
			rep = *out.Report
		}
		run, err := store.NewRun(cfg.Experiment, cfg.Seed, len(all), len(swaps), res, rep.Summary, rep.Swaps, solved.RelaxedBound)
		if err != nil {
			return out, err
		}
		if err := st.SaveRun(ctx, run); err != nil {
			return out, err
		}
		out.RunID = run.ID
		log.Info("run recorded", zap.String("run_id", run.ID))
	}
	return out, nil
}

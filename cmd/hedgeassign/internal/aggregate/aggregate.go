package aggregate

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/common"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/table"
)

type SwapRow struct {
	ID        int     `json:"swap" yaml:"swap"`
	Principal float64 `json:"principal" yaml:"principal"`
	DeltaFV   float64 `json:"delta_fv" yaml:"delta_fv"`
	Maturity  float64 `json:"maturity" yaml:"maturity"`
}

type Output struct {
	Experiment  string    `json:"experiment" yaml:"experiment"`
	Attempts    int       `json:"attempts" yaml:"attempts"`
	Retained    int       `json:"retained" yaml:"retained"`
	Dropped     int       `json:"dropped" yaml:"dropped"`
	Swaps       []SwapRow `json:"swaps" yaml:"swaps"`
	LabeledPath string    `json:"labeled_path" yaml:"labeled_path"`
	SwapsPath   string    `json:"swaps_path" yaml:"swaps_path"`
}

func Run(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common.Flags
	flags.Register(fs)
	creditsPath := fs.String("credits", "", "Credits CSV (default <out>/credits_<experiment>.csv)")

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

	path := strings.TrimSpace(*creditsPath)
	if path == "" {
		if path, err = common.OutPath(cfg, "credits"); err != nil {
			return common.Fail(stdout, err)
		}
	}
	credits, err := table.ReadFile(path, table.ReadCredits)
	if err != nil {
		return common.Fail(stdout, err)
	}

	swaps, labeled, attempts, err := common.Aggregate(cfg, credits, log)
	if err != nil {
		return common.Fail(stdout, err)
	}

	out := Summarize(swaps, labeled)
	out.Experiment = cfg.Experiment
	out.Attempts = attempts
	if out.LabeledPath, err = common.OutPath(cfg, "labeled_credits"); err != nil {
		return common.Fail(stdout, err)
	}
	if err := table.WriteFile(out.LabeledPath, labeled, table.WriteLabeled); err != nil {
		return common.Fail(stdout, err)
	}
	if out.SwapsPath, err = common.OutPath(cfg, "swaps"); err != nil {
		return common.Fail(stdout, err)
	}
	if err := table.WriteFile(out.SwapsPath, swaps, table.WriteSwaps); err != nil {
		return common.Fail(stdout, err)
	}
	log.Info("scenario written", zap.Int("swaps", len(swaps)), zap.Int("attempts", attempts))

	if err := common.Write(stdout, cfg.Export.Format, out); err != nil {
		return common.Fail(stdout, err)
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hedgeassign aggregate [-config experiment.yaml] [-credits credits.csv]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Retain a share of the credits, spread them over swaps and write")
	fmt.Fprintln(w, "labeled_credits_<experiment>.csv and swaps_<experiment>.csv.")
}

func Summarize(swaps []hedge.SwapTarget, labeled []hedge.LabeledCredit) Output {
	var out Output
	for _, c := range labeled {
		if c.IsDropped() {
			out.Dropped++
		} else {
			out.Retained++
		}
	}
	for _, s := range swaps {
		out.Swaps = append(out.Swaps, SwapRow{ID: s.ID, Principal: s.Principal, DeltaFV: s.DeltaFV, Maturity: s.Maturity})
	}
	return out
}

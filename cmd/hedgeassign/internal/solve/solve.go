package solve

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/common"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/table"
)

func Run(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common.Flags
	flags.Register(fs)
	creditsPath := fs.String("credits", "", "Credits CSV (default <out>/labeled_credits_<experiment>.csv)")
	swapsPath := fs.String("swaps", "", "Swap targets CSV (default <out>/swaps_<experiment>.csv)")
	bound := fs.Bool("bound", true, "Compute the LP-relaxation bound before solving")

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

	cp, err := pathOr(*creditsPath, func() (string, error) { return common.OutPath(cfg, "labeled_credits") })
	if err != nil {
		return common.Fail(stdout, err)
	}
	sp, err := pathOr(*swapsPath, func() (string, error) { return common.OutPath(cfg, "swaps") })
	if err != nil {
		return common.Fail(stdout, err)
	}
	credits, err := table.ReadFile(cp, table.ReadCredits)
	if err != nil {
		return common.Fail(stdout, err)
	}
	swaps, err := table.ReadFile(sp, table.ReadSwaps)
	if err != nil {
		return common.Fail(stdout, err)
	}

	m, err := mip.Build(credits, swaps, cfg.BuildOptions())
	if err != nil {
		return common.Fail(stdout, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, out, err := common.SolveModel(ctx, cfg, common.Solver(cfg, log), m, *bound, log)
	if err != nil {
		return common.Fail(stdout, err)
	}
	if err := common.Write(stdout, cfg.Export.Format, out); err != nil {
		return common.Fail(stdout, err)
	}
	if !res.OK() {
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hedgeassign solve [-config experiment.yaml] [-credits labeled.csv] [-swaps swaps.csv] [-bound=false]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Build the assignment model, solve it with cbc and write assignment_<experiment>.csv.")
}

func pathOr(p string, def func() (string, error)) (string, error) {
	if p = strings.TrimSpace(p); p != "" {
		return p, nil
	}
	return def()
}

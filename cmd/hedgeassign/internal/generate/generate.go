package generate

import (
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/meenmo/hedgeassign/cmd/hedgeassign/internal/common"
	"github.com/meenmo/hedgeassign/config"
	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/table"
	"github.com/meenmo/hedgeassign/utils"
)

type Output struct {
	Experiment     string         `json:"experiment" yaml:"experiment"`
	Seed           uint64         `json:"seed" yaml:"seed"`
	Credits        int            `json:"credits" yaml:"credits"`
	ByType         map[string]int `json:"by_type" yaml:"by_type"`
	TotalPrincipal float64        `json:"total_principal" yaml:"total_principal"`
	TotalDeltaFV   float64        `json:"total_delta_fv" yaml:"total_delta_fv"`
	Path           string         `json:"path" yaml:"path"`
}

func Run(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var flags common.Flags
	flags.Register(fs)

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

	credits, err := Credits(cfg)
	if err != nil {
		return common.Fail(stdout, err)
	}
	path, err := common.OutPath(cfg, "credits")
	if err != nil {
		return common.Fail(stdout, err)
	}
	if err := table.WriteFile(path, credits, table.WriteCredits); err != nil {
		return common.Fail(stdout, err)
	}
	log.Info("credits written", zap.String("path", path), zap.Int("count", len(credits)))

	out := Summarize(cfg, credits)
	out.Path = path
	if err := common.Write(stdout, cfg.Export.Format, out); err != nil {
		return common.Fail(stdout, err)
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  hedgeassign generate [-config experiment.yaml] [-seed N] [-out DIR]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Generate a synthetic credit portfolio and write credits_<experiment>.csv.")
}

// Credits draws the configured portfolio from the generation seed.
func Credits(cfg config.Config) ([]credit.Credit, error) {
	g, err := credit.NewGenerator(cfg.GeneratorConfig())
	if err != nil {
		return nil, err
	}
	return g.Generate(common.GenerationRand(cfg.Seed)), nil
}

func Summarize(cfg config.Config, credits []credit.Credit) Output {
	out := Output{
		Experiment: cfg.Experiment,
		Seed:       cfg.Seed,
		Credits:    len(credits),
		ByType:     make(map[string]int),
	}
	for _, c := range credits {
		out.ByType[c.Type]++
		out.TotalPrincipal += c.Principal
		out.TotalDeltaFV += c.DeltaFV
	}
	out.TotalDeltaFV = utils.RoundHalfUp(out.TotalDeltaFV, 2)
	return out
}

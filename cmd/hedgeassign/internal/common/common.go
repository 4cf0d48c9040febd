// Package common holds the flag, config, logging and output plumbing shared by
// the hedgeassign subcommands.
package common

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/meenmo/hedgeassign/config"
	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/internal/logger"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/mip/cbc"
)

// Flags are accepted by every subcommand.
type Flags struct {
	ConfigPath string
	Experiment string
	Format     string
	OutDir     string
	Seed       int64
	Help       bool
}

// Register adds the shared flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "YAML experiment file (optional; defaults and HEDGE_* env otherwise)")
	fs.StringVar(&f.Experiment, "experiment", "", "Override experiment name")
	fs.StringVar(&f.Format, "format", "", "Report format: json or yaml")
	fs.StringVar(&f.OutDir, "out", "", "Override output directory")
	fs.Int64Var(&f.Seed, "seed", -1, "Override random seed")
	fs.BoolVar(&f.Help, "h", false, "Show help")
	fs.BoolVar(&f.Help, "help", false, "Show help")
}

// Load reads the config and applies flag overrides.
func (f *Flags) Load() (config.Config, error) {
	cfg, err := config.Load(strings.TrimSpace(f.ConfigPath))
	if err != nil {
		return config.Config{}, err
	}
	if f.Experiment != "" {
		cfg.Experiment = f.Experiment
	}
	if f.Format != "" {
		cfg.Export.Format = strings.ToLower(f.Format)
	}
	if f.OutDir != "" {
		cfg.Export.OutDir = f.OutDir
	}
	if f.Seed >= 0 {
		cfg.Seed = uint64(f.Seed)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Logger builds the configured logger on stderr, falling back to a no-op one.
func Logger(cfg config.Config, stderr io.Writer) *zap.Logger {
	log, err := logger.New(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "logger: %v\n", err)
		return zap.NewNop()
	}
	return log.With(zap.String("experiment", cfg.Experiment))
}

// Solver returns the configured backend.
func Solver(cfg config.Config, log *zap.Logger) mip.Solver {
	c := cbc.Config{Path: cfg.Solver.Path, KeepFiles: cfg.Solver.KeepFiles}
	if cfg.Solver.KeepFiles {
		c.Dir = filepath.Join(cfg.Export.OutDir, "cbc")
	}
	return cbc.New(c, log)
}

// GenerationRand seeds credit generation.
func GenerationRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

// AggregationRand seeds the attempt-th aggregation draw, starting at 0.
func AggregationRand(seed uint64, attempt int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(attempt)+1))
}

// Aggregate redraws until every swap receives a credit or MaxAttempts is spent.
func Aggregate(cfg config.Config, credits []credit.Credit, log *zap.Logger) ([]hedge.SwapTarget, []hedge.LabeledCredit, int, error) {
	var lastErr error
	for attempt := 0; attempt < cfg.Swaps.MaxAttempts; attempt++ {
		swaps, labeled, err := hedge.Aggregate(AggregationRand(cfg.Seed, attempt), credits, cfg.AggregateOptions())
		if err == nil {
			return swaps, labeled, attempt + 1, nil
		}
		var inf *hedge.InfeasibleScenarioError
		if !errors.As(err, &inf) {
			return nil, nil, attempt + 1, err
		}
		log.Debug("aggregation left swaps empty, redrawing", zap.Int("attempt", attempt+1), zap.Ints("empty_swaps", inf.EmptySwaps))
		lastErr = err
	}
	return nil, nil, cfg.Swaps.MaxAttempts, fmt.Errorf("Aggregate: %d attempts: %w", cfg.Swaps.MaxAttempts, lastErr)
}

// OutPath returns dir/<name>_<experiment>.csv, creating dir.
func OutPath(cfg config.Config, name string) (string, error) {
	if err := os.MkdirAll(cfg.Export.OutDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(cfg.Export.OutDir, fmt.Sprintf("%s_%s.csv", name, cfg.Experiment)), nil
}

// Write renders v as indented JSON or YAML.
func Write(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
}

// ErrorOutput is written to stdout when a command fails.
type ErrorOutput struct {
	Error string `json:"error" yaml:"error"`
}

// Fail writes err as a JSON error object and returns exit code 1.
func Fail(stdout io.Writer, err error) int {
	b, _ := json.Marshal(ErrorOutput{Error: err.Error()})
	fmt.Fprintln(stdout, string(b))
	return 1
}

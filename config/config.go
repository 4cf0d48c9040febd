// Package config loads experiment settings from YAML, .env and HEDGE_* variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/meenmo/hedgeassign/credit"
	"github.com/meenmo/hedgeassign/hedge"
	"github.com/meenmo/hedgeassign/mip"
	"github.com/meenmo/hedgeassign/validate"
)

// EnvPrefix is prepended to every environment override, e.g. HEDGE_SOLVER_TIME_LIMIT.
const EnvPrefix = "HEDGE"

type Config struct {
	Experiment string           `mapstructure:"experiment" validate:"required"`
	Seed       uint64           `mapstructure:"seed" validate:"lte=9223372036854775807"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"`
	Swaps      SwapsConfig      `mapstructure:"swaps"`
	Model      ModelConfig      `mapstructure:"model"`
	Solver     SolverConfig     `mapstructure:"solver"`
	Validation ValidationConfig `mapstructure:"validation"`
	Export     ExportConfig     `mapstructure:"export"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
}

type PortfolioConfig struct {
	NumCredits int                `mapstructure:"num_credits" validate:"gte=0"`
	Rates      RatesConfig        `mapstructure:"rates"`
	Types      []CreditTypeConfig `mapstructure:"types" validate:"required,min=1,dive"`
}

// RatesConfig holds the benchmark rate before (T0) and after (T1) the shift.
type RatesConfig struct {
	T0 float64 `mapstructure:"t0"`
	T1 float64 `mapstructure:"t1"`
}

type CreditTypeConfig struct {
	Name      string     `mapstructure:"name" validate:"required"`
	Principal IntRange   `mapstructure:"principal"`
	Maturity  IntRange   `mapstructure:"maturity"`
	Spread    FloatRange `mapstructure:"spread"`
	Weight    float64    `mapstructure:"weight" validate:"gte=0,lte=1"`
}

// IntRange is half-open: [Min, Max).
type IntRange struct {
	Min int `mapstructure:"min" validate:"gte=1"`
	Max int `mapstructure:"max" validate:"gtfield=Min"`
}

type FloatRange struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max" validate:"gtefield=Min"`
}

type SwapsConfig struct {
	Count          int     `mapstructure:"count" validate:"gte=1"`
	RetainFraction float64 `mapstructure:"retain_fraction" validate:"gt=0,lte=1"`
	ScaleFactor    float64 `mapstructure:"scale_factor"`
	// MaxAttempts bounds how many aggregations are drawn before giving up on empty swaps.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`
}

type ModelConfig struct {
	Precision int32 `mapstructure:"precision" validate:"gte=0,lte=12"`
}

type SolverConfig struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=cbc"`
	Path      string        `mapstructure:"path"`
	TimeLimit time.Duration `mapstructure:"time_limit" validate:"gte=0"`
	Workers   int           `mapstructure:"workers" validate:"gte=0"`
	MIPGap    float64       `mapstructure:"mip_gap" validate:"gte=0,lt=1"`
	KeepFiles bool          `mapstructure:"keep_files"`
}

type ValidationConfig struct {
	LowerBand     float64 `mapstructure:"lower_band" validate:"gte=0"`
	UpperBand     float64 `mapstructure:"upper_band" validate:"gtefield=LowerBand"`
	ZeroTolerance float64 `mapstructure:"zero_tolerance" validate:"gte=0"`
}

type ExportConfig struct {
	// LPDir receives output_model_<experiment>.lp; empty disables the export.
	LPDir  string `mapstructure:"lp_dir"`
	OutDir string `mapstructure:"out_dir" validate:"required"`
	Format string `mapstructure:"format" validate:"oneof=json yaml"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding" validate:"oneof=json console"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// DBConfig enables run history when DSN is set.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Timezone        string        `mapstructure:"timezone"`
}

// DefaultConfig is a small three-type scenario that cbc solves in seconds.
var DefaultConfig = Config{
	Experiment: "default",
	Seed:       42,
	Portfolio: PortfolioConfig{
		NumCredits: 100,
		Rates:      RatesConfig{T0: 0.03, T1: 0.035},
		Types: []CreditTypeConfig{
			{Name: "Consumer", Principal: IntRange{1000, 20000}, Maturity: IntRange{12, 60}, Spread: FloatRange{0.04, 0.08}, Weight: 0.5},
			{Name: "Auto", Principal: IntRange{5000, 40000}, Maturity: IntRange{24, 84}, Spread: FloatRange{0.02, 0.05}, Weight: 0.3},
			{Name: "Mortgage", Principal: IntRange{100000, 500000}, Maturity: IntRange{120, 360}, Spread: FloatRange{0.01, 0.03}, Weight: 0.2},
		},
	},
	Swaps: SwapsConfig{
		Count:          5,
		RetainFraction: hedge.DefaultAggregateOptions.RetainFraction,
		ScaleFactor:    hedge.DefaultAggregateOptions.ScaleFactor,
		MaxAttempts:    10,
	},
	Model: ModelConfig{Precision: mip.DefaultPrecision},
	Solver: SolverConfig{
		Backend:   "cbc",
		Path:      "cbc",
		TimeLimit: 5 * time.Minute,
		MIPGap:    0.01,
	},
	Validation: ValidationConfig{LowerBand: 0.85, UpperBand: 1.15, ZeroTolerance: 1e-8},
	Export:     ExportConfig{OutDir: "output", Format: "json"},
	Log:        LogConfig{Level: "info", Encoding: "console", Development: true},
	DB:         DBConfig{MaxOpenConns: 5, MaxIdleConns: 2, ConnMaxLifetime: 30 * time.Minute, Timezone: "UTC"},
}

// Default returns a copy of DefaultConfig.
func Default() Config {
	c := DefaultConfig
	c.Portfolio.Types = append([]CreditTypeConfig(nil), DefaultConfig.Portfolio.Types...)
	return c
}

// Load reads path (YAML) over the defaults, applies .env and HEDGE_* overrides and
// validates the result. An empty path uses defaults and the environment only.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("Load: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("experiment", d.Experiment)
	v.SetDefault("seed", d.Seed)

	v.SetDefault("portfolio.num_credits", d.Portfolio.NumCredits)
	v.SetDefault("portfolio.rates.t0", d.Portfolio.Rates.T0)
	v.SetDefault("portfolio.rates.t1", d.Portfolio.Rates.T1)
	types := make([]map[string]any, 0, len(d.Portfolio.Types))
	for _, t := range d.Portfolio.Types {
		types = append(types, map[string]any{
			"name":      t.Name,
			"principal": map[string]any{"min": t.Principal.Min, "max": t.Principal.Max},
			"maturity":  map[string]any{"min": t.Maturity.Min, "max": t.Maturity.Max},
			"spread":    map[string]any{"min": t.Spread.Min, "max": t.Spread.Max},
			"weight":    t.Weight,
		})
	}
	v.SetDefault("portfolio.types", types)

	v.SetDefault("swaps.count", d.Swaps.Count)
	v.SetDefault("swaps.retain_fraction", d.Swaps.RetainFraction)
	v.SetDefault("swaps.scale_factor", d.Swaps.ScaleFactor)
	v.SetDefault("swaps.max_attempts", d.Swaps.MaxAttempts)

	v.SetDefault("model.precision", d.Model.Precision)

	v.SetDefault("solver.backend", d.Solver.Backend)
	v.SetDefault("solver.path", d.Solver.Path)
	v.SetDefault("solver.time_limit", d.Solver.TimeLimit.String())
	v.SetDefault("solver.workers", d.Solver.Workers)
	v.SetDefault("solver.mip_gap", d.Solver.MIPGap)
	v.SetDefault("solver.keep_files", d.Solver.KeepFiles)

	v.SetDefault("validation.lower_band", d.Validation.LowerBand)
	v.SetDefault("validation.upper_band", d.Validation.UpperBand)
	v.SetDefault("validation.zero_tolerance", d.Validation.ZeroTolerance)

	v.SetDefault("export.lp_dir", d.Export.LPDir)
	v.SetDefault("export.out_dir", d.Export.OutDir)
	v.SetDefault("export.format", d.Export.Format)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.sampling", d.Log.Sampling)
	v.SetDefault("log.disable_caller", d.Log.DisableCaller)
	v.SetDefault("log.disable_stacktrace", d.Log.DisableStacktrace)

	v.SetDefault("db.dsn", d.DB.DSN)
	v.SetDefault("db.max_open_conns", d.DB.MaxOpenConns)
	v.SetDefault("db.max_idle_conns", d.DB.MaxIdleConns)
	v.SetDefault("db.conn_max_lifetime", d.DB.ConnMaxLifetime.String())
	v.SetDefault("db.timezone", d.DB.Timezone)
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, then builds the generator so type weights
// and ranges get the same checks the generator applies.
func (c Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	if _, err := credit.NewGenerator(c.GeneratorConfig()); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}

// GeneratorConfig maps the portfolio section onto credit.GeneratorConfig.
func (c Config) GeneratorConfig() credit.GeneratorConfig {
	types := make([]credit.CreditTypeSpec, 0, len(c.Portfolio.Types))
	for _, t := range c.Portfolio.Types {
		types = append(types, credit.CreditTypeSpec{
			Name:      t.Name,
			Principal: credit.IntRange{Min: t.Principal.Min, Max: t.Principal.Max},
			Maturity:  credit.IntRange{Min: t.Maturity.Min, Max: t.Maturity.Max},
			Spread:    credit.FloatRange{Min: t.Spread.Min, Max: t.Spread.Max},
			Weight:    t.Weight,
		})
	}
	return credit.GeneratorConfig{
		Types:      types,
		NumCredits: c.Portfolio.NumCredits,
		Rates:      credit.RatePath{T0: c.Portfolio.Rates.T0, T1: c.Portfolio.Rates.T1},
	}
}

func (c Config) AggregateOptions() hedge.AggregateOptions {
	return hedge.AggregateOptions{
		NumSwaps:       c.Swaps.Count,
		RetainFraction: c.Swaps.RetainFraction,
		ScaleFactor:    c.Swaps.ScaleFactor,
	}
}

func (c Config) BuildOptions() mip.BuildOptions {
	return mip.BuildOptions{Name: mip.DefaultBuildOptions.Name, Precision: c.Model.Precision}
}

func (c Config) SolveOptions() mip.Options {
	return mip.Options{
		TimeLimit:   c.Solver.TimeLimit,
		Workers:     c.Solver.Workers,
		RelativeGap: c.Solver.MIPGap,
	}
}

// ValidateOptions maps the validation section; the summary labels are left to the caller.
func (c Config) ValidateOptions() validate.Options {
	return validate.Options{
		LowerBand:      c.Validation.LowerBand,
		UpperBand:      c.Validation.UpperBand,
		ZeroTolerance:  c.Validation.ZeroTolerance,
		ExperimentName: c.Experiment,
	}
}

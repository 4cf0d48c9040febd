package credit

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// GeneratorConfig defines a synthetic portfolio.
type GeneratorConfig struct {
	Types      []CreditTypeSpec
	NumCredits int
	Rates      RatePath
}

// Generator produces synthetic credit portfolios from a validated configuration.
type Generator struct {
	types      []CreditTypeSpec
	numCredits int
	rates      RatePath
	sampler    *Sampler
}

// NewGenerator validates cfg and returns a generator.
//
// It fails with a *ConfigurationError when a range is empty or inverted, when
// weights are negative or do not sum to 1, or when NumCredits is negative.
func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	var reasons []string
	if len(cfg.Types) == 0 {
		reasons = append(reasons, "no credit types")
	}
	if cfg.NumCredits < 0 {
		reasons = append(reasons, fmt.Sprintf("num credits %d is negative", cfg.NumCredits))
	}
	if !finite(cfg.Rates.T0) || !finite(cfg.Rates.T1) {
		reasons = append(reasons, "rates must be finite")
	}

	weights := make([]float64, len(cfg.Types))
	for i, t := range cfg.Types {
		weights[i] = t.Weight
		reasons = append(reasons, validateType(t)...)
	}

	var sampler *Sampler
	if len(weights) > 0 {
		var err error
		sampler, err = NewSampler(weights)
		if err != nil {
			reasons = append(reasons, err.(*ConfigurationError).Reasons...)
		}
	}
	if len(reasons) > 0 {
		return nil, &ConfigurationError{Reasons: reasons}
	}

	types := make([]CreditTypeSpec, len(cfg.Types))
	copy(types, cfg.Types)
	return &Generator{
		types:      types,
		numCredits: cfg.NumCredits,
		rates:      cfg.Rates,
		sampler:    sampler,
	}, nil
}

// NewGeneratorFromArrays builds a generator from parallel per-type arrays.
//
// All arrays must have the same length as names.
func NewGeneratorFromArrays(
	names []string,
	principals []IntRange,
	maturities []IntRange,
	weights []float64,
	spreads []FloatRange,
	numCredits int,
	rates RatePath,
) (*Generator, error) {
	n := len(names)
	var reasons []string
	if len(principals) != n {
		reasons = append(reasons, fmt.Sprintf("%d principal ranges for %d types", len(principals), n))
	}
	if len(maturities) != n {
		reasons = append(reasons, fmt.Sprintf("%d maturity ranges for %d types", len(maturities), n))
	}
	if len(weights) != n {
		reasons = append(reasons, fmt.Sprintf("%d weights for %d types", len(weights), n))
	}
	if len(spreads) != n {
		reasons = append(reasons, fmt.Sprintf("%d spread ranges for %d types", len(spreads), n))
	}
	if len(reasons) > 0 {
		return nil, &ConfigurationError{Reasons: reasons}
	}

	types := make([]CreditTypeSpec, n)
	for i := range names {
		types[i] = CreditTypeSpec{
			Name:      names[i],
			Principal: principals[i],
			Maturity:  maturities[i],
			Spread:    spreads[i],
			Weight:    weights[i],
		}
	}
	return NewGenerator(GeneratorConfig{Types: types, NumCredits: numCredits, Rates: rates})
}

// Types returns a copy of the configured credit types.
func (g *Generator) Types() []CreditTypeSpec {
	out := make([]CreditTypeSpec, len(g.types))
	copy(out, g.types)
	return out
}

// Generate draws NumCredits independent credits from rng.
//
// For each credit the draw order is type, principal, maturity, spread, so a given
// seed reproduces the same portfolio. IDs run from 1 in generation order.
func (g *Generator) Generate(rng *rand.Rand) []Credit {
	draw := g.sampler.Draws(rng)

	credits := make([]Credit, 0, g.numCredits)
	for i := 0; i < g.numCredits; i++ {
		t := g.types[draw()]

		principal := float64(t.Principal.Min + rng.IntN(t.Principal.Max-t.Principal.Min))
		maturity := t.Maturity.Min + rng.IntN(t.Maturity.Max-t.Maturity.Min)
		spread := t.Spread.Min + rng.Float64()*(t.Spread.Max-t.Spread.Min)

		credits = append(credits, Credit{
			ID:           i + 1,
			Type:         t.Name,
			Principal:    principal,
			Maturity:     maturity,
			CreditSpread: spread,
			DeltaFV:      FairValueDelta(principal, maturity, spread, g.rates),
		})
	}
	return credits
}

func validateType(t CreditTypeSpec) []string {
	var reasons []string
	if t.Principal.Min <= 0 || t.Principal.Max <= t.Principal.Min {
		reasons = append(reasons, fmt.Sprintf("type %q: principal range [%d, %d) must be positive and non-empty",
			t.Name, t.Principal.Min, t.Principal.Max))
	}
	if t.Maturity.Min <= 0 || t.Maturity.Max <= t.Maturity.Min {
		reasons = append(reasons, fmt.Sprintf("type %q: maturity range [%d, %d) must be positive and non-empty",
			t.Name, t.Maturity.Min, t.Maturity.Max))
	}
	if !finite(t.Spread.Min) || !finite(t.Spread.Max) || t.Spread.Max < t.Spread.Min {
		reasons = append(reasons, fmt.Sprintf("type %q: spread range [%v, %v) is invalid",
			t.Name, t.Spread.Min, t.Spread.Max))
	}
	return reasons
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package credit_test

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/hedgeassign/credit"
)

var testRates = credit.RatePath{T0: 0.04, T1: 0.045}

func TestFairValueDelta_SinglePeriodIsZero(t *testing.T) {
	for _, principal := range []float64{1, 1000, 4999, 1e7} {
		for _, spread := range []float64{0, 0.01, 0.03} {
			got := credit.FairValueDelta(principal, 1, spread, testRates)
			assert.Zero(t, got, "principal=%v spread=%v", principal, spread)
		}
	}
}

func TestFairValueDelta_NoShiftIsZero(t *testing.T) {
	for _, maturity := range []int{2, 12, 36, 360} {
		for _, rate := range []float64{0, 0.02, 0.045} {
			got := credit.FairValueDelta(2500, maturity, 0.015, credit.RatePath{T0: rate, T1: rate})
			assert.Zero(t, got, "maturity=%d rate=%v", maturity, rate)
		}
	}
}

func TestFairValueDelta_ZeroRates(t *testing.T) {
	// Zero period rate on both dates: straight-line payment, no discounting, no delta.
	got := credit.FairValueDelta(1200, 12, 0, credit.RatePath{T0: 0, T1: 0})
	assert.Zero(t, got)
}

func TestFairValueDelta_HandComputed(t *testing.T) {
	// principal 1000, 2 installments, rate0 = 0.06, rate1 = 0.07 (spread 0.02).
	// payment = 1000*0.005/(1-1.005^-2) = 503.7531172...
	// fv0 = payment/1.06, fv1 = payment/1.07, delta = fv1 - fv0 = -4.44
	got := credit.FairValueDelta(1000, 2, 0.02, credit.RatePath{T0: 0.04, T1: 0.05})
	assert.Equal(t, -4.44, got)
}

func TestFairValueDelta_RateRiseLowersValue(t *testing.T) {
	got := credit.FairValueDelta(3000, 24, 0.02, testRates)
	assert.Less(t, got, 0.0)

	down := credit.FairValueDelta(3000, 24, 0.02, credit.RatePath{T0: 0.045, T1: 0.04})
	assert.Greater(t, down, 0.0)
}

func TestFairValueDelta_Deterministic(t *testing.T) {
	a := credit.FairValueDelta(4321, 29, 0.0173, testRates)
	b := credit.FairValueDelta(4321, 29, 0.0173, testRates)
	assert.Equal(t, a, b)
}

func TestNewSampler_Validation(t *testing.T) {
	tests := []struct {
		name    string
		weights []float64
		wantErr bool
	}{
		{name: "valid", weights: []float64{0.2, 0.3, 0.5}},
		{name: "single", weights: []float64{1}},
		{name: "within tolerance", weights: []float64{0.5, 0.5 + 5e-9}},
		{name: "sums to 0.99", weights: []float64{0.49, 0.5}, wantErr: true},
		{name: "negative", weights: []float64{1.5, -0.5}, wantErr: true},
		{name: "empty", weights: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := credit.NewSampler(tt.weights)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, credit.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.weights), s.Len())
		})
	}
}

func TestSampler_Frequencies(t *testing.T) {
	s, err := credit.NewSampler([]float64{0.1, 0.0, 0.9})
	require.NoError(t, err)

	draw := s.Draws(rand.NewPCG(7, 7))
	counts := make([]int, 3)
	const n = 20000
	for i := 0; i < n; i++ {
		counts[draw()]++
	}
	assert.Zero(t, counts[1])
	assert.InDelta(t, 0.1, float64(counts[0])/n, 0.02)
	assert.InDelta(t, 0.9, float64(counts[2])/n, 0.02)
}

func scenarioConfig(n int) credit.GeneratorConfig {
	return credit.GeneratorConfig{
		Types: []credit.CreditTypeSpec{{
			Name:      "Consumer",
			Principal: credit.IntRange{Min: 1000, Max: 5000},
			Maturity:  credit.IntRange{Min: 12, Max: 36},
			Spread:    credit.FloatRange{Min: 0.01, Max: 0.03},
			Weight:    1,
		}},
		NumCredits: n,
		Rates:      testRates,
	}
}

func TestGenerator_Generate(t *testing.T) {
	g, err := credit.NewGenerator(scenarioConfig(50))
	require.NoError(t, err)

	credits := g.Generate(rand.New(rand.NewPCG(42, 42)))
	require.Len(t, credits, 50)

	for i, c := range credits {
		assert.Equal(t, i+1, c.ID)
		assert.Equal(t, "Consumer", c.Type)
		assert.GreaterOrEqual(t, c.Principal, 1000.0)
		assert.Less(t, c.Principal, 5000.0)
		assert.GreaterOrEqual(t, c.Maturity, 12)
		assert.Less(t, c.Maturity, 36)
		assert.GreaterOrEqual(t, c.CreditSpread, 0.01)
		assert.Less(t, c.CreditSpread, 0.03)
		assert.Equal(t, credit.FairValueDelta(c.Principal, c.Maturity, c.CreditSpread, testRates), c.DeltaFV)
	}
}

func TestGenerator_SameSeedSamePortfolio(t *testing.T) {
	cfg := credit.GeneratorConfig{
		Types: []credit.CreditTypeSpec{
			{Name: "Mortgage", Principal: credit.IntRange{Min: 50000, Max: 200000}, Maturity: credit.IntRange{Min: 120, Max: 360}, Spread: credit.FloatRange{Min: 0.005, Max: 0.015}, Weight: 0.3},
			{Name: "Auto", Principal: credit.IntRange{Min: 5000, Max: 30000}, Maturity: credit.IntRange{Min: 24, Max: 72}, Spread: credit.FloatRange{Min: 0.02, Max: 0.04}, Weight: 0.7},
		},
		NumCredits: 200,
		Rates:      testRates,
	}
	g, err := credit.NewGenerator(cfg)
	require.NoError(t, err)

	a := g.Generate(rand.New(rand.NewPCG(42, 42)))
	b := g.Generate(rand.New(rand.NewPCG(42, 42)))
	assert.Equal(t, a, b)

	c := g.Generate(rand.New(rand.NewPCG(43, 43)))
	assert.NotEqual(t, a, c)

	var mortgages int
	for _, cr := range a {
		if cr.Type == "Mortgage" {
			mortgages++
		}
	}
	assert.Greater(t, mortgages, 0)
	assert.Less(t, mortgages, 200)
}

func TestNewGenerator_ConfigurationErrors(t *testing.T) {
	base := scenarioConfig(10)

	tests := []struct {
		name   string
		mutate func(*credit.GeneratorConfig)
	}{
		{name: "weights sum to 0.99", mutate: func(c *credit.GeneratorConfig) { c.Types[0].Weight = 0.99 }},
		{name: "no types", mutate: func(c *credit.GeneratorConfig) { c.Types = nil }},
		{name: "negative count", mutate: func(c *credit.GeneratorConfig) { c.NumCredits = -1 }},
		{name: "empty principal range", mutate: func(c *credit.GeneratorConfig) { c.Types[0].Principal = credit.IntRange{Min: 10, Max: 10} }},
		{name: "zero maturity", mutate: func(c *credit.GeneratorConfig) { c.Types[0].Maturity = credit.IntRange{Min: 0, Max: 10} }},
		{name: "inverted spread", mutate: func(c *credit.GeneratorConfig) { c.Types[0].Spread = credit.FloatRange{Min: 0.03, Max: 0.01} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Types = append([]credit.CreditTypeSpec(nil), base.Types...)
			tt.mutate(&cfg)

			_, err := credit.NewGenerator(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, credit.ErrConfiguration))

			var ce *credit.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.NotEmpty(t, ce.Reasons)
		})
	}
}

func TestNewGeneratorFromArrays_LengthMismatch(t *testing.T) {
	_, err := credit.NewGeneratorFromArrays(
		[]string{"A", "B"},
		[]credit.IntRange{{Min: 1000, Max: 5000}, {Min: 1000, Max: 5000}},
		[]credit.IntRange{{Min: 12, Max: 36}},
		[]float64{0.5, 0.5},
		[]credit.FloatRange{{Min: 0.01, Max: 0.03}, {Min: 0.01, Max: 0.03}},
		10,
		testRates,
	)
	require.ErrorIs(t, err, credit.ErrConfiguration)
	assert.Contains(t, err.Error(), "1 maturity ranges for 2 types")

	g, err := credit.NewGeneratorFromArrays(
		[]string{"A", "B"},
		[]credit.IntRange{{Min: 1000, Max: 5000}, {Min: 1000, Max: 5000}},
		[]credit.IntRange{{Min: 12, Max: 36}, {Min: 6, Max: 12}},
		[]float64{0.5, 0.5},
		[]credit.FloatRange{{Min: 0.01, Max: 0.03}, {Min: 0.01, Max: 0.03}},
		10,
		testRates,
	)
	require.NoError(t, err)
	assert.Len(t, g.Types(), 2)
}

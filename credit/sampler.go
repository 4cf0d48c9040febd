package credit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// WeightTolerance is the allowed distance of the weight sum from 1.
const WeightTolerance = 1e-8

// Sampler draws category indices from a fixed discrete distribution.
//
// Weights are validated once at construction; index i is drawn with probability weights[i].
type Sampler struct {
	weights []float64
}

// NewSampler validates weights and returns a sampler over their indices.
func NewSampler(weights []float64) (*Sampler, error) {
	var reasons []string
	if len(weights) == 0 {
		reasons = append(reasons, "no weights")
	}
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			reasons = append(reasons, fmt.Sprintf("weight %d is %v", i, w))
			continue
		}
		sum += w
	}
	if len(weights) > 0 && math.Abs(sum-1) > WeightTolerance {
		reasons = append(reasons, fmt.Sprintf("weights sum to %v, want 1", sum))
	}
	if len(reasons) > 0 {
		return nil, &ConfigurationError{Reasons: reasons}
	}

	w := make([]float64, len(weights))
	copy(w, weights)
	return &Sampler{weights: w}, nil
}

// Len returns the number of categories.
func (s *Sampler) Len() int {
	return len(s.weights)
}

// Draws binds the distribution to src and returns a draw function.
func (s *Sampler) Draws(src rand.Source) func() int {
	cat := distuv.NewCategorical(s.weights, src)
	return func() int {
		return int(cat.Rand())
	}
}

package sim

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// biasWeight converts the elapsed time since the last common ancestor into a
// sampling weight. Candidates are always distinct from the acting lineage or
// branch, so elapsed is strictly positive for inverse mode.
func (c Config) biasWeight(elapsed float64) float64 {
	switch c.Bias {
	case BiasInverse:
		return math.Min(1/(c.BiasStrength*elapsed), math.MaxFloat64)
	case BiasExponential:
		return math.Exp(-c.BiasStrength * elapsed)
	default:
		return 1
	}
}

// chooseWeighted samples one index proportional to its weight. Exponential
// weights underflow to zero at large strengths, which a categorical cannot
// normalize; once every candidate is indistinguishable the choice is uniform.
func chooseWeighted(rng *rand.Rand, weights []float64) int {
	if len(weights) == 1 {
		return 0
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsInf(sum, 1) || math.IsNaN(sum) {
		return rng.Intn(len(weights))
	}
	return int(distuv.NewCategorical(weights, rng).Rand())
}

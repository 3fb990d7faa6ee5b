// Package rates rewrites the branch lengths of a finished gene tree into
// substitution-rate-weighted lengths: an autocorrelated lognormal rate drift
// over the species tree, plus duplication-induced asymmetry between the
// children of each duplication node.
package rates

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"paralogos/internal/dist"
	"paralogos/internal/model"
	"paralogos/internal/species"
	"paralogos/internal/tree"
)

var (
	ErrBaseRate   = errors.New("base rate must be positive")
	ErrVariance   = errors.New("autocorrelation variance must be non-negative")
	ErrCSNWeights = errors.New("CSN weights must be non-negative with a positive sum")
)

// Config controls the heterogeneity model. The zero value means base rate 1,
// no autocorrelated drift, equal CSN weights, a Uniform(0.5, 0.9)
// subfunctionalization factor, and Exponential(1) neofunctionalization
// excess.
type Config struct {
	BaseRate         float64
	AutocorrVariance float64

	// CSNWeights weight the conserved / subfunctionalized /
	// neofunctionalized outcomes for each duplication child.
	CSNWeights [3]float64

	// SubfuncFactor is drawn for a subfunctionalized child.
	SubfuncFactor dist.Distribution
	// NeofuncExcess x gives a neofunctionalized child the factor 1 + x.
	NeofuncExcess dist.Distribution
}

func (c Config) withDefaults() Config {
	if c.BaseRate == 0 {
		c.BaseRate = 1
	}
	if c.CSNWeights == [3]float64{} {
		c.CSNWeights = [3]float64{1, 1, 1}
	}
	if c.SubfuncFactor.Kind() == "" {
		c.SubfuncFactor = dist.MustNew(dist.Uniform, 0.5, 0.9)
	}
	if c.NeofuncExcess.Kind() == "" {
		c.NeofuncExcess = dist.MustNew(dist.Exponential, 1)
	}
	return c
}

// Validate reports whether the config, after defaulting, is usable.
func (c Config) Validate() error {
	return c.withDefaults().validate()
}

func (c Config) validate() error {
	if !(c.BaseRate > 0) || math.IsInf(c.BaseRate, 0) {
		return fmt.Errorf("%w: got %g", ErrBaseRate, c.BaseRate)
	}
	if c.AutocorrVariance < 0 || math.IsNaN(c.AutocorrVariance) {
		return fmt.Errorf("%w: got %g", ErrVariance, c.AutocorrVariance)
	}
	var sum float64
	for _, w := range c.CSNWeights {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: got %v", ErrCSNWeights, c.CSNWeights)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("%w: got %v", ErrCSNWeights, c.CSNWeights)
	}
	return nil
}

// AutocorrelationFactors assigns every species node a rate factor by
// top-down lognormal propagation from the root (factor 1). Each child's
// factor is its parent's times a mean-one lognormal draw whose log-variance
// is variance times the edge length. With variance 0 every factor is
// exactly 1, without consuming randomness.
func AutocorrelationFactors(sp *species.View, variance float64, rng *rand.Rand) ([]float64, error) {
	if variance < 0 || math.IsNaN(variance) {
		return nil, fmt.Errorf("%w: got %g", ErrVariance, variance)
	}
	st := sp.Tree()
	factors := make([]float64, st.Len())
	for _, v := range st.Preorder() {
		n := st.Node(v)
		if n.Parent < 0 {
			factors[v] = 1
			continue
		}
		parent := factors[n.Parent]
		s2 := variance * n.Dist
		if s2 == 0 {
			factors[v] = parent
			continue
		}
		sigma := math.Sqrt(s2)
		factors[v] = parent * distuv.LogNormal{Mu: -s2 / 2, Sigma: sigma, Src: rng}.Rand()
	}
	return factors, nil
}

// Assign returns a copy of the gene tree with every edge's dist multiplied
// by its rate factor; the input tree is never modified. Species-branch
// factors are computed from the configured autocorrelation variance.
func Assign(g *tree.Tree, sp *species.View, cfg Config, rng *rand.Rand) (*tree.Tree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	factors, err := AutocorrelationFactors(sp, cfg.AutocorrVariance, rng)
	if err != nil {
		return nil, err
	}
	return AssignWithFactors(g, factors, cfg, rng)
}

// AssignWithFactors is Assign with precomputed per-species-node factors.
func AssignWithFactors(g *tree.Tree, factors []float64, cfg Config, rng *rand.Rand) (*tree.Tree, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := g.Clone()
	if out.Root < 0 {
		return out, nil
	}
	mult := make([]float64, out.Len())
	mult[out.Root] = 1
	for _, v := range out.Preorder() {
		n := out.Node(v)
		if n.Parent < 0 {
			continue
		}
		m := mult[n.Parent]
		if out.Node(n.Parent).Kind == model.EventDuplication {
			m *= cfg.csnFactor(rng)
		}
		mult[v] = m
		if n.Rec.Bottom < 0 || n.Rec.Bottom >= len(factors) {
			return nil, fmt.Errorf("reconciliation %v outside species tree", n.Rec)
		}
		n.Dist *= cfg.BaseRate * factors[n.Rec.Bottom] * m
	}
	return out, nil
}

// csnFactor classifies one duplication child as conserved (factor 1),
// subfunctionalized, or neofunctionalized (1 + excess).
func (c Config) csnFactor(rng *rand.Rand) float64 {
	w := []float64{c.CSNWeights[0], c.CSNWeights[1], c.CSNWeights[2]}
	switch int(distuv.NewCategorical(w, rng).Rand()) {
	case 0:
		return 1
	case 1:
		return c.SubfuncFactor.Draw(rng)
	default:
		return 1 + c.NeofuncExcess.Draw(rng)
	}
}

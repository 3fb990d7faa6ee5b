// Package sim grows dated gene trees inside a fixed species tree by a
// continuous-time branching process over duplication, loss, horizontal
// transfer, and gene conversion, with deterministic speciation events taken
// from the species tree.
package sim

import (
	"errors"
	"fmt"
	"math"
)

type BiasMode string

const (
	BiasUniform     BiasMode = "uniform"
	BiasInverse     BiasMode = "inverse"
	BiasExponential BiasMode = "exponential"
)

type ExtinctionMode string

const (
	ExtinctionOff        ExtinctionMode = "off"
	ExtinctionPerSpecies ExtinctionMode = "per_species"
	ExtinctionPerFamily  ExtinctionMode = "per_family"
)

var (
	ErrNegativeRate     = errors.New("event rates must be non-negative")
	ErrReplaceProb      = errors.New("replace probability must lie in [0, 1]")
	ErrBiasStrength     = errors.New("distance bias needs a positive strength")
	ErrUnknownBias      = errors.New("unknown distance-bias mode")
	ErrUnknownAvoidance = errors.New("unknown extinction-avoidance mode")

	// Runtime invariants; either of these aborting a run is a bug, not a
	// biological outcome.
	ErrInvalidTotalRate  = errors.New("total event rate is negative or non-finite")
	ErrLineagesExhausted = errors.New("active lineages exhausted while speciations remain under extinction avoidance")
)

// Config carries the per-lineage event rates and sampling policies of one
// gene-family simulation. The zero value of Bias and Extinction default to
// uniform sampling and per-species avoidance.
type Config struct {
	DuplicationRate float64
	LossRate        float64
	TransferRate    float64
	ConversionRate  float64

	// ReplaceProb is the Bernoulli parameter deciding replacing versus
	// additive transfers.
	ReplaceProb float64

	// PolytomyRate is the Poisson mean for extra duplication children
	// beyond the usual two. Zero keeps duplications binary.
	PolytomyRate float64

	Bias         BiasMode
	BiasStrength float64

	Extinction ExtinctionMode
}

func (c Config) withDefaults() Config {
	if c.Bias == "" {
		c.Bias = BiasUniform
	}
	if c.Extinction == "" {
		c.Extinction = ExtinctionPerSpecies
	}
	return c
}

// Validate reports configuration errors before any simulation work starts.
func (c Config) Validate() error {
	for _, r := range []float64{c.DuplicationRate, c.LossRate, c.TransferRate, c.ConversionRate, c.PolytomyRate} {
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: got %g", ErrNegativeRate, r)
		}
	}
	if c.ReplaceProb < 0 || c.ReplaceProb > 1 || math.IsNaN(c.ReplaceProb) {
		return fmt.Errorf("%w: got %g", ErrReplaceProb, c.ReplaceProb)
	}
	switch c.Bias {
	case BiasUniform:
	case BiasInverse, BiasExponential:
		if !(c.BiasStrength > 0) {
			return fmt.Errorf("%w: mode %s with strength %g", ErrBiasStrength, c.Bias, c.BiasStrength)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBias, c.Bias)
	}
	switch c.Extinction {
	case ExtinctionOff, ExtinctionPerSpecies, ExtinctionPerFamily:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAvoidance, c.Extinction)
	}
	return nil
}

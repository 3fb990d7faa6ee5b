// Package dist provides the closed set of validated distributions the
// simulator draws from. Every draw takes an explicit RNG handle so that runs
// are reproducible and safe to execute in parallel.
package dist

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

type Kind string

const (
	Constant         Kind = "constant"
	Uniform          Kind = "uniform"
	UniformDiscrete  Kind = "uniform_discrete"
	Gamma            Kind = "gamma"
	GammaMean        Kind = "gamma_mean"
	Exponential      Kind = "exponential"
	Zipf             Kind = "zipf"
	NegativeBinomial Kind = "negative_binomial"
)

var (
	ErrUnknownKind   = errors.New("unknown distribution kind")
	ErrBadParams     = errors.New("invalid distribution parameters")
	ErrBadTruncation = errors.New("truncation bounds exclude the distribution's expectation")
)

// truncationAttempts bounds the rejection loop for truncated draws; after
// that the draw is clamped so a single call always terminates.
const truncationAttempts = 64

// Distribution is an immutable, validated sampling specification.
type Distribution struct {
	kind      Kind
	a, b      float64
	lo, hi    float64
	truncated bool
}

// New validates kind-specific parameters and returns the distribution.
//
//	constant: value
//	uniform: min, max (max > min)
//	uniform_discrete: lo, hi (integers, hi >= lo)
//	gamma: shape, scale (both > 0)
//	gamma_mean: shape, mean (both > 0)
//	exponential: rate (> 0)
//	zipf: s, n (s > 1, n >= 1; support {1..n})
//	negative_binomial: r, p (r > 0, 0 < p < 1)
func New(kind Kind, params ...float64) (Distribution, error) {
	for _, p := range params {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Distribution{}, fmt.Errorf("%w: non-finite parameter", ErrBadParams)
		}
	}
	d := Distribution{kind: kind}
	switch kind {
	case Constant:
		if len(params) != 1 {
			return Distribution{}, fmt.Errorf("%w: constant needs 1 parameter", ErrBadParams)
		}
		d.a = params[0]
	case Uniform:
		if len(params) != 2 || params[1] <= params[0] {
			return Distribution{}, fmt.Errorf("%w: uniform needs min < max", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	case UniformDiscrete:
		if len(params) != 2 || params[0] != math.Trunc(params[0]) || params[1] != math.Trunc(params[1]) || params[1] < params[0] {
			return Distribution{}, fmt.Errorf("%w: uniform_discrete needs integer lo <= hi", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	case Gamma:
		if len(params) != 2 || params[0] <= 0 || params[1] <= 0 {
			return Distribution{}, fmt.Errorf("%w: gamma needs shape > 0 and scale > 0", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	case GammaMean:
		if len(params) != 2 || params[0] <= 0 || params[1] <= 0 {
			return Distribution{}, fmt.Errorf("%w: gamma_mean needs shape > 0 and mean > 0", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	case Exponential:
		if len(params) != 1 || params[0] <= 0 {
			return Distribution{}, fmt.Errorf("%w: exponential needs rate > 0", ErrBadParams)
		}
		d.a = params[0]
	case Zipf:
		if len(params) != 2 || params[0] <= 1 || params[1] < 1 || params[1] != math.Trunc(params[1]) {
			return Distribution{}, fmt.Errorf("%w: zipf needs s > 1 and integer n >= 1", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	case NegativeBinomial:
		if len(params) != 2 || params[0] <= 0 || params[1] <= 0 || params[1] >= 1 {
			return Distribution{}, fmt.Errorf("%w: negative_binomial needs r > 0 and 0 < p < 1", ErrBadParams)
		}
		d.a, d.b = params[0], params[1]
	default:
		return Distribution{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return d, nil
}

// MustNew is New for statically known parameters; it panics on error.
func MustNew(kind Kind, params ...float64) Distribution {
	d, err := New(kind, params...)
	if err != nil {
		panic(err)
	}
	return d
}

// Parse resolves a configuration name into a distribution.
func Parse(name string, params []float64) (Distribution, error) {
	switch Kind(name) {
	case Constant, Uniform, UniformDiscrete, Gamma, GammaMean, Exponential, Zipf, NegativeBinomial:
		return New(Kind(name), params...)
	}
	return Distribution{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Truncated returns a copy restricted to [lo, hi]. The bounds must contain
// the untruncated expectation; anything else is a configuration error.
func (d Distribution) Truncated(lo, hi float64) (Distribution, error) {
	if !(lo < hi) || math.IsNaN(lo) || math.IsNaN(hi) {
		return Distribution{}, fmt.Errorf("%w: need lo < hi", ErrBadTruncation)
	}
	if m := d.Mean(); m < lo || m > hi {
		return Distribution{}, fmt.Errorf("%w: mean %g outside [%g, %g]", ErrBadTruncation, m, lo, hi)
	}
	d.lo, d.hi, d.truncated = lo, hi, true
	return d, nil
}

func (d Distribution) Kind() Kind { return d.kind }

// Mean returns the expectation of the untruncated distribution.
func (d Distribution) Mean() float64 {
	switch d.kind {
	case Constant:
		return d.a
	case Uniform, UniformDiscrete:
		return (d.a + d.b) / 2
	case Gamma:
		return d.a * d.b
	case GammaMean:
		return d.b
	case Exponential:
		return 1 / d.a
	case Zipf:
		return zipfMean(d.a, int(d.b))
	case NegativeBinomial:
		return d.a * (1 - d.b) / d.b
	}
	return math.NaN()
}

// Draw samples one value. Truncated distributions reject out-of-bound values
// a bounded number of times, then clamp, so a draw is always a single
// terminating operation for a fixed RNG stream.
func (d Distribution) Draw(rng *rand.Rand) float64 {
	if !d.truncated {
		return d.draw(rng)
	}
	for i := 0; i < truncationAttempts; i++ {
		if v := d.draw(rng); v >= d.lo && v <= d.hi {
			return v
		}
	}
	return math.Min(math.Max(d.draw(rng), d.lo), d.hi)
}

func (d Distribution) draw(rng *rand.Rand) float64 {
	switch d.kind {
	case Constant:
		return d.a
	case Uniform:
		return distuv.Uniform{Min: d.a, Max: d.b, Src: rng}.Rand()
	case UniformDiscrete:
		return d.a + float64(rng.Intn(int(d.b-d.a)+1))
	case Gamma:
		return distuv.Gamma{Alpha: d.a, Beta: 1 / d.b, Src: rng}.Rand()
	case GammaMean:
		return distuv.Gamma{Alpha: d.a, Beta: d.a / d.b, Src: rng}.Rand()
	case Exponential:
		return distuv.Exponential{Rate: d.a, Src: rng}.Rand()
	case Zipf:
		return float64(rand.NewZipf(rng, d.a, 1, uint64(d.b)-1).Uint64() + 1)
	case NegativeBinomial:
		lambda := distuv.Gamma{Alpha: d.a, Beta: d.b / (1 - d.b), Src: rng}.Rand()
		if lambda <= 0 {
			return 0
		}
		return distuv.Poisson{Lambda: lambda, Src: rng}.Rand()
	}
	return math.NaN()
}

func zipfMean(s float64, n int) float64 {
	var num, den float64
	for k := 1; k <= n; k++ {
		den += math.Pow(float64(k), -s)
		num += math.Pow(float64(k), 1-s)
	}
	return num / den
}

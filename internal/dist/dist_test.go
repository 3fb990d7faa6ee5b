package dist

import (
	"errors"
	"math"
	"testing"

	"golang.org/x/exp/rand"
)

func TestNewRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name   string
		kind   Kind
		params []float64
	}{
		{"gamma zero shape", Gamma, []float64{0, 1}},
		{"gamma negative scale", Gamma, []float64{2, -1}},
		{"exponential zero rate", Exponential, []float64{0}},
		{"uniform inverted", Uniform, []float64{2, 1}},
		{"uniform_discrete fractional", UniformDiscrete, []float64{0.5, 3}},
		{"zipf s too small", Zipf, []float64{1, 10}},
		{"negative_binomial p out of range", NegativeBinomial, []float64{2, 1.5}},
		{"constant arity", Constant, []float64{}},
		{"non-finite", Constant, []float64{math.Inf(1)}},
	}
	for _, tc := range cases {
		if _, err := New(tc.kind, tc.params...); !errors.Is(err, ErrBadParams) {
			t.Fatalf("%s: expected ErrBadParams, got %v", tc.name, err)
		}
	}
	if _, err := New(Kind("weibull"), 1); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestMeans(t *testing.T) {
	cases := []struct {
		d    Distribution
		want float64
	}{
		{MustNew(Constant, 3.5), 3.5},
		{MustNew(Uniform, 0, 2), 1},
		{MustNew(UniformDiscrete, 1, 5), 3},
		{MustNew(Gamma, 2, 0.5), 1},
		{MustNew(GammaMean, 4, 2.5), 2.5},
		{MustNew(Exponential, 4), 0.25},
		{MustNew(NegativeBinomial, 3, 0.5), 3},
	}
	for _, tc := range cases {
		if got := tc.d.Mean(); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("%s: mean = %g, want %g", tc.d.Kind(), got, tc.want)
		}
	}
}

func TestTruncationValidation(t *testing.T) {
	g := MustNew(Gamma, 2, 0.5) // mean 1
	if _, err := g.Truncated(2, 3); !errors.Is(err, ErrBadTruncation) {
		t.Fatalf("expected ErrBadTruncation for bounds excluding mean, got %v", err)
	}
	if _, err := g.Truncated(1, 1); !errors.Is(err, ErrBadTruncation) {
		t.Fatalf("expected ErrBadTruncation for empty interval, got %v", err)
	}
	tr, err := g.Truncated(0.5, 2)
	if err != nil {
		t.Fatalf("valid truncation rejected: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		if v := tr.Draw(rng); v < 0.5 || v > 2 {
			t.Fatalf("truncated draw %g outside bounds", v)
		}
	}
}

func TestDrawsAreDeterministic(t *testing.T) {
	d := MustNew(Gamma, 2, 0.5)
	a := rand.New(rand.NewSource(42))
	b := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		if x, y := d.Draw(a), d.Draw(b); x != y {
			t.Fatalf("draw %d diverged: %g vs %g", i, x, y)
		}
	}
}

func TestSampleMeansConverge(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	cases := []Distribution{
		MustNew(Uniform, 0, 2),
		MustNew(Gamma, 2, 0.5),
		MustNew(Exponential, 4),
		MustNew(NegativeBinomial, 3, 0.5),
		MustNew(Zipf, 2, 10),
	}
	const n = 200000
	for _, d := range cases {
		var sum float64
		for i := 0; i < n; i++ {
			sum += d.Draw(rng)
		}
		got, want := sum/n, d.Mean()
		if math.Abs(got-want) > 0.05*math.Max(1, want) {
			t.Fatalf("%s: sample mean %g too far from %g", d.Kind(), got, want)
		}
	}
}

func TestUniformDiscreteSupport(t *testing.T) {
	d := MustNew(UniformDiscrete, 2, 4)
	rng := rand.New(rand.NewSource(3))
	seen := map[float64]bool{}
	for i := 0; i < 1000; i++ {
		v := d.Draw(rng)
		if v != math.Trunc(v) || v < 2 || v > 4 {
			t.Fatalf("draw %g outside {2,3,4}", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected full support, saw %v", seen)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("gamma", []float64{2, 0.5})
	if err != nil {
		t.Fatalf("parse gamma: %v", err)
	}
	if d.Kind() != Gamma {
		t.Fatalf("parsed kind %s", d.Kind())
	}
	if _, err := Parse("normal", nil); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

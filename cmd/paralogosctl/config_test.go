package main

import (
	"os"
	"path/filepath"
	"testing"

	"paralogos/internal/sim"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
species:
  - label: S1
    parent: -1
    age: 3
  - label: S2
    parent: 0
    age: 1
  - label: c
    parent: 0
    age: 0
  - label: a
    parent: 1
    age: 0
  - label: b
    parent: 1
    age: 0
families: 50
seed: 7
workers: 4
rates:
  duplication: 0.5
  loss: 0.3
  transfer: 0.2
  conversion: 0.1
  replace_prob: 0.5
bias:
  mode: inverse
  strength: 1.5
extinction: per_family
contraction:
  probability: 0.25
heterogeneity:
  base_rate: 2
  autocorr_variance: 0.4
  csn_weights: [2, 1, 1]
  subfunc_factor:
    kind: uniform
    params: [0.4, 0.8]
  neofunc_excess:
    kind: exponential
    params: [2]
`

func TestLoadScenario(t *testing.T) {
	req, err := loadScenario(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(req.Species) != 5 || req.Families != 50 || req.Seed != 7 || req.Workers != 4 {
		t.Fatalf("req = %+v", req)
	}
	want := sim.Config{
		DuplicationRate: 0.5,
		LossRate:        0.3,
		TransferRate:    0.2,
		ConversionRate:  0.1,
		ReplaceProb:     0.5,
		Bias:            sim.BiasInverse,
		BiasStrength:    1.5,
		Extinction:      sim.ExtinctionPerFamily,
	}
	if req.Sim != want {
		t.Fatalf("sim config:\ngot  %+v\nwant %+v", req.Sim, want)
	}
	if req.ContractionProbability != 0.25 || req.ContractionProportion != 0 {
		t.Fatalf("contraction = (%g, %g)", req.ContractionProbability, req.ContractionProportion)
	}
	if req.Rates == nil {
		t.Fatal("heterogeneity not loaded")
	}
	if req.Rates.BaseRate != 2 || req.Rates.AutocorrVariance != 0.4 {
		t.Fatalf("rates = %+v", req.Rates)
	}
	if req.Rates.CSNWeights != [3]float64{2, 1, 1} {
		t.Fatalf("csn weights = %v", req.Rates.CSNWeights)
	}
	if req.Rates.SubfuncFactor.Kind() == "" || req.Rates.NeofuncExcess.Kind() == "" {
		t.Fatal("distributions not parsed")
	}
}

func TestLoadScenarioMinimal(t *testing.T) {
	req, err := loadScenario(writeConfig(t, `
species:
  - label: S1
    parent: -1
    age: 1
  - label: a
    parent: 0
    age: 0
  - label: b
    parent: 0
    age: 0
families: 2
`))
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if req.Rates != nil {
		t.Fatal("rates should be nil without a heterogeneity section")
	}
	if req.Sim != (sim.Config{}) {
		t.Fatalf("sim config should be zero, got %+v", req.Sim)
	}
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	if _, err := loadScenario(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := loadScenario(writeConfig(t, "species: [")); err == nil {
		t.Fatal("expected error for broken YAML")
	}
	if _, err := loadScenario(writeConfig(t, `
species:
  - label: root
    age: 1
heterogeneity:
  csn_weights: [1, 2]
`)); err == nil {
		t.Fatal("expected error for two csn weights")
	}
	if _, err := loadScenario(writeConfig(t, `
species:
  - label: root
    age: 1
heterogeneity:
  subfunc_factor:
    kind: cauchy
`)); err == nil {
		t.Fatal("expected error for unknown distribution")
	}
}

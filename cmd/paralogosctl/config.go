package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"paralogos/internal/dist"
	"paralogos/internal/rates"
	"paralogos/internal/sim"
	"paralogos/internal/species"
	api "paralogos/pkg/paralogos"
)

// scenarioConfig is the YAML shape of a simulate scenario.
type scenarioConfig struct {
	Species  []species.Record `yaml:"species"`
	Families int              `yaml:"families"`
	Seed     uint64           `yaml:"seed"`
	Workers  int              `yaml:"workers"`

	Rates struct {
		Duplication float64 `yaml:"duplication"`
		Loss        float64 `yaml:"loss"`
		Transfer    float64 `yaml:"transfer"`
		Conversion  float64 `yaml:"conversion"`
		ReplaceProb float64 `yaml:"replace_prob"`
		Polytomy    float64 `yaml:"polytomy"`
	} `yaml:"rates"`

	Bias struct {
		Mode     string  `yaml:"mode"`
		Strength float64 `yaml:"strength"`
	} `yaml:"bias"`

	Extinction string `yaml:"extinction"`

	Contraction struct {
		Probability float64 `yaml:"probability"`
		Proportion  float64 `yaml:"proportion"`
	} `yaml:"contraction"`

	Heterogeneity *heterogeneityConfig `yaml:"heterogeneity"`
}

type heterogeneityConfig struct {
	BaseRate         float64     `yaml:"base_rate"`
	AutocorrVariance float64     `yaml:"autocorr_variance"`
	CSNWeights       []float64   `yaml:"csn_weights"`
	SubfuncFactor    *distConfig `yaml:"subfunc_factor"`
	NeofuncExcess    *distConfig `yaml:"neofunc_excess"`
}

type distConfig struct {
	Kind   string    `yaml:"kind"`
	Params []float64 `yaml:"params"`
}

func loadScenario(path string) (api.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.RunRequest{}, err
	}
	var cfg scenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return api.RunRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.toRequest()
}

func (c scenarioConfig) toRequest() (api.RunRequest, error) {
	req := api.RunRequest{
		Species:  c.Species,
		Families: c.Families,
		Seed:     c.Seed,
		Workers:  c.Workers,
		Sim: sim.Config{
			DuplicationRate: c.Rates.Duplication,
			LossRate:        c.Rates.Loss,
			TransferRate:    c.Rates.Transfer,
			ConversionRate:  c.Rates.Conversion,
			ReplaceProb:     c.Rates.ReplaceProb,
			PolytomyRate:    c.Rates.Polytomy,
			Bias:            sim.BiasMode(c.Bias.Mode),
			BiasStrength:    c.Bias.Strength,
			Extinction:      sim.ExtinctionMode(c.Extinction),
		},
		ContractionProbability: c.Contraction.Probability,
		ContractionProportion:  c.Contraction.Proportion,
	}
	if c.Heterogeneity == nil {
		return req, nil
	}

	h := rates.Config{
		BaseRate:         c.Heterogeneity.BaseRate,
		AutocorrVariance: c.Heterogeneity.AutocorrVariance,
	}
	switch len(c.Heterogeneity.CSNWeights) {
	case 0:
	case 3:
		copy(h.CSNWeights[:], c.Heterogeneity.CSNWeights)
	default:
		return api.RunRequest{}, fmt.Errorf("csn_weights needs exactly 3 entries, got %d", len(c.Heterogeneity.CSNWeights))
	}
	if dc := c.Heterogeneity.SubfuncFactor; dc != nil {
		d, err := dist.Parse(dc.Kind, dc.Params)
		if err != nil {
			return api.RunRequest{}, fmt.Errorf("subfunc_factor: %w", err)
		}
		h.SubfuncFactor = d
	}
	if dc := c.Heterogeneity.NeofuncExcess; dc != nil {
		d, err := dist.Parse(dc.Kind, dc.Params)
		if err != nil {
			return api.RunRequest{}, fmt.Errorf("neofunc_excess: %w", err)
		}
		h.NeofuncExcess = d
	}
	req.Rates = &h
	return req, nil
}

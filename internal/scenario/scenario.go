// Package scenario runs batches of gene family simulations over one species
// tree, with deterministic per-family seeding and bounded parallelism.
package scenario

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"paralogos/internal/model"
	"paralogos/internal/rates"
	"paralogos/internal/sim"
	"paralogos/internal/species"
	"paralogos/internal/tree"
)

var (
	ErrNoSpecies  = errors.New("scenario: species view is required")
	ErrNoFamilies = errors.New("scenario: families must be positive")
)

// Scenario describes one batch. Rates is optional; when nil the gene trees
// keep their raw durations as branch lengths.
type Scenario struct {
	Species  *species.View
	Sim      sim.Config
	Rates    *rates.Config
	Families int
	Seed     uint64
	Workers  int
}

// Family is the outcome of one simulated gene family. Raw carries every
// event node; Observable is the pruned tree an extant-only observer sees.
type Family struct {
	Index      int
	Raw        *tree.Tree
	Observable *tree.Tree
	Summary    model.FamilySummary
}

type Result struct {
	Families []Family
}

// Run simulates sc.Families gene families. Families are independent given
// their derived seeds, so results do not depend on worker count.
func Run(ctx context.Context, sc Scenario) (*Result, error) {
	if sc.Species == nil {
		return nil, ErrNoSpecies
	}
	if sc.Families <= 0 {
		return nil, ErrNoFamilies
	}
	simulator, err := sim.New(sc.Species, sc.Sim)
	if err != nil {
		return nil, err
	}
	if sc.Rates != nil {
		if err := sc.Rates.Validate(); err != nil {
			return nil, err
		}
	}

	workers := sc.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	families := make([]Family, sc.Families)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < sc.Families; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fam, err := runFamily(simulator, sc, i)
			if err != nil {
				return err
			}
			families[i] = fam
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Families: families}, nil
}

func runFamily(simulator *sim.Simulator, sc Scenario, index int) (Family, error) {
	rng := rand.New(rand.NewSource(familySeed(sc.Seed, index)))

	raw, err := simulator.Simulate(rng)
	if err != nil {
		return Family{}, err
	}
	if sc.Rates != nil {
		raw, err = rates.Assign(raw, sc.Species, *sc.Rates, rng)
		if err != nil {
			return Family{}, err
		}
	}
	observable := tree.Prune(raw)

	return Family{
		Index:      index,
		Raw:        raw,
		Observable: observable,
		Summary:    summarize(index, raw, observable),
	}, nil
}

func summarize(index int, raw, observable *tree.Tree) model.FamilySummary {
	extant := len(raw.ExtantLeaves())
	return model.FamilySummary{
		Index:           index,
		Nodes:           raw.Len(),
		ExtantLeaves:    extant,
		Losses:          raw.CountKind(model.EventLoss),
		Duplications:    raw.CountKind(model.EventDuplication),
		Transfers:       raw.CountKind(model.EventHgtOrigin),
		GeneConversions: raw.CountKind(model.EventGeneConversion),
		ObservableNodes: observable.Len(),
		Extinct:         extant == 0,
	}
}

// familySeed derives an independent stream seed per family (splitmix64).
func familySeed(seed uint64, index int) uint64 {
	z := seed + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"paralogos/internal/model"
	"paralogos/internal/species"
	"paralogos/internal/tree"
)

// Simulator grows dated gene trees over one species tree. It is stateless
// across runs: Simulate may be called repeatedly, and concurrently with
// distinct RNG handles, against the same read-only species view.
type Simulator struct {
	sp  *species.View
	cfg Config
}

// New validates the configuration against the species view.
func New(sp *species.View, cfg Config) (*Simulator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{sp: sp, cfg: cfg}, nil
}

// lineage is an in-progress tip of the growing gene tree: the arena node its
// pending edge descends from, the species branch it lives in (identified by
// the branch's bottom node), and its creation age.
type lineage struct {
	parent int
	branch int
	birth  float64
}

// run is the mutable state of a single simulation.
type run struct {
	sim    *Simulator
	rng    *rand.Rand
	t      *tree.Tree
	active []lineage
	now    float64
}

// Simulate produces the raw dated gene tree, loss leaves included. For a
// fixed seed the result is reproduced bit for bit.
func (s *Simulator) Simulate(rng *rand.Rand) (*tree.Tree, error) {
	sp := s.sp
	root := tree.New(tree.Node{
		Kind: model.EventSpeciation,
		Time: sp.OriginTime(),
		Rec:  model.PointReconciliation(sp.Tree().Root),
	})
	root.Planted = true

	r := &run{
		sim:    s,
		rng:    rng,
		t:      root,
		active: []lineage{{parent: root.Root, branch: sp.RootBranch(), birth: sp.OriginTime()}},
		now:    sp.OriginTime(),
	}

	speciations := sp.Speciations()
	next := 0
	for {
		pending := next < len(speciations)
		if len(r.active) == 0 {
			if pending && s.cfg.Extinction != ExtinctionOff {
				return nil, ErrLineagesExhausted
			}
			break
		}

		weights, total := r.lineageRates()
		if total < 0 || math.IsNaN(total) || math.IsInf(total, 0) {
			return nil, fmt.Errorf("%w: %g", ErrInvalidTotalRate, total)
		}

		if total == 0 {
			if !pending {
				break
			}
			node := speciations[next]
			next++
			r.now = sp.Time(node)
			r.speciate(node)
			continue
		}

		wait := distuv.Exponential{Rate: total, Src: rng}.Rand()
		eventTime := r.now - wait
		if pending && eventTime <= sp.Time(speciations[next]) {
			node := speciations[next]
			next++
			r.now = sp.Time(node)
			r.speciate(node)
			continue
		}
		if eventTime <= 0 {
			break
		}
		r.now = eventTime
		r.step(weights, total)
	}

	r.finalize()
	return r.t, nil
}

// lineageRates returns each active lineage's total instantaneous rate and
// their sum. The extinction guard zeroes loss contributions here, for this
// computation only.
func (r *run) lineageRates() ([]float64, float64) {
	cfg := r.sim.cfg
	perBranch := make(map[int]int, len(r.active))
	for _, l := range r.active {
		perBranch[l.branch]++
	}
	weights := make([]float64, len(r.active))
	var total float64
	for i, l := range r.active {
		w := cfg.DuplicationRate + cfg.TransferRate + cfg.ConversionRate +
			r.effectiveLossRate(perBranch, l)
		weights[i] = w
		total += w
	}
	return weights, total
}

// effectiveLossRate is the extinction guard: it suppresses the loss rate of
// a lineage whose loss would empty its species branch (per_species) or the
// whole family (per_family).
func (r *run) effectiveLossRate(perBranch map[int]int, l lineage) float64 {
	cfg := r.sim.cfg
	switch cfg.Extinction {
	case ExtinctionPerSpecies:
		if perBranch[l.branch] == 1 {
			return 0
		}
	case ExtinctionPerFamily:
		if len(r.active) == 1 {
			return 0
		}
	}
	return cfg.LossRate
}

// step draws the acting lineage, then the event type from that lineage's own
// rate breakdown, and applies it.
func (r *run) step(weights []float64, total float64) {
	cfg := r.sim.cfg
	li := chooseWeighted(r.rng, weights)

	perBranch := make(map[int]int, len(r.active))
	for _, l := range r.active {
		perBranch[l.branch]++
	}
	loss := r.effectiveLossRate(perBranch, r.active[li])
	kind := chooseWeighted(r.rng, []float64{
		cfg.DuplicationRate, loss, cfg.TransferRate, cfg.ConversionRate,
	})
	switch kind {
	case 0:
		r.duplicate(li)
	case 1:
		r.lose(li)
	case 2:
		r.transfer(li)
	case 3:
		r.convert(li)
	}
}

// materialize closes the pending edge of a lineage with a node of the given
// kind at the current time and returns the new handle.
func (r *run) materialize(l lineage, kind model.EventKind, rec model.Reconciliation) int {
	return r.t.Add(l.parent, tree.Node{
		Kind: kind,
		Time: r.now,
		Dist: l.birth - r.now,
		Rec:  rec,
	})
}

func (r *run) edgeRec(branch int) model.Reconciliation {
	return model.EdgeReconciliation(r.sim.sp.ParentOf(branch), branch)
}

// speciate fires the deterministic split of every lineage living in the
// expiring branch; each gets one child lineage per descendant species branch.
func (r *run) speciate(node int) {
	sp := r.sim.sp
	kids := sp.ChildrenOf(node)
	out := r.active[:0:0]
	for _, l := range r.active {
		if l.branch != node {
			out = append(out, l)
			continue
		}
		h := r.materialize(l, model.EventSpeciation, model.PointReconciliation(node))
		for _, c := range kids {
			out = append(out, lineage{parent: h, branch: c, birth: r.now})
		}
	}
	r.active = out
}

func (r *run) duplicate(li int) {
	l := r.active[li]
	extra := 0
	if r.sim.cfg.PolytomyRate > 0 {
		extra = int(distuv.Poisson{Lambda: r.sim.cfg.PolytomyRate, Src: r.rng}.Rand())
	}
	h := r.materialize(l, model.EventDuplication, r.edgeRec(l.branch))
	copies := make([]lineage, 2+extra)
	for i := range copies {
		copies[i] = lineage{parent: h, branch: l.branch, birth: r.now}
	}
	r.active = append(r.active[:li:li], append(copies, r.active[li+1:]...)...)
}

func (r *run) lose(li int) {
	l := r.active[li]
	r.materialize(l, model.EventLoss, r.edgeRec(l.branch))
	r.active = append(r.active[:li:li], r.active[li+1:]...)
}

// transfer applies a horizontal gene transfer. The receiving branch is drawn
// among species branches co-existing at the event time, distance-biased by
// species divergence. A replacing transfer overwrites a resident lineage
// (chosen by gene divergence); with no resident it degrades to additive.
func (r *run) transfer(li int) {
	sp := r.sim.sp
	cfg := r.sim.cfg
	donor := r.active[li]

	var candidates []int
	for _, b := range sp.BranchesAt(r.now) {
		if b != donor.branch {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return
	}
	weights := make([]float64, len(candidates))
	for i, b := range candidates {
		if cfg.Bias == BiasUniform {
			weights[i] = 1
			continue
		}
		lcaTime, err := sp.LCATime(donor.branch, b)
		if err != nil {
			// Branches of one species tree always share an ancestor.
			weights[i] = 1
			continue
		}
		weights[i] = cfg.biasWeight(lcaTime - r.now)
	}
	target := candidates[chooseWeighted(r.rng, weights)]

	replacing := distuv.Bernoulli{P: cfg.ReplaceProb, Src: r.rng}.Rand() == 1
	victim := -1
	if replacing {
		victim = r.chooseResident(target, -1, li)
	}

	h := r.materialize(donor, model.EventHgtOrigin, r.edgeRec(donor.branch))
	tn := r.t.Add(h, tree.Node{
		Kind:        model.EventHgtTarget,
		Time:        r.now,
		Dist:        0,
		Rec:         r.edgeRec(target),
		Transferred: true,
	})

	out := r.active[:0:0]
	for i, l := range r.active {
		switch i {
		case li:
			out = append(out, lineage{parent: h, branch: donor.branch, birth: r.now})
		case victim:
			r.materialize(l, model.EventLoss, r.edgeRec(l.branch))
		default:
			out = append(out, l)
		}
	}
	out = append(out, lineage{parent: tn, branch: target, birth: r.now})
	r.active = out
}

// convert replaces a co-resident paralog with a fresh copy of the acting
// lineage. With no paralog in the branch the event has no effect.
func (r *run) convert(li int) {
	l := r.active[li]
	victim := r.chooseResident(l.branch, li, li)
	if victim < 0 {
		return
	}
	h := r.materialize(l, model.EventGeneConversion, r.edgeRec(l.branch))
	out := r.active[:0:0]
	for i, other := range r.active {
		switch i {
		case li:
			out = append(out,
				lineage{parent: h, branch: l.branch, birth: r.now},
				lineage{parent: h, branch: l.branch, birth: r.now})
		case victim:
			r.materialize(other, model.EventLoss, r.edgeRec(other.branch))
		default:
			out = append(out, other)
		}
	}
	r.active = out
}

// chooseResident picks an active lineage living in branch, excluding the
// lineage at index exclude, weighted by gene-tree divergence time from the
// reference lineage. Returns -1 when the branch holds no eligible lineage.
func (r *run) chooseResident(branch, exclude, ref int) int {
	cfg := r.sim.cfg
	var idx []int
	for i, l := range r.active {
		if i != exclude && l.branch == branch {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return -1
	}
	weights := make([]float64, len(idx))
	for i, cand := range idx {
		if cfg.Bias == BiasUniform {
			weights[i] = 1
			continue
		}
		_, lcaTime, err := r.t.LCA(r.active[ref].parent, r.active[cand].parent)
		if err != nil {
			weights[i] = 1
			continue
		}
		weights[i] = cfg.biasWeight(lcaTime - r.now)
	}
	return idx[chooseWeighted(r.rng, weights)]
}

// finalize materializes every surviving lineage as an extant leaf at age 0.
func (r *run) finalize() {
	sp := r.sim.sp
	counts := make(map[int]int)
	for _, l := range r.active {
		counts[l.branch]++
		r.t.Add(l.parent, tree.Node{
			Kind:  model.EventExtant,
			Label: fmt.Sprintf("%s_%d", sp.Label(l.branch), counts[l.branch]),
			Time:  0,
			Dist:  l.birth,
			Rec:   model.PointReconciliation(l.branch),
		})
	}
	r.active = nil
}

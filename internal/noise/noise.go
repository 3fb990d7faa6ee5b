// Package noise disturbs tree-derived distance matrices the way noisy
// sequence data would, while keeping the result a metric. It covers
// multiplicative perturbation with three metric-repair strategies, convex
// combination of two matrices, and wrong-topology matrices built from
// shuffled branch lengths.
package noise

import (
	"errors"
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"paralogos/internal/model"
	"paralogos/internal/tree"
)

type Repair string

const (
	RepairReject  Repair = "reject"
	RepairDOMR    Repair = "domr"
	RepairGeneral Repair = "general"
)

var (
	ErrUnknownRepair = errors.New("unknown metric-repair strategy")
	ErrBadSD         = errors.New("noise standard deviation must be positive")
	ErrShape         = errors.New("matrices must be square and of equal order")
	ErrTooFewLeaves  = errors.New("tree has fewer than two extant leaves")
)

// DistanceMatrix computes leaf-to-leaf path lengths of a (typically pruned)
// gene tree. Leaves are ordered as in preorder; labels are returned
// alongside.
func DistanceMatrix(t *tree.Tree) ([]string, *mat.SymDense, error) {
	leaves := t.ExtantLeaves()
	if len(leaves) < 2 {
		return nil, nil, ErrTooFewLeaves
	}
	labels := make([]string, len(leaves))
	d := mat.NewSymDense(len(leaves), nil)
	for i, a := range leaves {
		labels[i] = t.Node(a).Label
		for j := i + 1; j < len(leaves); j++ {
			pl, err := t.PathLength(a, leaves[j])
			if err != nil {
				return nil, nil, fmt.Errorf("path %d-%d: %w", a, leaves[j], err)
			}
			d.SetSym(i, j, pl)
		}
	}
	return labels, d, nil
}

// Noisy perturbs a metric distance matrix multiplicatively: each entry is
// scaled by a positive draw from Normal(1, sd), then the chosen repair
// strategy restores the triangle inequality. The input is not modified.
func Noisy(d *mat.SymDense, sd float64, repair Repair, rng *rand.Rand) (*mat.SymDense, error) {
	if !(sd > 0) {
		return nil, fmt.Errorf("%w: got %g", ErrBadSD, sd)
	}
	switch repair {
	case RepairReject:
		return noisyReject(d, sd, rng), nil
	case RepairDOMR:
		return noisyDOMR(d, sd, rng), nil
	case RepairGeneral:
		return noisyGeneral(d, sd, rng), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRepair, repair)
}

// positiveScale draws Normal(1, sd) until the scaled distance is positive.
func positiveScale(old, sd float64, rng *rand.Rand) float64 {
	n := distuv.Normal{Mu: 1, Sigma: sd, Src: rng}
	for {
		if v := old * n.Rand(); v > 0 {
			return v
		}
	}
}

// noisyReject perturbs one random entry at a time and rejects any change
// that violates the triangle inequality, until n(n-1)/2 perturbations stuck.
func noisyReject(orig *mat.SymDense, sd float64, rng *rand.Rand) *mat.SymDense {
	n := orig.SymmetricDim()
	d := mat.NewSymDense(n, nil)
	d.CopySym(orig)
	needed := n * (n - 1) / 2
	for done := 0; done < needed; {
		i := rng.Intn(n)
		j := rng.Intn(n)
		for i == j {
			j = rng.Intn(n)
		}
		old := d.At(i, j)
		d.SetSym(i, j, positiveScale(old, sd, rng))
		if violatesTriangle(d, i, j) {
			d.SetSym(i, j, old)
			continue
		}
		done++
	}
	return d
}

func violatesTriangle(d *mat.SymDense, i, j int) bool {
	n := d.SymmetricDim()
	for k := 0; k < n; k++ {
		if k == i || k == j {
			continue
		}
		dij, dik, dkj := d.At(i, j), d.At(i, k), d.At(k, j)
		if dij > dik+dkj || dik > dij+dkj || dkj > dik+dij {
			return true
		}
	}
	return false
}

// noisyDOMR perturbs every entry, then repairs by decrease-only metric
// repair (Floyd-Warshall style shortest-path relaxation).
func noisyDOMR(orig *mat.SymDense, sd float64, rng *rand.Rand) *mat.SymDense {
	n := orig.SymmetricDim()
	d := perturbAll(orig, sd, rng)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if via := d.At(i, k) + d.At(k, j); d.At(i, j) > via {
					d.SetSym(i, j, via)
				}
			}
		}
	}
	return d
}

// noisyGeneral perturbs every entry, then repairs by general metric repair:
// for each broken triangle either the long side shrinks or a short side
// grows, whichever is implicated in more violations.
func noisyGeneral(orig *mat.SymDense, sd float64, rng *rand.Rand) *mat.SymDense {
	n := orig.SymmetricDim()
	d := perturbAll(orig, sd, rng)
	l := mat.NewDense(n, n, nil)
	r := mat.NewDense(n, n, nil)
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if d.At(i, j) >= d.At(i, k)+d.At(k, j) {
					l.Set(i, j, l.At(i, j)+1)
					r.Set(i, k, r.At(i, k)+1)
					r.Set(j, k, r.At(j, k)+1)
				}
			}
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < i; j++ {
				if d.At(i, j) < d.At(i, k)+d.At(k, j) {
					continue
				}
				switch {
				case l.At(i, j) > r.At(i, k) && l.At(i, j) > r.At(j, k):
					d.SetSym(i, j, d.At(i, k)+d.At(k, j))
				case r.At(i, k) > r.At(j, k):
					d.SetSym(i, k, d.At(i, j)-d.At(j, k))
				default:
					d.SetSym(j, k, d.At(i, j)-d.At(i, k))
				}
			}
		}
	}
	return d
}

func perturbAll(orig *mat.SymDense, sd float64, rng *rand.Rand) *mat.SymDense {
	n := orig.SymmetricDim()
	d := mat.NewSymDense(n, nil)
	d.CopySym(orig)
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, positiveScale(d.At(i, j), sd, rng))
		}
	}
	return d
}

// ConvexComb returns the convex linear combinations
// (1-alpha)*D1 + alpha*D2 and (1-alpha)*D2 + alpha*D1 of two equal-order
// matrices.
func ConvexComb(d1, d2 *mat.SymDense, alpha float64) (*mat.SymDense, *mat.SymDense, error) {
	if alpha < 0 || alpha > 1 {
		return nil, nil, errors.New("alpha must lie in [0, 1]")
	}
	n := d1.SymmetricDim()
	if d2.SymmetricDim() != n {
		return nil, nil, ErrShape
	}
	a := mat.NewSymDense(n, nil)
	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			a.SetSym(i, j, (1-alpha)*d1.At(i, j)+alpha*d2.At(i, j))
			b.SetSym(i, j, (1-alpha)*d2.At(i, j)+alpha*d1.At(i, j))
		}
	}
	return a, b, nil
}

// WrongTopology shuffles the observable tree's branch lengths into a fresh
// random binary topology and returns that tree's distance matrix: the right
// length distribution, the wrong tree. The input must be a pruned binary
// tree (even edge count).
func WrongTopology(t *tree.Tree, rng *rand.Rand) ([]string, *mat.SymDense, error) {
	var dists []float64
	for _, v := range t.Preorder() {
		if v != t.Root {
			dists = append(dists, t.Node(v).Dist)
		}
	}
	if len(dists) < 2 || len(dists)%2 != 0 {
		return nil, nil, fmt.Errorf("need an even, positive edge count, got %d", len(dists))
	}
	rng.Shuffle(len(dists), func(i, j int) { dists[i], dists[j] = dists[j], dists[i] })

	random := tree.New(tree.Node{})
	frontier := []int{random.Root}
	for len(dists) > 0 {
		pick := rng.Intn(len(frontier))
		v := frontier[pick]
		frontier = append(frontier[:pick], frontier[pick+1:]...)
		d1, d2 := dists[len(dists)-1], dists[len(dists)-2]
		dists = dists[:len(dists)-2]
		frontier = append(frontier,
			random.Add(v, tree.Node{Dist: d1}),
			random.Add(v, tree.Node{Dist: d2}))
	}

	// Random bijection to the original leaf labels.
	labels := make([]string, 0, len(t.ExtantLeaves()))
	for _, v := range t.ExtantLeaves() {
		labels = append(labels, t.Node(v).Label)
	}
	rng.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })
	leaves := random.Leaves()
	if len(leaves) != len(labels) {
		return nil, nil, fmt.Errorf("random topology has %d leaves for %d labels", len(leaves), len(labels))
	}
	for i, v := range leaves {
		n := random.Node(v)
		n.Label = labels[i]
		n.Kind = model.EventExtant
	}
	return DistanceMatrix(random)
}

// IsMetric checks symmetry implicitly (SymDense) plus zero diagonal and the
// triangle inequality.
func IsMetric(d *mat.SymDense, tol float64) bool {
	n := d.SymmetricDim()
	for i := 0; i < n; i++ {
		if d.At(i, i) != 0 {
			return false
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := 0; k < n; k++ {
				if d.At(i, j) > d.At(i, k)+d.At(k, j)+tol {
					return false
				}
			}
		}
	}
	return true
}

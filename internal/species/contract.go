package species

import (
	"errors"
	"math"
	"sort"

	"golang.org/x/exp/rand"

	"paralogos/internal/tree"
)

// ErrContractionConfig is returned when both contraction parameters are set;
// they select mutually exclusive strategies.
var ErrContractionConfig = errors.New("contraction probability and proportion are mutually exclusive")

// ContractEdges makes a binary species tree non-binary by contracting inner
// edges: either each eligible edge independently with the given probability,
// or the shortest given proportion of eligible edges. Exactly one of the two
// parameters may be nonzero. The input tree is not modified.
func ContractEdges(t *tree.Tree, probability, proportion float64, rng *rand.Rand) (*tree.Tree, error) {
	if probability != 0 && proportion != 0 {
		return nil, ErrContractionConfig
	}
	if probability < 0 || probability > 1 || proportion < 0 || proportion > 1 {
		return nil, errors.New("contraction parameters must lie in [0, 1]")
	}

	// Eligible: edges above inner nodes, excluding the planted stem.
	var candidates []int
	for _, v := range t.Preorder() {
		n := t.Node(v)
		if v == t.Root || len(n.Children) == 0 {
			continue
		}
		if t.Planted && n.Parent == t.Root {
			continue
		}
		candidates = append(candidates, v)
	}

	contract := make(map[int]bool)
	switch {
	case probability > 0:
		for _, v := range candidates {
			if rng.Float64() < probability {
				contract[v] = true
			}
		}
	case proportion > 0:
		sorted := append([]int(nil), candidates...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return t.Node(sorted[i]).Dist < t.Node(sorted[j]).Dist
		})
		n := int(math.Ceil(proportion * float64(len(sorted))))
		for _, v := range sorted[:n] {
			contract[v] = true
		}
	}

	out := tree.New(*t.Node(t.Root))
	out.Planted = t.Planted
	var attach func(old, newParent int)
	attach = func(old, newParent int) {
		for _, c := range t.Node(old).Children {
			if contract[c] {
				// Hoist the grandchildren; the contracted node vanishes.
				attach(c, newParent)
				continue
			}
			n := *t.Node(c)
			n.Dist = out.Node(newParent).Time - n.Time
			id := out.Add(newParent, n)
			attach(c, id)
		}
	}
	attach(t.Root, out.Root)
	return out, nil
}

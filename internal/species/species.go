// Package species exposes the read-only, dated species tree the gene-tree
// simulation is constrained by: ordered speciation times, the set of species
// branches alive at a given age, and LCA queries. The underlying tree is
// never mutated during a simulation and is safe for concurrent reads.
package species

import (
	"errors"
	"fmt"
	"sort"

	"paralogos/internal/model"
	"paralogos/internal/tree"
)

var (
	ErrNotPlanted = errors.New("species tree must be planted (root with a single child)")
	ErrBadTimes   = errors.New("species node times must decrease from root to leaves")
	ErrLeafAge    = errors.New("species leaves must be at age 0")
	ErrBadRecord  = errors.New("invalid species record")
	ErrDegenerate = errors.New("species inner nodes need at least two children")
)

// Record describes one species node for construction: its parent's index in
// the record slice (-1 for the root) and its age. Records are ordered
// parents-first.
type Record struct {
	Label  string  `yaml:"label" json:"label"`
	Parent int     `yaml:"parent" json:"parent"`
	Age    float64 `yaml:"age" json:"age"`
}

// FromRecords builds a dated species tree. When the root record has several
// children a planted root of the same age is inserted above it.
func FromRecords(recs []Record) (*tree.Tree, error) {
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrBadRecord)
	}
	if recs[0].Parent != -1 {
		return nil, fmt.Errorf("%w: first record must be the root", ErrBadRecord)
	}
	t := tree.New(tree.Node{Kind: model.EventSpeciation, Label: recs[0].Label, Time: recs[0].Age})
	handles := make([]int, len(recs))
	handles[0] = t.Root
	for i, r := range recs[1:] {
		idx := i + 1
		if r.Parent < 0 || r.Parent >= idx {
			return nil, fmt.Errorf("%w: record %d references parent %d", ErrBadRecord, idx, r.Parent)
		}
		p := handles[r.Parent]
		handles[idx] = t.Add(p, tree.Node{
			Kind:  model.EventExtant,
			Label: r.Label,
			Time:  r.Age,
			Dist:  t.Node(p).Time - r.Age,
		})
		// The parent turned inner; fix its kind.
		t.Node(p).Kind = model.EventSpeciation
	}
	if len(t.Node(t.Root).Children) > 1 {
		t = plant(t)
	}
	t.Planted = true
	return t, nil
}

// plant inserts a zero-length planted root above the current root.
func plant(t *tree.Tree) *tree.Tree {
	out := tree.New(tree.Node{Kind: model.EventSpeciation, Time: t.Node(t.Root).Time})
	var copyFrom func(old, parent int)
	copyFrom = func(old, parent int) {
		n := *t.Node(old)
		n.Dist = t.Node(parent).Time - n.Time
		id := out.Add(parent, n)
		for _, c := range t.Node(old).Children {
			copyFrom(c, id)
		}
	}
	copyFrom(t.Root, out.Root)
	return out
}

// View is the simulator-facing projection of a species tree.
type View struct {
	t     *tree.Tree
	order []int // speciation nodes, oldest first
}

// NewView validates the tree and indexes its speciation order.
func NewView(t *tree.Tree) (*View, error) {
	if t.Root < 0 || len(t.Node(t.Root).Children) != 1 {
		return nil, ErrNotPlanted
	}
	var order []int
	for _, v := range t.Preorder() {
		n := t.Node(v)
		if n.Time < 0 {
			return nil, fmt.Errorf("%w: node %d at age %g", ErrBadTimes, v, n.Time)
		}
		if n.Parent >= 0 {
			pt := t.Node(n.Parent).Time
			strict := !(t.Planted && n.Parent == t.Root)
			if n.Time > pt || (strict && n.Time >= pt) {
				return nil, fmt.Errorf("%w: node %d (%g) vs parent (%g)", ErrBadTimes, v, n.Time, pt)
			}
		}
		if len(n.Children) == 0 {
			if n.Time != 0 {
				return nil, fmt.Errorf("%w: leaf %d at age %g", ErrLeafAge, v, n.Time)
			}
			continue
		}
		if v != t.Root && len(n.Children) < 2 {
			return nil, fmt.Errorf("%w: node %d", ErrDegenerate, v)
		}
		if v != t.Root {
			order = append(order, v)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return t.Node(order[i]).Time > t.Node(order[j]).Time
	})
	return &View{t: t, order: order}, nil
}

// Tree returns the underlying read-only tree.
func (v *View) Tree() *tree.Tree { return v.t }

// OriginTime is the age at which the planted lineage starts.
func (v *View) OriginTime() float64 { return v.t.Node(v.t.Root).Time }

// RootBranch is the species branch of the planted edge, identified by its
// bottom node (the first speciation).
func (v *View) RootBranch() int { return v.t.Node(v.t.Root).Children[0] }

// Speciations returns speciation node handles ordered oldest first.
func (v *View) Speciations() []int { return v.order }

// Time returns the age of a species node.
func (v *View) Time(node int) float64 { return v.t.Node(node).Time }

// ParentOf returns the species node above the given branch bottom.
func (v *View) ParentOf(node int) int { return v.t.Node(node).Parent }

// ChildrenOf returns the branches created when the given node speciates.
func (v *View) ChildrenOf(node int) []int { return v.t.Node(node).Children }

// Label returns the species label of a node.
func (v *View) Label(node int) string { return v.t.Node(node).Label }

// IsLeaf reports whether the species node is extant.
func (v *View) IsLeaf(node int) bool { return len(v.t.Node(node).Children) == 0 }

// BranchesAt lists, in handle order, the branches (bottom nodes) whose
// half-open validity interval [child age, parent age) contains age.
func (v *View) BranchesAt(age float64) []int {
	var out []int
	for _, h := range v.t.Preorder() {
		n := v.t.Node(h)
		if n.Parent < 0 {
			continue
		}
		if n.Time <= age && age < v.t.Node(n.Parent).Time {
			out = append(out, h)
		}
	}
	return out
}

// LCATime answers the species LCA query for two branches: the age of the
// last common ancestor of their bottom nodes.
func (v *View) LCATime(a, b int) (float64, error) {
	_, tm, err := v.t.LCA(a, b)
	return tm, err
}

// Package tree implements the dated, planted trees the simulator grows and
// the analyses consume. Nodes live in an arena and refer to each other by
// integer handle; the tree owns every node exclusively.
package tree

import (
	"errors"
	"fmt"

	"paralogos/internal/model"
)

var (
	ErrNoSuchNode = errors.New("node handle out of range")
	ErrDisjoint   = errors.New("nodes do not share an ancestor")
)

// Node is one vertex of a dated tree. Time is an age: it decreases from the
// root toward the present (age 0). Dist is the branch length of the edge
// above the node; before rate heterogeneity it equals parent time minus node
// time, except below an HGT target where it is measured from the donor's
// event time.
type Node struct {
	ID          int                  `json:"id"`
	Kind        model.EventKind      `json:"kind"`
	Label       string               `json:"label,omitempty"`
	Time        float64              `json:"time"`
	Dist        float64              `json:"dist"`
	Rec         model.Reconciliation `json:"rec"`
	Transferred bool                 `json:"transferred,omitempty"`
	Parent      int                  `json:"parent"`
	Children    []int                `json:"children,omitempty"`
}

// Tree is an arena of nodes. Root is -1 for the empty tree. Planted marks a
// root with a single child whose edge represents time before the first
// speciation.
type Tree struct {
	Nodes   []Node `json:"nodes"`
	Root    int    `json:"root"`
	Planted bool   `json:"planted"`
}

// New returns a tree containing only the given root node.
func New(root Node) *Tree {
	root.ID = 0
	root.Parent = -1
	root.Children = nil
	return &Tree{Nodes: []Node{root}, Root: 0}
}

// Empty returns the zero-node tree.
func Empty() *Tree {
	return &Tree{Root: -1}
}

func (t *Tree) Len() int { return len(t.Nodes) }

// Node returns a pointer into the arena; the handle must be valid.
func (t *Tree) Node(i int) *Node { return &t.Nodes[i] }

func (t *Tree) valid(i int) bool { return i >= 0 && i < len(t.Nodes) }

// Add appends n as a child of parent and returns the new handle.
func (t *Tree) Add(parent int, n Node) int {
	id := len(t.Nodes)
	n.ID = id
	n.Parent = parent
	n.Children = nil
	t.Nodes = append(t.Nodes, n)
	if t.valid(parent) {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, id)
	}
	return id
}

// Preorder returns node handles root-first, children in insertion order.
func (t *Tree) Preorder() []int {
	if t.Root < 0 {
		return nil
	}
	order := make([]int, 0, len(t.Nodes))
	stack := []int{t.Root}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, v)
		ch := t.Nodes[v].Children
		for i := len(ch) - 1; i >= 0; i-- {
			stack = append(stack, ch[i])
		}
	}
	return order
}

// Postorder returns node handles children-first.
func (t *Tree) Postorder() []int {
	pre := t.Preorder()
	for i, j := 0, len(pre)-1; i < j; i, j = i+1, j-1 {
		pre[i], pre[j] = pre[j], pre[i]
	}
	return pre
}

// Leaves returns all childless node handles in preorder.
func (t *Tree) Leaves() []int {
	var leaves []int
	for _, v := range t.Preorder() {
		if len(t.Nodes[v].Children) == 0 {
			leaves = append(leaves, v)
		}
	}
	return leaves
}

// ExtantLeaves returns the surviving tips.
func (t *Tree) ExtantLeaves() []int {
	var leaves []int
	for _, v := range t.Preorder() {
		if len(t.Nodes[v].Children) == 0 && t.Nodes[v].Kind == model.EventExtant {
			leaves = append(leaves, v)
		}
	}
	return leaves
}

// LCA answers a least-common-ancestor query: the shared ancestor handle and
// its time stamp. It climbs parent pointers, so it stays correct while the
// tree is being mutated.
func (t *Tree) LCA(a, b int) (int, float64, error) {
	if !t.valid(a) || !t.valid(b) {
		return -1, 0, fmt.Errorf("%w: (%d, %d)", ErrNoSuchNode, a, b)
	}
	seen := make(map[int]bool)
	for v := a; v >= 0; v = t.Nodes[v].Parent {
		seen[v] = true
	}
	for v := b; v >= 0; v = t.Nodes[v].Parent {
		if seen[v] {
			return v, t.Nodes[v].Time, nil
		}
	}
	return -1, 0, ErrDisjoint
}

// PathLength sums branch lengths along the path between two nodes.
func (t *Tree) PathLength(a, b int) (float64, error) {
	anc, _, err := t.LCA(a, b)
	if err != nil {
		return 0, err
	}
	var d float64
	for v := a; v != anc; v = t.Nodes[v].Parent {
		d += t.Nodes[v].Dist
	}
	for v := b; v != anc; v = t.Nodes[v].Parent {
		d += t.Nodes[v].Dist
	}
	return d, nil
}

// Clone deep-copies the arena. Mutating APIs in this module follow a
// copy-then-mutate discipline built on Clone: callers get a fresh handle and
// the original is never touched.
func (t *Tree) Clone() *Tree {
	nodes := make([]Node, len(t.Nodes))
	copy(nodes, t.Nodes)
	for i := range nodes {
		if len(nodes[i].Children) > 0 {
			ch := make([]int, len(nodes[i].Children))
			copy(ch, nodes[i].Children)
			nodes[i].Children = ch
		}
	}
	return &Tree{Nodes: nodes, Root: t.Root, Planted: t.Planted}
}

// CountKind returns the number of nodes with the given event kind.
func (t *Tree) CountKind(kind model.EventKind) int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].Kind == kind {
			n++
		}
	}
	return n
}

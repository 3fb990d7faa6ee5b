package tree

import "paralogos/internal/model"

// Prune derives the observable tree: subtrees without a single extant leaf
// are removed, unary pass-through nodes are suppressed (their branch lengths
// accumulate onto the child edge), and the planted root is dropped. The
// input tree is left untouched; pruning is idempotent and a zero-leaf result
// is legal.
func Prune(t *Tree) *Tree {
	if t.Root < 0 {
		return Empty()
	}

	keep := make([]bool, len(t.Nodes))
	for _, v := range t.Postorder() {
		n := &t.Nodes[v]
		if len(n.Children) == 0 {
			keep[v] = n.Kind == model.EventExtant
			continue
		}
		for _, c := range n.Children {
			if keep[c] {
				keep[v] = true
				break
			}
		}
	}
	if !keep[t.Root] {
		return Empty()
	}

	// Walk down from the root through kept nodes, collapsing unary chains.
	start, _, _ := resolve(t, keep, t.Root)
	out := New(observableNode(t, start, 0, false))
	var attach func(oldParent, newParent int)
	attach = func(oldParent, newParent int) {
		for _, c := range t.Nodes[oldParent].Children {
			if !keep[c] {
				continue
			}
			end, dist, transferred := resolve(t, keep, c)
			id := out.Add(newParent, observableNode(t, end, dist, transferred))
			attach(end, id)
		}
	}
	attach(start, 0)
	return out
}

// resolve follows v through kept unary descendants until it reaches a node
// with zero or at least two kept children, accumulating branch length and
// the transferred flag along the way.
func resolve(t *Tree, keep []bool, v int) (end int, dist float64, transferred bool) {
	dist = t.Nodes[v].Dist
	transferred = t.Nodes[v].Transferred
	for {
		var kept []int
		for _, c := range t.Nodes[v].Children {
			if keep[c] {
				kept = append(kept, c)
			}
		}
		if len(kept) != 1 {
			return v, dist, transferred
		}
		v = kept[0]
		dist += t.Nodes[v].Dist
		transferred = transferred || t.Nodes[v].Transferred
	}
}

func observableNode(t *Tree, v int, dist float64, transferred bool) Node {
	n := t.Nodes[v]
	return Node{
		Kind:        n.Kind,
		Label:       n.Label,
		Time:        n.Time,
		Dist:        dist,
		Rec:         n.Rec,
		Transferred: transferred || n.Transferred,
	}
}

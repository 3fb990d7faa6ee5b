package tree

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"paralogos/internal/model"
)

// buildSample returns a planted tree:
//
//	root(t=2) - s(t=2, speciation)
//	  s -> a(extant, t=0), d(duplication, t=1)
//	  d -> b(extant, t=0), l(loss, t=0.5)
func buildSample() (*Tree, map[string]int) {
	t := New(Node{Kind: model.EventSpeciation, Time: 2})
	t.Planted = true
	ids := map[string]int{"root": 0}
	ids["s"] = t.Add(ids["root"], Node{Kind: model.EventSpeciation, Time: 2, Dist: 0})
	ids["a"] = t.Add(ids["s"], Node{Kind: model.EventExtant, Label: "A", Time: 0, Dist: 2})
	ids["d"] = t.Add(ids["s"], Node{Kind: model.EventDuplication, Time: 1, Dist: 1})
	ids["b"] = t.Add(ids["d"], Node{Kind: model.EventExtant, Label: "B", Time: 0, Dist: 1})
	ids["l"] = t.Add(ids["d"], Node{Kind: model.EventLoss, Time: 0.5, Dist: 0.5})
	return t, ids
}

func TestTraversals(t *testing.T) {
	tr, ids := buildSample()
	pre := tr.Preorder()
	want := []int{ids["root"], ids["s"], ids["a"], ids["d"], ids["b"], ids["l"]}
	if !reflect.DeepEqual(pre, want) {
		t.Fatalf("preorder = %v, want %v", pre, want)
	}
	leaves := tr.Leaves()
	if !reflect.DeepEqual(leaves, []int{ids["a"], ids["b"], ids["l"]}) {
		t.Fatalf("leaves = %v", leaves)
	}
	if got := tr.ExtantLeaves(); !reflect.DeepEqual(got, []int{ids["a"], ids["b"]}) {
		t.Fatalf("extant leaves = %v", got)
	}
}

func TestLCA(t *testing.T) {
	tr, ids := buildSample()
	anc, tm, err := tr.LCA(ids["a"], ids["b"])
	if err != nil {
		t.Fatalf("lca: %v", err)
	}
	if anc != ids["s"] || tm != 2 {
		t.Fatalf("lca(a,b) = (%d, %g), want (%d, 2)", anc, tm, ids["s"])
	}
	anc, tm, err = tr.LCA(ids["b"], ids["l"])
	if err != nil {
		t.Fatalf("lca: %v", err)
	}
	if anc != ids["d"] || tm != 1 {
		t.Fatalf("lca(b,l) = (%d, %g), want (%d, 1)", anc, tm, ids["d"])
	}
	if _, _, err := tr.LCA(0, 99); !errors.Is(err, ErrNoSuchNode) {
		t.Fatalf("expected ErrNoSuchNode, got %v", err)
	}
}

func TestPathLength(t *testing.T) {
	tr, ids := buildSample()
	d, err := tr.PathLength(ids["a"], ids["b"])
	if err != nil {
		t.Fatalf("path length: %v", err)
	}
	if math.Abs(d-4) > 1e-12 {
		t.Fatalf("path a-b = %g, want 4", d)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tr, ids := buildSample()
	cp := tr.Clone()
	cp.Node(ids["a"]).Dist = 99
	cp.Node(ids["s"]).Children[0] = 0
	if tr.Node(ids["a"]).Dist != 2 {
		t.Fatal("clone shares node storage with original")
	}
	if tr.Node(ids["s"]).Children[0] != ids["a"] {
		t.Fatal("clone shares children slices with original")
	}
}

func TestPruneRemovesLossesAndUnplants(t *testing.T) {
	tr, _ := buildSample()
	obs := Prune(tr)

	// Planted root dropped, loss leaf gone, duplication suppressed to unary? No:
	// d keeps one extant child, so d collapses into b's edge.
	if got := len(obs.Nodes); got != 3 {
		t.Fatalf("observable tree has %d nodes, want 3", got)
	}
	root := obs.Node(obs.Root)
	if root.Kind != model.EventSpeciation || root.Dist != 0 {
		t.Fatalf("observable root = %+v", root)
	}
	leaves := obs.ExtantLeaves()
	if len(leaves) != 2 {
		t.Fatalf("observable leaves = %v", leaves)
	}
	// b's edge absorbed the suppressed duplication edge: 1 + 1.
	var bDist float64
	for _, v := range leaves {
		if obs.Node(v).Label == "B" {
			bDist = obs.Node(v).Dist
		}
	}
	if math.Abs(bDist-2) > 1e-12 {
		t.Fatalf("suppressed edge length = %g, want 2", bDist)
	}
	if tr.Len() != 6 {
		t.Fatal("prune mutated its input")
	}
}

func TestPruneIdempotent(t *testing.T) {
	tr, _ := buildSample()
	once := Prune(tr)
	twice := Prune(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("pruning is not idempotent:\nonce=%+v\ntwice=%+v", once, twice)
	}
}

func TestPruneAllLost(t *testing.T) {
	tr := New(Node{Kind: model.EventSpeciation, Time: 1})
	tr.Add(0, Node{Kind: model.EventLoss, Time: 0.5, Dist: 0.5})
	obs := Prune(tr)
	if obs.Root != -1 || obs.Len() != 0 {
		t.Fatalf("expected empty observable tree, got %+v", obs)
	}
	if again := Prune(obs); again.Len() != 0 {
		t.Fatal("pruning the empty tree is not stable")
	}
}

func TestPrunePropagatesTransferredFlag(t *testing.T) {
	tr := New(Node{Kind: model.EventSpeciation, Time: 2})
	h := tr.Add(0, Node{Kind: model.EventHgtOrigin, Time: 1, Dist: 1})
	tr.Add(h, Node{Kind: model.EventExtant, Label: "stay", Time: 0, Dist: 1})
	tgt := tr.Add(h, Node{Kind: model.EventHgtTarget, Time: 1, Dist: 0, Transferred: true})
	tr.Add(tgt, Node{Kind: model.EventExtant, Label: "moved", Time: 0, Dist: 1})

	obs := Prune(tr)
	var moved *Node
	for i := range obs.Nodes {
		if obs.Nodes[i].Label == "moved" {
			moved = &obs.Nodes[i]
		}
	}
	if moved == nil || !moved.Transferred {
		t.Fatalf("transferred flag lost in pruning: %+v", moved)
	}
}

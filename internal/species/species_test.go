package species

import (
	"errors"
	"reflect"
	"testing"

	"golang.org/x/exp/rand"

	"paralogos/internal/tree"
)

// twoLeafRecords is the minimal dated species tree: one speciation at age 1,
// two extant species.
func twoLeafRecords() []Record {
	return []Record{
		{Label: "S1", Parent: -1, Age: 1},
		{Label: "A", Parent: 0, Age: 0},
		{Label: "B", Parent: 0, Age: 0},
	}
}

// caterpillarRecords: ((A,B)S2,C)S1 with speciations at ages 2 and 1.
func caterpillarRecords() []Record {
	return []Record{
		{Label: "S1", Parent: -1, Age: 2},
		{Label: "S2", Parent: 0, Age: 1},
		{Label: "C", Parent: 0, Age: 0},
		{Label: "A", Parent: 1, Age: 0},
		{Label: "B", Parent: 1, Age: 0},
	}
}

func mustView(t *testing.T, recs []Record) *View {
	t.Helper()
	st, err := FromRecords(recs)
	if err != nil {
		t.Fatalf("build species tree: %v", err)
	}
	v, err := NewView(st)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	return v
}

func TestFromRecordsPlants(t *testing.T) {
	v := mustView(t, twoLeafRecords())
	st := v.Tree()
	if !st.Planted {
		t.Fatal("tree not planted")
	}
	if got := len(st.Node(st.Root).Children); got != 1 {
		t.Fatalf("planted root has %d children", got)
	}
	if v.OriginTime() != 1 {
		t.Fatalf("origin time = %g, want 1", v.OriginTime())
	}
	if got := len(v.Speciations()); got != 1 {
		t.Fatalf("speciation count = %d, want 1", got)
	}
}

func TestSpeciationOrder(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	order := v.Speciations()
	if len(order) != 2 {
		t.Fatalf("speciation count = %d, want 2", len(order))
	}
	if v.Time(order[0]) != 2 || v.Time(order[1]) != 1 {
		t.Fatalf("speciations not ordered oldest first: %g then %g",
			v.Time(order[0]), v.Time(order[1]))
	}
}

func TestBranchesAt(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	// At age 1.5 the alive branches are S2's stem and C's stem.
	branches := v.BranchesAt(1.5)
	var labels []string
	for _, b := range branches {
		labels = append(labels, v.Label(b))
	}
	if !reflect.DeepEqual(labels, []string{"S2", "C"}) {
		t.Fatalf("branches at 1.5 = %v", labels)
	}
	// At age 0.5 three leaf branches are alive.
	if got := len(v.BranchesAt(0.5)); got != 3 {
		t.Fatalf("branches at 0.5 = %d, want 3", got)
	}
}

func TestLCATime(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	var a, c int
	for _, h := range v.Tree().Preorder() {
		switch v.Label(h) {
		case "A":
			a = h
		case "C":
			c = h
		}
	}
	tm, err := v.LCATime(a, c)
	if err != nil {
		t.Fatalf("lca: %v", err)
	}
	if tm != 2 {
		t.Fatalf("lca(A, C) age = %g, want 2", tm)
	}
}

func TestViewValidation(t *testing.T) {
	// Leaf not at age zero.
	if _, err := FromRecords([]Record{
		{Parent: -1, Age: 1}, {Parent: 0, Age: 0.5}, {Parent: 0, Age: 0},
	}); err != nil {
		t.Fatalf("construction should succeed, validation happens in NewView: %v", err)
	}
	st, _ := FromRecords([]Record{
		{Parent: -1, Age: 1}, {Parent: 0, Age: 0.5}, {Parent: 0, Age: 0},
	})
	if _, err := NewView(st); !errors.Is(err, ErrLeafAge) {
		t.Fatalf("expected ErrLeafAge, got %v", err)
	}

	// Unplanted tree.
	bare := tree.New(tree.Node{Time: 1})
	bare.Add(0, tree.Node{Time: 0})
	bare.Add(0, tree.Node{Time: 0})
	if _, err := NewView(bare); !errors.Is(err, ErrNotPlanted) {
		t.Fatalf("expected ErrNotPlanted, got %v", err)
	}

	// Child older than parent.
	if _, err := FromRecords([]Record{
		{Parent: -1, Age: 1}, {Parent: 0, Age: 2}, {Parent: 0, Age: 0},
	}); err == nil {
		st2, _ := FromRecords([]Record{
			{Parent: -1, Age: 1}, {Parent: 0, Age: 2}, {Parent: 0, Age: 0},
		})
		if _, err2 := NewView(st2); !errors.Is(err2, ErrBadTimes) {
			t.Fatalf("expected ErrBadTimes, got %v", err2)
		}
	}
}

func TestContractEdgesExclusiveParams(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	rng := rand.New(rand.NewSource(1))
	if _, err := ContractEdges(v.Tree(), 0.5, 0.5, rng); !errors.Is(err, ErrContractionConfig) {
		t.Fatalf("expected ErrContractionConfig, got %v", err)
	}
}

func TestContractEdgesProportion(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	rng := rand.New(rand.NewSource(1))
	// The only eligible inner edge is the one above S2; contracting it gives
	// a polytomy (A, B, C) under S1.
	out, err := ContractEdges(v.Tree(), 0, 1, rng)
	if err != nil {
		t.Fatalf("contract: %v", err)
	}
	first := out.Node(out.Node(out.Root).Children[0])
	if got := len(first.Children); got != 3 {
		t.Fatalf("expected polytomy of 3, got %d children", got)
	}
	for _, c := range first.Children {
		if out.Node(c).Dist != first.Time-out.Node(c).Time {
			t.Fatalf("hoisted child dist not recomputed: %+v", out.Node(c))
		}
	}
	// Original untouched.
	if len(v.Tree().Nodes) != 6 {
		t.Fatal("contraction mutated its input")
	}
}

func TestContractEdgesZeroIsIdentity(t *testing.T) {
	v := mustView(t, caterpillarRecords())
	rng := rand.New(rand.NewSource(1))
	out, err := ContractEdges(v.Tree(), 0, 0, rng)
	if err != nil {
		t.Fatalf("contract: %v", err)
	}
	if !reflect.DeepEqual(out.Nodes, v.Tree().Nodes) {
		t.Fatalf("zero contraction altered the tree")
	}
}

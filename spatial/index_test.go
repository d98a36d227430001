package spatial

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/jakecoffman/cp"
)

type item struct {
	name string
	bb   cp.BB
}

func itemBounds(it *item) cp.BB { return it.bb }

func square(name string, x, y, size float64) *item {
	return &item{name: name, bb: cp.BB{L: x, B: y, R: x + size, T: y + size}}
}

func names(items []*item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.name)
	}
	sort.Strings(out)
	return out
}

func contains(items []*item, want *item) bool {
	for _, it := range items {
		if it == want {
			return true
		}
	}
	return false
}

var worldBB = cp.BB{L: 0, B: 0, R: 1000, T: 1000}

func allKinds(t *testing.T) map[Kind]Index[*item] {
	t.Helper()
	out := map[Kind]Index[*item]{}
	for _, k := range []Kind{KindQuadTree, KindDynamicTree, KindSweepAndPrune} {
		idx, err := New[*item](k, itemBounds, Options{Bounds: worldBB, Margin: 0.1})
		if err != nil {
			t.Fatalf("New(%s): %v", k, err)
		}
		out[k] = idx
	}
	return out
}

func TestRetrieveFindsOverlaps(t *testing.T) {
	a := square("a", 10, 10, 20)
	b := square("b", 25, 25, 20)
	c := square("c", 600, 600, 20)
	d := square("d", 15, 15, 5)

	for kind, idx := range allKinds(t) {
		t.Run(kind.String(), func(t *testing.T) {
			for _, it := range []*item{a, b, c, d} {
				idx.Insert(it)
			}
			got := idx.Retrieve(a)
			if !contains(got, b) || !contains(got, d) {
				t.Fatalf("expected b and d near a, got %v", names(got))
			}
			if contains(got, a) {
				t.Fatalf("query object must not be returned")
			}
			if idx.Stats().NodeCount != 4 {
				t.Fatalf("expected 4 stored objects, got %d", idx.Stats().NodeCount)
			}
			idx.Clear()
			if len(idx.Retrieve(a)) != 0 || idx.Stats().NodeCount != 0 {
				t.Fatalf("clear should empty the index")
			}
		})
	}
}

func TestRetrieveIsSupersetOfExactOverlaps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := make([]*item, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, square(fmt.Sprint(i), rng.Float64()*900+20, rng.Float64()*900+20, rng.Float64()*20+1))
	}
	// the quad tree is an approximate partition; only exact indexes are checked here
	for _, kind := range []Kind{KindDynamicTree, KindSweepAndPrune} {
		t.Run(kind.String(), func(t *testing.T) {
			idx, err := New[*item](kind, itemBounds, Options{Bounds: worldBB})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for _, it := range items {
				idx.Insert(it)
			}
			for _, q := range items {
				got := idx.Retrieve(q)
				for _, other := range items {
					if other != q && other.bb.Intersects(q.bb) && !contains(got, other) {
						t.Fatalf("%s missed overlap %s/%s", kind, q.name, other.name)
					}
				}
			}
		})
	}
}

func TestQuadTreeSplitAndStraddle(t *testing.T) {
	q := NewQuadTree[*item](worldBB, itemBounds)
	var first *item
	for i := 0; i <= QuadMaxObjects; i++ {
		it := square(fmt.Sprint(i), 10+float64(i)*5, 10, 2)
		if first == nil {
			first = it
		}
		q.Insert(it)
	}
	if q.root.children == nil {
		t.Fatalf("expected root to split after %d objects", QuadMaxObjects+1)
	}
	if len(q.root.objects) != 0 {
		t.Fatalf("all objects fit a quadrant, root kept %d", len(q.root.objects))
	}

	straddler := square("straddle", 490, 490, 20)
	q.Insert(straddler)
	if len(q.root.objects) != 1 {
		t.Fatalf("straddling object should stay at root")
	}

	far := square("far", 900, 900, 2)
	q.Insert(far)
	if got := q.Retrieve(far); !contains(got, straddler) {
		t.Fatalf("ancestor objects must be returned for every query")
	}
	if got := q.Retrieve(far); contains(got, first) {
		t.Fatalf("retrieve should not descend into unrelated quadrants")
	}

	s := q.Stats()
	if s.Kind != KindQuadTree || s.NodeCount != QuadMaxObjects+3 || s.InternalNodes < 1 || s.Height < 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestQuadTreeDepthIsBounded(t *testing.T) {
	q := NewQuadTree[*item](worldBB, itemBounds)
	for i := 0; i < 200; i++ {
		q.Insert(square(fmt.Sprint(i), 1+float64(i%10)*0.01, 1, 0.001))
	}
	if h := q.Stats().Height; h > QuadMaxLevels {
		t.Fatalf("height %d exceeds max levels %d", h, QuadMaxLevels)
	}
}

func validateTree(t *testing.T, tree *DynamicTree[*item], id int) int {
	t.Helper()
	n := tree.nodes[id]
	if n.isLeaf() {
		if n.height != 0 {
			t.Fatalf("leaf %d has height %d", id, n.height)
		}
		return 0
	}
	c1, c2 := tree.nodes[n.child1], tree.nodes[n.child2]
	if c1.parent != id || c2.parent != id {
		t.Fatalf("node %d children have wrong parent", id)
	}
	if n.bb != c1.bb.Merge(c2.bb) {
		t.Fatalf("node %d bounds are not the union of its children", id)
	}
	h1 := validateTree(t, tree, n.child1)
	h2 := validateTree(t, tree, n.child2)
	if n.height != 1+max(h1, h2) {
		t.Fatalf("node %d height %d, want %d", id, n.height, 1+max(h1, h2))
	}
	return n.height
}

func TestDynamicTreeStructure(t *testing.T) {
	tree := NewDynamicTree[*item](itemBounds, 0.1)
	items := make([]*item, 0, 64)
	for i := 0; i < 64; i++ {
		it := square(fmt.Sprint(i), float64(i)*10, 0, 5)
		items = append(items, it)
		tree.Insert(it)
		validateTree(t, tree, tree.root)
	}
	s := tree.Stats()
	if s.NodeCount != len(items) {
		t.Fatalf("NodeCount = %d, want %d", s.NodeCount, len(items))
	}
	if s.InternalNodes != len(items)-1 {
		t.Fatalf("expected %d internal nodes, got %d", len(items)-1, s.InternalNodes)
	}
	// rotations keep 64 leaves far from a 63-deep chain
	if s.Height > 20 {
		t.Fatalf("tree too tall: %d", s.Height)
	}

	for i, it := range items {
		if i%2 == 0 {
			if !tree.Remove(it) {
				t.Fatalf("remove %s failed", it.name)
			}
		}
	}
	validateTree(t, tree, tree.root)
	if tree.Stats().NodeCount != len(items)/2 {
		t.Fatalf("expected %d leaves after removal", len(items)/2)
	}
	if tree.Remove(items[0]) {
		t.Fatalf("second remove should report false")
	}
}

func TestDynamicTreeFatMarginAvoidsRefit(t *testing.T) {
	tree := NewDynamicTree[*item](itemBounds, 1)
	a := square("a", 0, 0, 10)
	tree.Insert(a)
	leaf := tree.leaves[a]
	before := tree.nodes[leaf].bb

	a.bb = cp.BB{L: 0.5, B: 0.5, R: 10.5, T: 10.5}
	tree.Update(a)
	if tree.nodes[leaf].bb != before {
		t.Fatalf("small motion should not refit the leaf")
	}

	a.bb = cp.BB{L: 50, B: 50, R: 60, T: 60}
	tree.Update(a)
	if got := tree.nodes[tree.leaves[a]].bb; got.L != 49 || got.R != 61 {
		t.Fatalf("large motion should refit with margin, got %+v", got)
	}
}

func TestSweepAndPruneIncrementalUpdate(t *testing.T) {
	sap := NewSweepAndPrune[*item](itemBounds)
	a := square("a", 0, 0, 10)
	b := square("b", 100, 0, 10)
	c := square("c", 200, 0, 10)
	for _, it := range []*item{a, b, c} {
		sap.Insert(it)
	}

	a.bb = cp.BB{L: 195, B: 0, R: 205, T: 10}
	sap.Update(a)
	if !sap.Sorted() {
		t.Fatalf("entries not sorted after update")
	}
	if got := sap.Retrieve(c); !contains(got, a) || contains(got, b) {
		t.Fatalf("expected only a near c, got %v", names(got))
	}

	if !sap.Remove(b) || sap.Stats().NodeCount != 2 {
		t.Fatalf("remove failed")
	}
	if !sap.Sorted() {
		t.Fatalf("entries not sorted after remove")
	}
	if got := sap.Retrieve(a); len(got) != 1 || got[0] != c {
		t.Fatalf("expected c after removal, got %v", names(got))
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"quadtree", KindQuadTree, false},
		{"DynamicTree", KindDynamicTree, false},
		{"sap", KindSweepAndPrune, false},
		{"octree", 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := ParseKind(c.in)
			if c.wantErr {
				if !errors.Is(err, ErrUnknownKind) {
					t.Fatalf("expected ErrUnknownKind, got %v", err)
				}
				return
			}
			if err != nil || got != c.want {
				t.Fatalf("ParseKind(%q) = %v, %v", c.in, got, err)
			}
			if round, _ := ParseKind(got.String()); round != got {
				t.Fatalf("String/ParseKind round trip failed for %v", got)
			}
		})
	}
	if _, err := New[*item](Kind(42), itemBounds, Options{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind from New, got %v", err)
	}
}

package spatial

import "github.com/jakecoffman/cp"

const nullNode = -1

// DefaultMargin is how far DynamicTree leaves are fattened.
const DefaultMargin = 0.1

type treeNode[T comparable] struct {
	bb     cp.BB
	obj    T
	parent int
	child1 int
	child2 int
	// leaf = 0, free = -1
	height int
	next   int
}

func (n *treeNode[T]) isLeaf() bool {
	return n.child1 == nullNode
}

// DynamicTree is a self-balancing binary AABB tree. Nodes live in an arena
// addressed by index; rotations rewrite indices, never pointers. Each leaf
// stores its object's bounds fattened by a margin so that small motions do
// not require reinsertion.
type DynamicTree[T comparable] struct {
	nodes  []treeNode[T]
	root   int
	free   int
	leaves map[T]int
	bounds BoundsFunc[T]
	margin float64
}

func NewDynamicTree[T comparable](bounds BoundsFunc[T], margin float64) *DynamicTree[T] {
	if margin <= 0 {
		margin = DefaultMargin
	}
	return &DynamicTree[T]{
		root:   nullNode,
		free:   nullNode,
		leaves: make(map[T]int),
		bounds: bounds,
		margin: margin,
	}
}

func (t *DynamicTree[T]) Clear() {
	clear(t.nodes)
	t.nodes = t.nodes[:0]
	t.root = nullNode
	t.free = nullNode
	clear(t.leaves)
}

// Insert adds obj, or refits it when it is already present.
func (t *DynamicTree[T]) Insert(obj T) {
	if _, ok := t.leaves[obj]; ok {
		t.Update(obj)
		return
	}
	leaf := t.allocate()
	t.nodes[leaf].obj = obj
	t.nodes[leaf].bb = t.fatten(t.bounds(obj))
	t.nodes[leaf].height = 0
	t.leaves[obj] = leaf
	t.insertLeaf(leaf)
}

// Remove deletes obj and reports whether it was present.
func (t *DynamicTree[T]) Remove(obj T) bool {
	leaf, ok := t.leaves[obj]
	if !ok {
		return false
	}
	delete(t.leaves, obj)
	t.removeLeaf(leaf)
	t.release(leaf)
	return true
}

// Update reinserts obj only when its bounds escaped the fattened leaf.
func (t *DynamicTree[T]) Update(obj T) {
	leaf, ok := t.leaves[obj]
	if !ok {
		t.Insert(obj)
		return
	}
	tight := t.bounds(obj)
	if t.nodes[leaf].bb.Contains(tight) {
		return
	}
	t.removeLeaf(leaf)
	t.nodes[leaf].bb = t.fatten(tight)
	t.insertLeaf(leaf)
}

// Retrieve returns every stored object whose fat bounds overlap obj's bounds.
func (t *DynamicTree[T]) Retrieve(obj T) []T {
	if t.root == nullNode {
		return nil
	}
	query := t.bounds(obj)
	var out []T
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		if !n.bb.Intersects(query) {
			continue
		}
		if n.isLeaf() {
			if n.obj != obj {
				out = append(out, n.obj)
			}
			continue
		}
		stack = append(stack, n.child1, n.child2)
	}
	return out
}

func (t *DynamicTree[T]) Stats() Stats {
	s := Stats{Kind: KindDynamicTree, NodeCount: len(t.leaves)}
	if t.root != nullNode {
		s.Height = t.nodes[t.root].height
	}
	for i := range t.nodes {
		if t.nodes[i].height > 0 {
			s.InternalNodes++
		}
	}
	return s
}

// Walk visits every live node depth first with its tree height.
func (t *DynamicTree[T]) Walk(fn func(bb cp.BB, height int, leaf bool)) {
	if t.root == nullNode {
		return
	}
	stack := []int{t.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[id]
		fn(n.bb, n.height, n.isLeaf())
		if !n.isLeaf() {
			stack = append(stack, n.child1, n.child2)
		}
	}
}

func (t *DynamicTree[T]) fatten(bb cp.BB) cp.BB {
	return cp.BB{L: bb.L - t.margin, B: bb.B - t.margin, R: bb.R + t.margin, T: bb.T + t.margin}
}

func (t *DynamicTree[T]) allocate() int {
	if t.free != nullNode {
		id := t.free
		t.free = t.nodes[id].next
		t.nodes[id] = treeNode[T]{parent: nullNode, child1: nullNode, child2: nullNode, next: nullNode}
		return id
	}
	t.nodes = append(t.nodes, treeNode[T]{parent: nullNode, child1: nullNode, child2: nullNode, next: nullNode})
	return len(t.nodes) - 1
}

func (t *DynamicTree[T]) release(id int) {
	t.nodes[id] = treeNode[T]{parent: nullNode, child1: nullNode, child2: nullNode, height: -1, next: t.free}
	t.free = id
}

// descendCost is the extra cost of pushing leafBB into the subtree at child.
func (t *DynamicTree[T]) descendCost(child int, leafBB cp.BB, inheritance float64) float64 {
	merged := leafBB.Merge(t.nodes[child].bb).Area()
	if t.nodes[child].isLeaf() {
		return merged + inheritance
	}
	return merged - t.nodes[child].bb.Area() + inheritance
}

func (t *DynamicTree[T]) insertLeaf(leaf int) {
	if t.root == nullNode {
		t.root = leaf
		t.nodes[leaf].parent = nullNode
		return
	}

	leafBB := t.nodes[leaf].bb
	index := t.root
	for !t.nodes[index].isLeaf() {
		child1 := t.nodes[index].child1
		child2 := t.nodes[index].child2

		area := t.nodes[index].bb.Area()
		combined := t.nodes[index].bb.Merge(leafBB).Area()

		// cost of making a new parent for this node and the leaf
		cost := 2 * combined
		// minimum cost of pushing the leaf further down
		inheritance := 2 * (combined - area)

		cost1 := t.descendCost(child1, leafBB, inheritance)
		cost2 := t.descendCost(child2, leafBB, inheritance)

		if cost < cost1 && cost < cost2 {
			break
		}
		if cost1 < cost2 {
			index = child1
		} else {
			index = child2
		}
	}

	sibling := index
	oldParent := t.nodes[sibling].parent
	newParent := t.allocate()
	t.nodes[newParent].parent = oldParent
	t.nodes[newParent].bb = leafBB.Merge(t.nodes[sibling].bb)
	t.nodes[newParent].height = t.nodes[sibling].height + 1
	t.nodes[newParent].child1 = sibling
	t.nodes[newParent].child2 = leaf
	t.nodes[sibling].parent = newParent
	t.nodes[leaf].parent = newParent

	if oldParent != nullNode {
		if t.nodes[oldParent].child1 == sibling {
			t.nodes[oldParent].child1 = newParent
		} else {
			t.nodes[oldParent].child2 = newParent
		}
	} else {
		t.root = newParent
	}

	t.refitFrom(t.nodes[leaf].parent)
}

func (t *DynamicTree[T]) removeLeaf(leaf int) {
	if leaf == t.root {
		t.root = nullNode
		return
	}

	parent := t.nodes[leaf].parent
	grand := t.nodes[parent].parent
	sibling := t.nodes[parent].child1
	if sibling == leaf {
		sibling = t.nodes[parent].child2
	}

	if grand == nullNode {
		t.root = sibling
		t.nodes[sibling].parent = nullNode
		t.release(parent)
		return
	}

	if t.nodes[grand].child1 == parent {
		t.nodes[grand].child1 = sibling
	} else {
		t.nodes[grand].child2 = sibling
	}
	t.nodes[sibling].parent = grand
	t.release(parent)
	t.refitFrom(grand)
}

// refitFrom walks to the root rebalancing and recomputing heights and bounds.
func (t *DynamicTree[T]) refitFrom(index int) {
	for index != nullNode {
		index = t.balance(index)
		n := &t.nodes[index]
		c1, c2 := &t.nodes[n.child1], &t.nodes[n.child2]
		n.height = 1 + max(c1.height, c2.height)
		n.bb = c1.bb.Merge(c2.bb)
		index = n.parent
	}
}

// balance performs a single left or right rotation when the subtree at a
// is unbalanced by more than one level, returning the new subtree root.
func (t *DynamicTree[T]) balance(ia int) int {
	a := &t.nodes[ia]
	if a.isLeaf() || a.height < 2 {
		return ia
	}

	ib, ic := a.child1, a.child2
	b, c := &t.nodes[ib], &t.nodes[ic]
	diff := c.height - b.height

	if diff > 1 {
		return t.rotateUp(ia, ic, ib, false)
	}
	if diff < -1 {
		return t.rotateUp(ia, ib, ic, true)
	}
	return ia
}

// rotateUp lifts child iu above ia. keep is ia's other child. When left is
// true iu was ia's child1, otherwise child2.
func (t *DynamicTree[T]) rotateUp(ia, iu, keep int, left bool) int {
	a := &t.nodes[ia]
	u := &t.nodes[iu]
	iF, iG := u.child1, u.child2
	f, g := &t.nodes[iF], &t.nodes[iG]

	u.child1 = ia
	u.parent = a.parent
	a.parent = iu

	if u.parent != nullNode {
		p := &t.nodes[u.parent]
		if p.child1 == ia {
			p.child1 = iu
		} else {
			p.child2 = iu
		}
	} else {
		t.root = iu
	}

	// the taller grandchild stays under u, the shorter one moves to a
	tall, short := iF, iG
	if f.height <= g.height {
		tall, short = iG, iF
	}
	u.child2 = tall
	if left {
		a.child1 = short
	} else {
		a.child2 = short
	}
	t.nodes[short].parent = ia

	k := &t.nodes[keep]
	s := &t.nodes[short]
	a.bb = k.bb.Merge(s.bb)
	a.height = 1 + max(k.height, s.height)
	tl := &t.nodes[tall]
	u.bb = a.bb.Merge(tl.bb)
	u.height = 1 + max(a.height, tl.height)
	return iu
}

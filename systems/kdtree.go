// Package systems provides the spatial and navigation subsystems of the
// simulation: the k-d tree spatial index, the walkability grid with A*
// search, and path following.
package systems

import (
	"math"
	"sort"

	"github.com/mlange-42/ark/ecs"
)

// Item is a positioned entity snapshot stored in the spatial index.
type Item struct {
	E    ecs.Entity
	X, Y float32
}

// Neighbor holds a radius query result with precomputed spatial data.
// This avoids recomputing deltas and distances in AI leaves.
type Neighbor struct {
	E      ecs.Entity
	DX, DY float32 // Delta from query origin
	DistSq float32 // Squared distance (avoid sqrt in hot path)
}

type kdNode struct {
	item        Item
	left, right int32 // Index into nodes; -1 = none
}

// KDTree answers nearest/radius queries over a snapshot of positioned
// entities. Rebuild produces a balanced tree in O(n log n); Insert adds
// a point without rebalancing, so a periodic full Rebuild is the only
// balancing operation. Queries against an empty tree return no result,
// never fail. Predicates are evaluated during the descent so dead or
// mismatched entities are skipped without being returned.
type KDTree struct {
	nodes []kdNode
	root  int32
}

// NewKDTree creates an empty spatial index.
func NewKDTree() *KDTree {
	return &KDTree{root: -1}
}

// Len returns the number of indexed items.
func (t *KDTree) Len() int {
	return len(t.nodes)
}

// Rebuild replaces the tree contents with a balanced tree over items.
// The input slice is not retained but its order is destroyed.
func (t *KDTree) Rebuild(items []Item) {
	t.nodes = t.nodes[:0]
	if cap(t.nodes) < len(items) {
		t.nodes = make([]kdNode, 0, len(items))
	}
	t.root = t.build(items, 0)
}

func (t *KDTree) build(items []Item, depth int) int32 {
	if len(items) == 0 {
		return -1
	}
	mid := len(items) / 2
	nthElement(items, mid, depth%2 == 0)

	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{item: items[mid], left: -1, right: -1})

	// Children are built after the append so the node index is stable.
	left := t.build(items[:mid], depth+1)
	right := t.build(items[mid+1:], depth+1)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

// Insert adds one item without rebalancing. Heavy use between rebuilds
// degrades query complexity toward O(n); the scheduler's periodic
// Rebuild restores balance.
func (t *KDTree) Insert(it Item) {
	n := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{item: it, left: -1, right: -1})
	if t.root < 0 {
		t.root = n
		return
	}

	cur := t.root
	depth := 0
	for {
		node := &t.nodes[cur]
		var next *int32
		if axisKey(it, depth%2 == 0) < axisKey(node.item, depth%2 == 0) {
			next = &node.left
		} else {
			next = &node.right
		}
		if *next < 0 {
			*next = n
			return
		}
		cur = *next
		depth++
	}
}

// Nearest returns the closest item matching pred and its distance.
// pred may be nil to accept everything. ok is false when the tree is
// empty or nothing matches.
func (t *KDTree) Nearest(x, y float32, pred func(Item) bool) (item Item, dist float32, ok bool) {
	if t.root < 0 {
		return Item{}, 0, false
	}
	best := int32(-1)
	bestDistSq := float32(math.MaxFloat32)
	t.nearest(t.root, 0, x, y, pred, &best, &bestDistSq)
	if best < 0 {
		return Item{}, 0, false
	}
	return t.nodes[best].item, float32(math.Sqrt(float64(bestDistSq))), true
}

func (t *KDTree) nearest(idx int32, depth int, x, y float32, pred func(Item) bool, best *int32, bestDistSq *float32) {
	if idx < 0 {
		return
	}
	node := &t.nodes[idx]

	dx := node.item.X - x
	dy := node.item.Y - y
	distSq := dx*dx + dy*dy
	if distSq < *bestDistSq && (pred == nil || pred(node.item)) {
		*best = idx
		*bestDistSq = distSq
	}

	var axisDelta float32
	if depth%2 == 0 {
		axisDelta = x - node.item.X
	} else {
		axisDelta = y - node.item.Y
	}

	near, far := node.left, node.right
	if axisDelta >= 0 {
		near, far = node.right, node.left
	}
	t.nearest(near, depth+1, x, y, pred, best, bestDistSq)
	// Only cross the splitting plane if the far side could still hold
	// a closer match.
	if axisDelta*axisDelta < *bestDistSq {
		t.nearest(far, depth+1, x, y, pred, best, bestDistSq)
	}
}

// InRadius returns all matching items within radius of (x, y), ordered
// by ascending distance. pred may be nil. An empty result is nil.
func (t *KDTree) InRadius(x, y, radius float32, pred func(Item) bool) []Neighbor {
	return t.InRadiusInto(nil, x, y, radius, pred)
}

// InRadiusInto is InRadius appending into dst to avoid allocations.
// The returned slice is sorted by ascending distance.
func (t *KDTree) InRadiusInto(dst []Neighbor, x, y, radius float32, pred func(Item) bool) []Neighbor {
	if t.root < 0 || radius < 0 {
		return dst
	}
	start := len(dst)
	dst = t.inRadius(dst, t.root, 0, x, y, radius*radius, pred)
	tail := dst[start:]
	sort.Slice(tail, func(i, j int) bool { return tail[i].DistSq < tail[j].DistSq })
	return dst
}

func (t *KDTree) inRadius(dst []Neighbor, idx int32, depth int, x, y, radiusSq float32, pred func(Item) bool) []Neighbor {
	if idx < 0 {
		return dst
	}
	node := &t.nodes[idx]

	dx := node.item.X - x
	dy := node.item.Y - y
	distSq := dx*dx + dy*dy
	if distSq <= radiusSq && (pred == nil || pred(node.item)) {
		dst = append(dst, Neighbor{E: node.item.E, DX: dx, DY: dy, DistSq: distSq})
	}

	var axisDelta float32
	if depth%2 == 0 {
		axisDelta = x - node.item.X
	} else {
		axisDelta = y - node.item.Y
	}

	near, far := node.left, node.right
	if axisDelta >= 0 {
		near, far = node.right, node.left
	}
	dst = t.inRadius(dst, near, depth+1, x, y, radiusSq, pred)
	if axisDelta*axisDelta <= radiusSq {
		dst = t.inRadius(dst, far, depth+1, x, y, radiusSq, pred)
	}
	return dst
}

func axisKey(it Item, byX bool) float32 {
	if byX {
		return it.X
	}
	return it.Y
}

// nthElement partially sorts items so items[n] holds the element that
// would be there after a full sort by the given axis (quickselect).
func nthElement(items []Item, n int, byX bool) {
	lo, hi := 0, len(items)-1
	for lo < hi {
		p := partition(items, lo, hi, byX)
		switch {
		case n < p:
			hi = p - 1
		case n > p:
			lo = p + 1
		default:
			return
		}
	}
}

func partition(items []Item, lo, hi int, byX bool) int {
	mid := lo + (hi-lo)/2
	items[mid], items[hi] = items[hi], items[mid]
	pivot := axisKey(items[hi], byX)

	store := lo
	for i := lo; i < hi; i++ {
		if axisKey(items[i], byX) < pivot {
			items[i], items[store] = items[store], items[i]
			store++
		}
	}
	items[store], items[hi] = items[hi], items[store]
	return store
}

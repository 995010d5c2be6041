package systems

import (
	"math"
	"math/rand"
	"testing"
)

func randomItems(rng *rand.Rand, n int, extent float32) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			X: rng.Float32() * extent,
			Y: rng.Float32() * extent,
		}
	}
	return items
}

func bruteNearest(items []Item, x, y float32, pred func(Item) bool) (Item, float32, bool) {
	best := -1
	bestD := float32(math.MaxFloat32)
	for i, it := range items {
		if pred != nil && !pred(it) {
			continue
		}
		dx, dy := it.X-x, it.Y-y
		d := dx*dx + dy*dy
		if d < bestD {
			bestD = d
			best = i
		}
	}
	if best < 0 {
		return Item{}, 0, false
	}
	return items[best], float32(math.Sqrt(float64(bestD))), true
}

// TestNearestMatchesBruteForce cross-checks tree queries against a
// linear scan over random point sets.
func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := randomItems(rng, 500, 1000)

	tree := NewKDTree()
	tree.Rebuild(items)

	for i := 0; i < 200; i++ {
		qx := rng.Float32() * 1000
		qy := rng.Float32() * 1000

		want, wantD, wantOK := bruteNearest(items, qx, qy, nil)
		got, gotD, gotOK := tree.Nearest(qx, qy, nil)

		if gotOK != wantOK {
			t.Fatalf("query (%f, %f): ok = %v, want %v", qx, qy, gotOK, wantOK)
		}
		if math.Abs(float64(gotD-wantD)) > 1e-3 {
			t.Errorf("query (%f, %f): dist = %f, want %f (got point %v, want %v)",
				qx, qy, gotD, wantD, got, want)
		}
	}
}

// TestNearestPredicateFilters verifies the predicate excludes points
// during the search, not after it.
func TestNearestPredicateFilters(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	items := randomItems(rng, 300, 500)

	tree := NewKDTree()
	tree.Rebuild(items)

	pred := func(it Item) bool { return it.X > 250 }
	for i := 0; i < 100; i++ {
		qx := rng.Float32() * 500
		qy := rng.Float32() * 500

		_, wantD, wantOK := bruteNearest(items, qx, qy, pred)
		got, gotD, gotOK := tree.Nearest(qx, qy, pred)

		if gotOK != wantOK {
			t.Fatalf("ok = %v, want %v", gotOK, wantOK)
		}
		if gotOK && got.X <= 250 {
			t.Errorf("predicate violated: got %v", got)
		}
		if gotOK && math.Abs(float64(gotD-wantD)) > 1e-3 {
			t.Errorf("dist = %f, want %f", gotD, wantD)
		}
	}
}

// TestNearestEmptyTree verifies an empty index reports no result
// rather than erroring.
func TestNearestEmptyTree(t *testing.T) {
	tree := NewKDTree()
	if _, _, ok := tree.Nearest(10, 10, nil); ok {
		t.Error("empty tree returned a result")
	}
	if hits := tree.InRadius(10, 10, 100, nil); len(hits) != 0 {
		t.Errorf("empty tree returned %d radius hits", len(hits))
	}
}

// TestInRadiusSortedAndComplete verifies radius results are complete
// and ordered nearest-first.
func TestInRadiusSortedAndComplete(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	items := randomItems(rng, 400, 800)

	tree := NewKDTree()
	tree.Rebuild(items)

	const qx, qy, radius = 400, 400, 120

	hits := tree.InRadius(qx, qy, radius, nil)

	want := 0
	for _, it := range items {
		dx, dy := it.X-qx, it.Y-qy
		if dx*dx+dy*dy <= radius*radius {
			want++
		}
	}
	if len(hits) != want {
		t.Errorf("got %d hits, want %d", len(hits), want)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].DistSq < hits[i-1].DistSq {
			t.Fatalf("hits not sorted at %d: %f < %f", i, hits[i].DistSq, hits[i-1].DistSq)
		}
	}
}

// TestInsertAfterRebuild verifies incremental inserts are findable
// without another rebuild.
func TestInsertAfterRebuild(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	items := randomItems(rng, 100, 1000)

	tree := NewKDTree()
	tree.Rebuild(items)

	tree.Insert(Item{X: 5000, Y: 5000})

	got, d, ok := tree.Nearest(5001, 5001, nil)
	if !ok {
		t.Fatal("no result after insert")
	}
	if got.X != 5000 || got.Y != 5000 {
		t.Errorf("got %v at dist %f, want inserted point", got, d)
	}
}

// TestRebuildReplacesContents verifies a rebuild drops prior points.
func TestRebuildReplacesContents(t *testing.T) {
	tree := NewKDTree()
	tree.Rebuild([]Item{{X: 1, Y: 1}})
	tree.Rebuild([]Item{{X: 100, Y: 100}})

	if tree.Len() != 1 {
		t.Fatalf("len = %d after rebuild, want 1", tree.Len())
	}
	got, _, ok := tree.Nearest(0, 0, nil)
	if !ok || got.X != 100 {
		t.Errorf("old contents survived rebuild: %v", got)
	}
}

package terrain

import "testing"

// TestGenerateDeterministic verifies the same seed yields the same map.
func TestGenerateDeterministic(t *testing.T) {
	a := Generate(50, 50, 16, 0.3, 1234)
	b := Generate(50, 50, 16, 0.3, 1234)

	for ty := 0; ty < 50; ty++ {
		for tx := 0; tx < 50; tx++ {
			if a.ClassAt(tx, ty) != b.ClassAt(tx, ty) {
				t.Fatalf("tile (%d, %d) differs across identical seeds", tx, ty)
			}
		}
	}

	c := Generate(50, 50, 16, 0.3, 5678)
	same := 0
	for ty := 0; ty < 50; ty++ {
		for tx := 0; tx < 50; tx++ {
			if a.ClassAt(tx, ty) == c.ClassAt(tx, ty) {
				same++
			}
		}
	}
	if same == 50*50 {
		t.Error("different seeds produced identical maps")
	}
}

// TestWaterLevelZeroIsAllGround verifies a zero threshold classifies
// every tile as ground.
func TestWaterLevelZeroIsAllGround(t *testing.T) {
	m := Generate(40, 40, 16, 0, 99)
	for ty := 0; ty < 40; ty++ {
		for tx := 0; tx < 40; tx++ {
			if m.ClassAt(tx, ty) == ClassWater {
				t.Fatalf("tile (%d, %d) is water at threshold 0", tx, ty)
			}
		}
	}
}

// TestWaterFractionScalesWithLevel verifies raising the threshold never
// shrinks the water share.
func TestWaterFractionScalesWithLevel(t *testing.T) {
	count := func(level float64) int {
		m := Generate(60, 60, 16, level, 7)
		n := 0
		for ty := 0; ty < 60; ty++ {
			for tx := 0; tx < 60; tx++ {
				if m.ClassAt(tx, ty) == ClassWater {
					n++
				}
			}
		}
		return n
	}

	low, high := count(0.2), count(0.5)
	if high < low {
		t.Errorf("water at level 0.5 (%d tiles) below level 0.2 (%d tiles)", high, low)
	}
	if high == 0 {
		t.Error("no water at level 0.5")
	}
}

// TestOutOfBoundsIsWater verifies queries off the map read as water so
// callers treat the edge as impassable.
func TestOutOfBoundsIsWater(t *testing.T) {
	m := Generate(20, 20, 16, 0.3, 3)
	if m.ClassAt(-1, 5) != ClassWater || m.ClassAt(5, 20) != ClassWater {
		t.Error("out-of-bounds tile not classified as water")
	}
	if !m.IsWater(-10, 50) || !m.IsWater(50, 20*16+1) {
		t.Error("out-of-bounds world coordinate not water")
	}
}

package systems

import (
	"testing"

	"github.com/pthm-cable/meadow/components"
)

// TestFollowAdvancesCursor verifies waypoints are consumed in order and
// the cursor never moves backward.
func TestFollowAdvancesCursor(t *testing.T) {
	p := &components.PathFollow{}
	SetPath(p, []components.Position{
		{X: 10, Y: 0},
		{X: 20, Y: 0},
		{X: 30, Y: 0},
	})

	// Walk the agent along the path in small steps.
	x, y := float32(0), float32(0)
	lastIndex := 0
	for i := 0; i < 200 && p.HasPath(); i++ {
		dirX, dirY, ok := Follow(p, x, y)
		if !ok {
			break
		}
		if p.Index < lastIndex {
			t.Fatalf("cursor moved backward: %d -> %d", lastIndex, p.Index)
		}
		lastIndex = p.Index
		x += dirX * 2
		y += dirY * 2
	}

	if p.HasPath() {
		t.Errorf("path not consumed; index %d of %d", p.Index, len(p.Waypoints))
	}
	if !p.Reached() {
		t.Error("consumed path not reported as reached")
	}
	if dist(x, y, 30, 0) > ArriveDist+2 {
		t.Errorf("ended at (%f, %f), want near (30, 0)", x, y)
	}
}

// TestFollowReturnsUnitDirection verifies the direction vector is
// normalized.
func TestFollowReturnsUnitDirection(t *testing.T) {
	p := &components.PathFollow{}
	SetPath(p, []components.Position{{X: 100, Y: 100}})

	dirX, dirY, ok := Follow(p, 0, 0)
	if !ok {
		t.Fatal("expected direction toward waypoint")
	}
	mag := dirX*dirX + dirY*dirY
	if mag < 0.99 || mag > 1.01 {
		t.Errorf("direction not unit length: %f", mag)
	}
}

// TestFollowSkipsReachedWaypoints verifies waypoints inside the arrive
// tolerance are skipped in one call.
func TestFollowSkipsReachedWaypoints(t *testing.T) {
	p := &components.PathFollow{}
	SetPath(p, []components.Position{
		{X: 1, Y: 1},
		{X: 2, Y: 2},
		{X: 100, Y: 100},
	})

	_, _, ok := Follow(p, 0, 0)
	if !ok {
		t.Fatal("expected direction")
	}
	if p.Index != 2 {
		t.Errorf("index = %d, want 2 (both near waypoints skipped)", p.Index)
	}
}

// TestFollowEmptyPath verifies a cleared path yields no movement.
func TestFollowEmptyPath(t *testing.T) {
	p := &components.PathFollow{}
	if _, _, ok := Follow(p, 0, 0); ok {
		t.Error("empty path produced a direction")
	}

	SetPath(p, []components.Position{{X: 50, Y: 50}})
	ClearPath(p)
	if _, _, ok := Follow(p, 0, 0); ok {
		t.Error("cleared path produced a direction")
	}
	if p.Reached() {
		t.Error("cleared path reported as reached")
	}
}

// TestRemainingDistance verifies the polyline sum from the current
// position through the remaining waypoints.
func TestRemainingDistance(t *testing.T) {
	p := &components.PathFollow{}
	SetPath(p, []components.Position{
		{X: 10, Y: 0},
		{X: 10, Y: 10},
	})

	got := RemainingDistance(p, 0, 0)
	if got < 19 || got > 21 {
		t.Errorf("remaining = %f, want ~20", got)
	}

	ClearPath(p)
	if got := RemainingDistance(p, 0, 0); got != 0 {
		t.Errorf("remaining on empty path = %f, want 0", got)
	}
}

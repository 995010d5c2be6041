package systems

import (
	"math"

	"github.com/pthm-cable/meadow/components"
)

// ArriveDist is the arrival tolerance around a waypoint in world units.
// A waypoint closer than this is considered passed and the cursor
// advances; the tolerance also ends the whole path at its destination.
const ArriveDist = 4.0

// SetPath replaces the active path and resets the cursor.
func SetPath(p *components.PathFollow, waypoints []components.Position) {
	p.Waypoints = waypoints
	p.Index = 0
}

// ClearPath empties the path. HasPath and Reached both become false.
func ClearPath(p *components.PathFollow) {
	p.Waypoints = nil
	p.Index = 0
}

// Follow advances the cursor past any waypoint within the arrival
// tolerance and returns a unit vector toward the next pending waypoint.
// ok is false once the path is exhausted; the cursor never moves
// backward, so a passed waypoint is never steered at again.
func Follow(p *components.PathFollow, x, y float32) (dirX, dirY float32, ok bool) {
	for p.Index < len(p.Waypoints) {
		wp := p.Waypoints[p.Index]
		dx := wp.X - x
		dy := wp.Y - y
		distSq := dx*dx + dy*dy
		if distSq < ArriveDist*ArriveDist {
			p.Index++
			continue
		}
		dist := float32(math.Sqrt(float64(distSq)))
		return dx / dist, dy / dist, true
	}
	return 0, 0, false
}

// RemainingDistance sums the polyline length from the current position
// through all pending waypoints. Callers re-path toward a moving target
// when this drops below a threshold instead of re-searching every tick.
func RemainingDistance(p *components.PathFollow, x, y float32) float32 {
	if p.Index >= len(p.Waypoints) {
		return 0
	}
	var total float32
	px, py := x, y
	for i := p.Index; i < len(p.Waypoints); i++ {
		wp := p.Waypoints[i]
		dx := wp.X - px
		dy := wp.Y - py
		total += float32(math.Sqrt(float64(dx*dx + dy*dy)))
		px, py = wp.X, wp.Y
	}
	return total
}

package ai

import (
	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
)

// PreyTree builds the flee-and-graze policy: run from a live threat,
// otherwise wander with grazing pauses.
func PreyTree() behavior.Node[*Context] {
	return behavior.Selector(
		behavior.Sequence(
			behavior.Condition(func(c *Context) bool { return c.ThreatAlive() }),
			behavior.Action(fleeThreat),
		),
		Wander(),
	)
}

// fleeThreat hops away from the threat along the normalized away
// vector, one flee-push length per hop, until the safety distance is
// reached. Hop targets are clamped back into the territory, so a prey
// cornered at its boundary runs along it rather than through it.
func fleeThreat(c *Context) behavior.Status {
	a := c.Agent
	tp := c.ThreatPos()
	if tp == nil {
		a.ClearThreat()
		return behavior.Failure
	}

	d := dist(c.Pos.X, c.Pos.Y, tp.X, tp.Y)
	if d > float32(c.Cfg.Prey.SafeDistance) {
		a.ClearThreat()
		a.State = components.StateIdle
		return behavior.Success
	}

	a.State = components.StateFlee
	a.PauseTimer = 0

	// Keep running along the committed hop until it is consumed.
	if c.Path.HasPath() {
		return behavior.Running
	}
	c.Stats.RecordFlee()

	away := float32(c.Cfg.Prey.FleePush)
	var tx, ty float32
	if d > 0 {
		tx = c.Pos.X + (c.Pos.X-tp.X)/d*away
		ty = c.Pos.Y + (c.Pos.Y-tp.Y)/d*away
	} else {
		// Directly on top of the threat; bolt toward the anchor.
		tx, ty = a.AnchorX, a.AnchorY
	}
	if !c.RequestPath(tx, ty) {
		// Boxed in; fall back to the anchor rather than freezing.
		if !c.RequestPath(a.AnchorX, a.AnchorY) {
			return behavior.Failure
		}
	}
	return behavior.Running
}

package ai

import (
	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/systems"
)

// PredatorTree builds the territorial-attacker policy:
// engage the current threat while one is live, otherwise wander.
func PredatorTree() behavior.Node[*Context] {
	return behavior.Selector(
		behavior.Sequence(
			behavior.Condition(hasOrAcquireTarget),
			behavior.Action(engageThreat),
		),
		Wander(),
	)
}

// hasOrAcquireTarget keeps the held threat if it is still live;
// acquisition only runs when no threat is held, so a chase never
// switches targets mid-pursuit.
func hasOrAcquireTarget(c *Context) bool {
	if c.ThreatAlive() {
		return true
	}
	a := c.Agent
	item, _, ok := c.Spatial.Nearest(c.Pos.X, c.Pos.Y, func(it systems.Item) bool {
		if it.E == c.Self {
			return false
		}
		meta := c.MetaMap.Get(it.E)
		return meta != nil && meta.Active && meta.Kind == components.KindPrey
	})
	if !ok {
		return false
	}
	if dist(c.Pos.X, c.Pos.Y, item.X, item.Y) > a.DetectRange {
		return false
	}
	a.Threat = item.E
	return true
}

func engageThreat(c *Context) behavior.Status {
	a := c.Agent

	// Never chase beyond the territory; abandon and walk home.
	if c.DistToAnchor() > a.Territory {
		a.ClearThreat()
		a.State = components.StateWander
		c.RequestPath(a.AnchorX, a.AnchorY)
		return behavior.Failure
	}

	tp := c.ThreatPos()
	if tp == nil {
		a.ClearThreat()
		return behavior.Failure
	}
	d := dist(c.Pos.X, c.Pos.Y, tp.X, tp.Y)

	// Target escaped the pursuit envelope.
	if d > a.DetectRange*float32(c.Cfg.Predator.ChaseSlack) {
		a.ClearThreat()
		return behavior.Failure
	}

	if d <= a.AttackRange {
		// In range: stop, face the target, strike on the cooldown.
		systems.ClearPath(c.Path)
		a.State = components.StateAttack
		a.Facing = components.FacingFrom(tp.X-c.Pos.X, tp.Y-c.Pos.Y)
		a.AttackTimer -= c.DT
		if a.AttackTimer <= 0 {
			killed := c.ApplyDamage(a.Threat, a.AttackDamage)
			a.AttackTimer = a.AttackInterval
			if killed {
				a.ClearThreat()
				return behavior.Success
			}
		}
		return behavior.Running
	}

	// Chase. Re-route only when idle or nearly out of path, so the
	// pathfinder is not hammered every decision tick.
	a.State = components.StateAttack
	repath := float32(c.Cfg.Predator.RepathDistance)
	if !c.Path.HasPath() || systems.RemainingDistance(c.Path, c.Pos.X, c.Pos.Y) < repath {
		if !c.RequestPath(tp.X, tp.Y) {
			a.ClearThreat()
			return behavior.Failure
		}
	}
	return behavior.Running
}

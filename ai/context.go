// Package ai builds the per-kind decision trees and the context they
// tick against. Trees are stateless and shared across agents; all
// continuation state lives in the agent components.
package ai

import (
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/telemetry"
)

// TaskSource hands out and executes work for task-driven agents. The
// tree never inspects task internals beyond the work location and the
// completion flag.
type TaskSource interface {
	// RequestNextTask returns the next available task for the job, or
	// nil when no work is queued.
	RequestNextTask(agentID uint32, job components.JobType) *components.Task

	// ExecuteTask advances the task by dt seconds and reports whether
	// it completed.
	ExecuteTask(dt float32, ctx *Context, task *components.Task) bool

	// HasWork reports whether any task is queued for the job.
	HasWork(job components.JobType) bool
}

// Context carries one agent's state and the shared world services into
// a single decision tick. It is rebuilt per agent per tick; leaves must
// not retain it.
type Context struct {
	World *ecs.World
	Rng   *rand.Rand
	Cfg   *config.Config
	DT    float32 // Seconds since this agent's previous decision tick

	Spatial *systems.KDTree
	Grid    *systems.PathGrid
	Tasks   TaskSource
	Stats   *telemetry.Collector

	Self  ecs.Entity
	Pos   *components.Position
	Agent *components.Agent
	Path  *components.PathFollow

	PosMap   *ecs.Map[components.Position]
	MetaMap  *ecs.Map[components.Meta]
	AgentMap *ecs.Map[components.Agent]
	ResMap   *ecs.Map[components.Resource]
}

// ThreatAlive reports whether the held threat reference still points at
// a live, active entity. A stale handle is cleared, never dereferenced.
func (c *Context) ThreatAlive() bool {
	a := c.Agent
	if !a.HasThreat() {
		return false
	}
	if !c.World.Alive(a.Threat) || !c.MetaMap.Has(a.Threat) {
		a.ClearThreat()
		return false
	}
	if !c.MetaMap.Get(a.Threat).Active {
		a.ClearThreat()
		return false
	}
	return true
}

// ThreatPos returns the threat's position. Only valid after ThreatAlive.
func (c *Context) ThreatPos() *components.Position {
	return c.PosMap.Get(c.Agent.Threat)
}

// DistToAnchor returns the agent's current distance from its spawn anchor.
func (c *Context) DistToAnchor() float32 {
	return dist(c.Pos.X, c.Pos.Y, c.Agent.AnchorX, c.Agent.AnchorY)
}

// ClampToTerritory pulls a movement target back inside the agent's
// territory circle. Targets are re-validated here before every path
// request so no committed path can leave the territory.
func (c *Context) ClampToTerritory(x, y float32) (float32, float32) {
	a := c.Agent
	dx := x - a.AnchorX
	dy := y - a.AnchorY
	d := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if d <= a.Territory || d == 0 {
		return x, y
	}
	scale := a.Territory / d
	return a.AnchorX + dx*scale, a.AnchorY + dy*scale
}

// RequestPath routes the agent toward (tx, ty), clamping the target to
// the territory and nudging it to the nearest open cell when it lands
// on a blocked one. Reports whether a path was committed.
func (c *Context) RequestPath(tx, ty float32) bool {
	tx, ty = c.ClampToTerritory(tx, ty)
	if !c.Grid.IsWalkable(tx, ty) {
		ox, oy, ok := c.Grid.NearestOpenWorld(tx, ty, c.Cfg.Stuck.ProbeRadius)
		if !ok {
			c.Stats.RecordPathFailed()
			return false
		}
		tx, ty = ox, oy
	}
	path := c.Grid.FindPath(c.Pos.X, c.Pos.Y, tx, ty)
	if path == nil {
		c.Stats.RecordPathFailed()
		return false
	}
	systems.SetPath(c.Path, path)
	c.Stats.RecordPathComputed()
	return true
}

// ApplyDamage strikes the target for dmg health. The victim latches the
// attacker as its threat so its next decision tick can react. Reports
// whether the blow killed the target.
func (c *Context) ApplyDamage(target ecs.Entity, dmg float32) bool {
	victim := c.AgentMap.Get(target)
	if victim == nil {
		return false
	}
	victim.Health -= dmg
	victim.Threat = c.Self
	victim.UnderAttack = true
	c.Stats.RecordAttack()
	if victim.Health > 0 {
		return false
	}
	// Deactivate only; entity removal is deferred to the scheduler sweep
	// so no structural change happens inside an open query.
	if meta := c.MetaMap.Get(target); meta != nil {
		meta.Active = false
	}
	c.Stats.RecordKill()
	return true
}

func dist(x1, y1, x2, y2 float32) float32 {
	dx := x2 - x1
	dy := y2 - y1
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

func randRange(rng *rand.Rand, lo, hi float64) float32 {
	if hi <= lo {
		return float32(lo)
	}
	return float32(lo + rng.Float64()*(hi-lo))
}

// Wander is the shared fallback leaf: pick a random point within the
// configured distance band (clamped into the territory), walk there,
// then pause for a randomized interval. Always keeps the agent busy, so
// it returns Running except when no path can be found at all.
func Wander() behavior.Node[*Context] {
	return behavior.Action(func(c *Context) behavior.Status {
		a := c.Agent
		if a.PauseTimer > 0 {
			a.PauseTimer -= c.DT
			a.State = components.StateIdle
			return behavior.Running
		}
		if c.Path.HasPath() {
			a.State = components.StateWander
			return behavior.Running
		}
		if a.State == components.StateWander {
			// Arrived; graze in place before the next leg.
			a.PauseTimer = randRange(c.Rng, c.Cfg.Wander.PauseMin, c.Cfg.Wander.PauseMax)
			a.State = components.StateIdle
			return behavior.Running
		}
		w := c.Cfg.Wander
		angle := c.Rng.Float64() * 2 * math.Pi
		r := randRange(c.Rng, w.MinDist, w.MaxDist)
		tx := c.Pos.X + float32(math.Cos(angle))*r
		ty := c.Pos.Y + float32(math.Sin(angle))*r
		if !c.RequestPath(tx, ty) {
			return behavior.Failure
		}
		a.State = components.StateWander
		return behavior.Running
	})
}

package ai

import (
	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/systems"
)

// WorkerTree builds the task-driven humanoid policy. Priority order,
// checked from the root every decision tick:
//
//	flee if struck -> rest if energy critical -> eat if energy low ->
//	execute assigned task -> return home when out of work ->
//	request a task -> idle-wander near home
//
// The under-attack latch is a hard interrupt: it preempts even an
// in-progress task because the root re-evaluates from the first branch
// on every tick.
func WorkerTree() behavior.Node[*Context] {
	return behavior.Selector(
		behavior.Sequence(
			behavior.Condition(workerAttacked),
			behavior.Action(fleeThreat),
		),
		behavior.Sequence(
			behavior.Condition(func(c *Context) bool {
				return c.Agent.Energy < float32(c.Cfg.Worker.CriticalEnergy)
			}),
			behavior.Action(restAtHome),
		),
		behavior.Sequence(
			behavior.Condition(func(c *Context) bool {
				return c.Agent.Energy < float32(c.Cfg.Worker.LowEnergy)
			}),
			behavior.Action(forage),
		),
		behavior.Sequence(
			behavior.Condition(func(c *Context) bool { return c.Agent.Task.Active }),
			behavior.Action(executeTask),
		),
		behavior.Sequence(
			behavior.Condition(shouldReturnHome),
			behavior.Action(goHome),
		),
		behavior.Action(requestTask),
		Wander(),
	)
}

func workerAttacked(c *Context) bool {
	if !c.Agent.UnderAttack {
		return false
	}
	if !c.ThreatAlive() {
		// Attacker already gone; drop the latch and carry on.
		c.Agent.ClearThreat()
		return false
	}
	// Fleeing abandons the task; it goes back to the queue untouched
	// because completion state lives in the resource, not the task.
	c.Agent.Task = components.Task{}
	return true
}

// restAtHome walks to the spawn anchor and recovers energy there until
// full. Recovery only happens inside the home radius.
func restAtHome(c *Context) behavior.Status {
	a := c.Agent
	home := float32(c.Cfg.Worker.HomeRadius)
	if c.DistToAnchor() > home {
		a.State = components.StateWander
		if !c.Path.HasPath() && !c.RequestPath(a.AnchorX, a.AnchorY) {
			return behavior.Failure
		}
		return behavior.Running
	}
	systems.ClearPath(c.Path)
	a.State = components.StateIdle
	a.Energy += float32(c.Cfg.Worker.RestRate) * c.DT
	if a.Energy >= a.MaxEnergy {
		a.Energy = a.MaxEnergy
		return behavior.Success
	}
	return behavior.Running
}

// forage walks to the nearest live resource and eats from it, trading
// resource yield for energy at the forage rate.
func forage(c *Context) behavior.Status {
	a := c.Agent
	item, _, ok := c.Spatial.Nearest(c.Pos.X, c.Pos.Y, func(it systems.Item) bool {
		meta := c.MetaMap.Get(it.E)
		if meta == nil || !meta.Active || meta.Kind != components.KindResource {
			return false
		}
		res := c.ResMap.Get(it.E)
		return res != nil && res.Yield > 0
	})
	if !ok {
		// Nothing edible anywhere; resting is the only way to recover.
		return restAtHome(c)
	}

	d := dist(c.Pos.X, c.Pos.Y, item.X, item.Y)
	if d > systems.ArriveDist*2 {
		a.State = components.StateWander
		if !c.Path.HasPath() && !c.RequestPath(item.X, item.Y) {
			return behavior.Failure
		}
		return behavior.Running
	}

	systems.ClearPath(c.Path)
	a.State = components.StateWork
	a.Facing = components.FacingFrom(item.X-c.Pos.X, item.Y-c.Pos.Y)
	res := c.ResMap.Get(item.E)
	if res == nil || res.Yield <= 0 {
		return behavior.Failure
	}
	bite := float32(c.Cfg.Worker.ForageRate) * c.DT
	if bite > res.Yield {
		bite = res.Yield
	}
	res.Yield -= bite
	a.Energy += bite
	if a.Energy >= a.MaxEnergy {
		a.Energy = a.MaxEnergy
		a.State = components.StateIdle
		return behavior.Success
	}
	return behavior.Running
}

// executeTask walks to the task's work location, then delegates the
// work itself to the task source.
func executeTask(c *Context) behavior.Status {
	a := c.Agent
	task := &a.Task

	d := dist(c.Pos.X, c.Pos.Y, task.WorkX, task.WorkY)
	if d > systems.ArriveDist*2 {
		a.State = components.StateWander
		if !c.Path.HasPath() && !c.RequestPath(task.WorkX, task.WorkY) {
			// Unreachable work site; drop the task.
			a.Task = components.Task{}
			return behavior.Failure
		}
		return behavior.Running
	}

	systems.ClearPath(c.Path)
	a.State = components.StateWork
	a.Facing = components.FacingFrom(task.WorkX-c.Pos.X, task.WorkY-c.Pos.Y)
	if c.Tasks.ExecuteTask(c.DT, c, task) {
		a.Task = components.Task{}
		a.State = components.StateIdle
		c.Stats.RecordTaskCompleted()
		return behavior.Success
	}
	return behavior.Running
}

// shouldReturnHome holds when the worker has no task, the queue has no
// work for its job, and it has strayed outside the home radius.
func shouldReturnHome(c *Context) bool {
	if c.Agent.Task.Active {
		return false
	}
	if c.Tasks != nil && c.Tasks.HasWork(c.Agent.Job) {
		return false
	}
	return c.DistToAnchor() > float32(c.Cfg.Worker.HomeRadius)
}

func goHome(c *Context) behavior.Status {
	a := c.Agent
	if c.DistToAnchor() <= float32(c.Cfg.Worker.HomeRadius) {
		systems.ClearPath(c.Path)
		a.State = components.StateIdle
		return behavior.Success
	}
	a.State = components.StateWander
	if !c.Path.HasPath() && !c.RequestPath(a.AnchorX, a.AnchorY) {
		return behavior.Failure
	}
	return behavior.Running
}

// requestTask pulls the next task for this worker's job and stores it
// on the agent. An action, not a condition: taking a task mutates both
// the queue and the agent. Failure falls through to wandering.
func requestTask(c *Context) behavior.Status {
	if c.Tasks == nil {
		return behavior.Failure
	}
	var id uint32
	if meta := c.MetaMap.Get(c.Self); meta != nil {
		id = meta.ID
	}
	task := c.Tasks.RequestNextTask(id, c.Agent.Job)
	if task == nil {
		return behavior.Failure
	}
	c.Agent.Task = *task
	return behavior.Success
}

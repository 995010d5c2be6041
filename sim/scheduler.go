package sim

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/ai"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/systems"
)

// Step advances the simulation by one fixed tick. Pass order matters:
// resources and spawns settle first, then the spatial snapshot, then
// decisions against that snapshot, then movement, then cleanup. All
// structural registry changes are deferred outside open queries.
func (w *World) Step(dt float32) {
	w.tick++
	w.simTime += float64(dt)

	w.stepResources(dt)
	w.drainSpawns()
	w.rebuildSpatial(dt)
	w.stepAgents(dt)
	w.sweepDead()
	w.flushTelemetry()
}

// stepResources ages depleted resources toward respawn and retires the
// ones that never come back. Depletion itself happens in the harvest
// and forage leaves; this pass only reacts to yield reaching zero.
func (w *World) stepResources(dt float32) {
	w.deadResources = w.deadResources[:0]

	query := w.resourceFilter.Query()
	for query.Next() {
		pos, col, meta, res := query.Get()

		if meta.Active && res.Yield <= 0 {
			meta.Active = false
			w.grid.SetAreaWalkable(colliderRect(*pos, *col), true)
			if res.RespawnDelay <= 0 {
				w.deadResources = append(w.deadResources, query.Entity())
				continue
			}
			res.RespawnIn = res.RespawnDelay
		}

		if !meta.Active && res.RespawnIn > 0 {
			res.RespawnIn -= dt
			if res.RespawnIn <= 0 {
				res.Yield = res.MaxYield
				res.RespawnIn = 0
				meta.Active = true
				w.grid.SetAreaWalkable(colliderRect(*pos, *col), false)
			}
		}

		if meta.Active && res.Yield > 0 {
			w.tasks.Enqueue(w.tasks.CreateHarvestTask(query.Entity(), pos.X, pos.Y, components.JobWoodcutter))
		}
	}

	for _, e := range w.deadResources {
		w.stats.RecordDeath(components.KindResource)
		// RemoveEntity, not mapper.Remove: the latter only strips the
		// components and leaves the entity alive in the registry.
		w.ecs.RemoveEntity(e)
	}

	w.syncTimer -= dt
	if w.syncTimer <= 0 {
		w.tasks.Sync(w.simTime)
		w.syncTimer = float32(w.cfg.Spatial.RebuildInterval)
	}
}

// drainSpawns pops queued spawn requests at the per-tick cap so a big
// initial plan does not stall one frame.
func (w *World) drainSpawns() {
	if w.spawn.Pending() == 0 {
		return
	}
	w.spawn.Drain(w.cfg.Spawn.MaxPerTick, func(req SpawnRequest) {
		if req.Kind == components.KindResource {
			w.SpawnResource(req.X, req.Y)
			return
		}
		w.SpawnAgent(req.Kind, req.X, req.Y)
	})
}

// rebuildSpatial rebuilds the k-d tree on its own cadence. The new tree
// is built aside and swapped in whole, so a reader never sees a
// half-built index.
func (w *World) rebuildSpatial(dt float32) {
	w.rebuildTimer -= dt
	if w.rebuildTimer > 0 && w.spatial.Len() > 0 {
		return
	}
	w.rebuildTimer = float32(w.cfg.Spatial.RebuildInterval)

	w.spatialItems = w.spatialItems[:0]
	agentQuery := w.agentFilter.Query()
	for agentQuery.Next() {
		pos, _, _, meta, _, _ := agentQuery.Get()
		if meta.Active {
			w.spatialItems = append(w.spatialItems, systems.Item{E: agentQuery.Entity(), X: pos.X, Y: pos.Y})
		}
	}
	resQuery := w.resourceFilter.Query()
	for resQuery.Next() {
		pos, _, meta, _ := resQuery.Get()
		if meta.Active {
			w.spatialItems = append(w.spatialItems, systems.Item{E: resQuery.Entity(), X: pos.X, Y: pos.Y})
		}
	}

	fresh := systems.NewKDTree()
	fresh.Rebuild(w.spatialItems)
	w.spatial = fresh
}

// stepAgents runs decisions at the AI cadence and movement every tick.
func (w *World) stepAgents(dt float32) {
	cadence := float32(w.cfg.AI.Cadence)

	query := w.agentFilter.Query()
	for query.Next() {
		pos, vel, _, meta, agent, path := query.Get()
		if !meta.Active {
			continue
		}

		// Workers burn energy whenever they are doing anything.
		if meta.Kind == components.KindWorker && agent.State != components.StateIdle {
			agent.Energy -= float32(w.cfg.Worker.DrainRate) * dt
			if agent.Energy < 0 {
				agent.Energy = 0
			}
		}

		agent.AITimer -= dt
		if agent.AITimer <= 0 {
			w.tickAI(query.Entity(), meta.Kind, pos, agent, path, cadence)
			agent.AITimer = cadence
		}

		w.moveAgent(pos, vel, agent, path, dt)
		w.checkStuck(pos, agent, path, dt)
	}
}

// tickAI builds the per-agent context and runs the kind's shared tree.
func (w *World) tickAI(e ecs.Entity, kind components.Kind, pos *components.Position, agent *components.Agent, path *components.PathFollow, cadence float32) {
	ctx := ai.Context{
		World:    w.ecs,
		Rng:      w.rng,
		Cfg:      w.cfg,
		DT:       cadence,
		Spatial:  w.spatial,
		Grid:     w.grid,
		Tasks:    w.tasks,
		Stats:    w.stats,
		Self:     e,
		Pos:      pos,
		Agent:    agent,
		Path:     path,
		PosMap:   w.posMap,
		MetaMap:  w.metaMap,
		AgentMap: w.agentMap,
		ResMap:   w.resMap,
	}

	switch kind {
	case components.KindPredator:
		w.predatorTree.Tick(&ctx)
	case components.KindPrey:
		w.preyTree.Tick(&ctx)
	case components.KindWorker:
		w.workerTree.Tick(&ctx)
	}
}

// moveAgent advances the agent along its path at its speed, updating
// facing from the travel direction and clamping to world bounds.
func (w *World) moveAgent(pos *components.Position, vel *components.Velocity, agent *components.Agent, path *components.PathFollow, dt float32) {
	dirX, dirY, ok := systems.Follow(path, pos.X, pos.Y)
	if !ok {
		vel.X, vel.Y = 0, 0
		return
	}
	vel.X = dirX * agent.Speed
	vel.Y = dirY * agent.Speed
	pos.X += vel.X * dt
	pos.Y += vel.Y * dt
	agent.Facing = components.FacingFrom(dirX, dirY)

	if pos.X < 0 {
		pos.X = 0
	} else if pos.X > w.cfg.Derived.WorldW32 {
		pos.X = w.cfg.Derived.WorldW32
	}
	if pos.Y < 0 {
		pos.Y = 0
	} else if pos.Y > w.cfg.Derived.WorldH32 {
		pos.Y = w.cfg.Derived.WorldH32
	}
}

// checkStuck samples displacement on a fixed interval. An agent that is
// trying to move but barely displaced gets nudged to the nearest open
// cell; if even that fails it teleports home. Bounds the damage of any
// navigation corner case to one agent for one interval.
func (w *World) checkStuck(pos *components.Position, agent *components.Agent, path *components.PathFollow, dt float32) {
	agent.StuckTimer -= dt
	if agent.StuckTimer > 0 {
		return
	}
	agent.StuckTimer = float32(w.cfg.Stuck.CheckInterval)

	moved := dist2(pos.X, pos.Y, agent.LastX, agent.LastY)
	agent.LastX, agent.LastY = pos.X, pos.Y

	minDisp := float32(w.cfg.Stuck.MinDisplacement)
	if !path.HasPath() || moved >= minDisp*minDisp {
		return
	}

	systems.ClearPath(path)
	if x, y, ok := w.grid.NearestOpenWorld(pos.X, pos.Y, w.cfg.Stuck.ProbeRadius); ok {
		pos.X, pos.Y = x, y
	} else {
		pos.X, pos.Y = agent.AnchorX, agent.AnchorY
	}
	agent.State = components.StateIdle
	w.stats.RecordStuckRecovery()
}

// sweepDead removes deactivated agents after all queries are closed.
func (w *World) sweepDead() {
	w.deadAgents = w.deadAgents[:0]

	query := w.agentFilter.Query()
	for query.Next() {
		_, _, _, meta, agent, _ := query.Get()
		if !meta.Active || agent.Health <= 0 {
			meta.Active = false
			w.stats.RecordDeath(meta.Kind)
			w.deadAgents = append(w.deadAgents, query.Entity())
		}
	}

	for _, e := range w.deadAgents {
		w.ecs.RemoveEntity(e)
	}
}

// flushTelemetry emits one window record when the window closes.
func (w *World) flushTelemetry() {
	if !w.stats.WindowReady(w.tick) {
		return
	}

	w.healthSamples = w.healthSamples[:0]
	w.energySamples = w.energySamples[:0]
	query := w.agentFilter.Query()
	for query.Next() {
		_, _, _, meta, agent, _ := query.Get()
		if !meta.Active {
			continue
		}
		w.healthSamples = append(w.healthSamples, float64(agent.Health))
		if meta.Kind == components.KindWorker {
			w.energySamples = append(w.energySamples, float64(agent.Energy))
		}
	}

	stats := w.stats.Flush(w.tick, w.CountByKind(), w.healthSamples, w.energySamples)
	w.log.Info("window", "stats", stats)
	if w.out != nil {
		if err := w.out.WriteTelemetry(stats); err != nil {
			w.log.Error("telemetry write failed", "error", err)
		}
	}
}

func dist2(x1, y1, x2, y2 float32) float32 {
	dx := x2 - x1
	dy := y2 - y1
	return dx*dx + dy*dy
}

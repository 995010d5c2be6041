// Package sim owns the registry, the shared navigation structures, and
// the tick scheduler that drives agents through their decision trees.
package sim

import (
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/ai"
	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/telemetry"
	"github.com/pthm-cable/meadow/terrain"
)

// World holds the complete simulation state.
type World struct {
	ecs *ecs.World
	rng *rand.Rand
	cfg *config.Config
	log *slog.Logger

	agentMapper *ecs.Map6[
		components.Position,
		components.Velocity,
		components.Collider,
		components.Meta,
		components.Agent,
		components.PathFollow,
	]
	agentFilter *ecs.Filter6[
		components.Position,
		components.Velocity,
		components.Collider,
		components.Meta,
		components.Agent,
		components.PathFollow,
	]
	resourceMapper *ecs.Map4[
		components.Position,
		components.Collider,
		components.Meta,
		components.Resource,
	]
	resourceFilter *ecs.Filter4[
		components.Position,
		components.Collider,
		components.Meta,
		components.Resource,
	]

	// Individual component mappers for lookups
	posMap   *ecs.Map[components.Position]
	metaMap  *ecs.Map[components.Meta]
	agentMap *ecs.Map[components.Agent]
	resMap   *ecs.Map[components.Resource]

	terrain *terrain.Map
	grid    *systems.PathGrid
	spatial *systems.KDTree

	tasks *HarvestQueue
	spawn *Distributor
	stats *telemetry.Collector
	out   *telemetry.OutputManager

	// One shared tree per kind; all continuation state lives in Agent.
	predatorTree behavior.Node[*ai.Context]
	preyTree     behavior.Node[*ai.Context]
	workerTree   behavior.Node[*ai.Context]

	tick         int32
	simTime      float64
	rebuildTimer float32
	syncTimer    float32
	nextID       [components.NumKinds]uint32

	// Scratch buffers reused across ticks.
	deadAgents    []ecs.Entity
	deadResources []ecs.Entity
	spatialItems  []systems.Item
	healthSamples []float64
	energySamples []float64
}

// NewWorld builds the terrain, navigation grid, and subsystems, and
// plans the initial zone spawns. Nothing is spawned yet; the queue is
// drained at the capped rate by Step.
func NewWorld(cfg *config.Config, seed int64, log *slog.Logger, out *telemetry.OutputManager) *World {
	if log == nil {
		log = slog.Default()
	}
	reg := ecs.NewWorld()
	rng := rand.New(rand.NewSource(seed))

	w := &World{
		ecs: reg,
		rng: rng,
		cfg: cfg,
		log: log,
		out: out,
		agentMapper: ecs.NewMap6[
			components.Position,
			components.Velocity,
			components.Collider,
			components.Meta,
			components.Agent,
			components.PathFollow,
		](reg),
		agentFilter: ecs.NewFilter6[
			components.Position,
			components.Velocity,
			components.Collider,
			components.Meta,
			components.Agent,
			components.PathFollow,
		](reg),
		resourceMapper: ecs.NewMap4[
			components.Position,
			components.Collider,
			components.Meta,
			components.Resource,
		](reg),
		resourceFilter: ecs.NewFilter4[
			components.Position,
			components.Collider,
			components.Meta,
			components.Resource,
		](reg),
		posMap:   ecs.NewMap[components.Position](reg),
		metaMap:  ecs.NewMap[components.Meta](reg),
		agentMap: ecs.NewMap[components.Agent](reg),
		resMap:   ecs.NewMap[components.Resource](reg),

		spatial: systems.NewKDTree(),
		stats:   telemetry.NewCollector(cfg.Telemetry.WindowSec, cfg.Derived.DT32),

		predatorTree: ai.PredatorTree(),
		preyTree:     ai.PreyTree(),
		workerTree:   ai.WorkerTree(),
	}

	w.terrain = terrain.Generate(cfg.Derived.TilesX, cfg.Derived.TilesY, cfg.Derived.TileSize, cfg.World.WaterLevel, seed)
	w.grid = systems.NewPathGrid(cfg.Derived.WorldW32, cfg.Derived.WorldH32, cfg.Derived.TileSize)
	w.blockWaterCells()

	w.tasks = NewHarvestQueue(reg, float32(cfg.Worker.WorkRate), log)
	w.spawn = NewDistributor(cfg, rng, log)
	w.spawn.PlanZones(w.grid, w.terrain, w.stats)

	return w
}

// blockWaterCells marks every water tile unwalkable. Terrain never
// changes at runtime, so this single pass is the whole sync.
func (w *World) blockWaterCells() {
	for gy := 0; gy < w.grid.Height(); gy++ {
		for gx := 0; gx < w.grid.Width(); gx++ {
			x, y := w.grid.GridToWorld(gx, gy)
			if w.terrain.IsWater(x, y) {
				w.grid.SetWalkable(gx, gy, false)
			}
		}
	}
}

// Grid exposes the navigation grid, read-only by convention.
func (w *World) Grid() *systems.PathGrid { return w.grid }

// Spatial exposes the current spatial index snapshot.
func (w *World) Spatial() *systems.KDTree { return w.spatial }

// Tasks exposes the harvest queue.
func (w *World) Tasks() *HarvestQueue { return w.tasks }

// Stats exposes the telemetry collector.
func (w *World) Stats() *telemetry.Collector { return w.stats }

// Tick returns the current simulation tick.
func (w *World) Tick() int32 { return w.tick }

// SpawnAgent creates an agent of the given kind at (x, y) with its
// spawn anchor there. Per-kind tuning comes from config.
func (w *World) SpawnAgent(kind components.Kind, x, y float32) ecs.Entity {
	cfg := w.cfg
	pos := components.Position{X: x, Y: y}
	vel := components.Velocity{}
	col := components.Collider{W: 10, H: 10, OffX: -5, OffY: -5}
	path := components.PathFollow{}

	agent := components.Agent{
		State:   components.StateIdle,
		Facing:  components.FaceDown,
		AnchorX: x,
		AnchorY: y,
		LastX:   x,
		LastY:   y,
		// Phase-desync the decision ticks so a burst of spawns does not
		// think in lockstep forever.
		AITimer:    randRange32(w.rng, 0, cfg.AI.Cadence+cfg.AI.CadenceJitter),
		StuckTimer: float32(cfg.Stuck.CheckInterval),
	}

	switch kind {
	case components.KindPredator:
		agent.MaxHealth = float32(cfg.Predator.MaxHealth)
		agent.Speed = float32(cfg.Predator.Speed)
		agent.DetectRange = float32(cfg.Predator.DetectRange)
		agent.AttackRange = float32(cfg.Predator.AttackRange)
		agent.AttackDamage = float32(cfg.Predator.AttackDamage)
		agent.AttackInterval = float32(cfg.Predator.AttackInterval)
		agent.Territory = float32(cfg.Predator.Territory)
	case components.KindPrey:
		agent.MaxHealth = float32(cfg.Prey.MaxHealth)
		agent.Speed = float32(cfg.Prey.Speed)
		agent.Territory = float32(cfg.Prey.Territory)
	case components.KindWorker:
		agent.MaxHealth = float32(cfg.Worker.MaxHealth)
		agent.Speed = float32(cfg.Worker.Speed)
		agent.Territory = float32(cfg.Worker.Territory)
		agent.MaxEnergy = float32(cfg.Worker.MaxEnergy)
		agent.Energy = agent.MaxEnergy
		agent.Job = components.JobWoodcutter
	}
	agent.Health = agent.MaxHealth

	meta := components.Meta{
		ID:     w.allocID(kind),
		Kind:   kind,
		Active: true,
		Layer:  components.LayerAgent,
	}

	e := w.agentMapper.NewEntity(&pos, &vel, &col, &meta, &agent, &path)
	w.stats.RecordSpawn(kind)
	return e
}

// SpawnResource creates a harvestable resource at (x, y) and blocks its
// footprint on the navigation grid.
func (w *World) SpawnResource(x, y float32) ecs.Entity {
	cfg := w.cfg
	size := float32(cfg.Resource.Size)
	pos := components.Position{X: x, Y: y}
	col := components.Collider{W: size, H: size, OffX: -size / 2, OffY: -size / 2}
	meta := components.Meta{
		ID:     w.allocID(components.KindResource),
		Kind:   components.KindResource,
		Active: true,
		Blocks: true,
		Layer:  components.LayerObstacle,
	}
	res := components.Resource{
		Yield:        float32(cfg.Resource.Yield),
		MaxYield:     float32(cfg.Resource.Yield),
		RespawnDelay: float32(cfg.Resource.RespawnDelay),
	}

	e := w.resourceMapper.NewEntity(&pos, &col, &meta, &res)
	w.grid.SetAreaWalkable(colliderRect(pos, col), false)
	w.stats.RecordSpawn(components.KindResource)
	return e
}

func (w *World) allocID(kind components.Kind) uint32 {
	w.nextID[kind]++
	return w.nextID[kind]
}

func colliderRect(pos components.Position, col components.Collider) systems.Rect {
	return systems.Rect{X: pos.X + col.OffX, Y: pos.Y + col.OffY, W: col.W, H: col.H}
}

func randRange32(rng *rand.Rand, lo, hi float64) float32 {
	if hi <= lo {
		return float32(lo)
	}
	return float32(lo + rng.Float64()*(hi-lo))
}

// CountByKind returns the active population per kind. Used by telemetry
// and tests.
func (w *World) CountByKind() [components.NumKinds]int {
	var counts [components.NumKinds]int
	agentQuery := w.agentFilter.Query()
	for agentQuery.Next() {
		_, _, _, meta, _, _ := agentQuery.Get()
		if meta.Active {
			counts[meta.Kind]++
		}
	}
	resQuery := w.resourceFilter.Query()
	for resQuery.Next() {
		_, _, meta, _ := resQuery.Get()
		if meta.Active {
			counts[meta.Kind]++
		}
	}
	return counts
}

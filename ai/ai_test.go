package ai

import (
	"math/rand"
	"testing"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/behavior"
	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/telemetry"
)

// fixture wires a minimal registry, an open navigation grid, and the
// default config for leaf and tree tests.
type fixture struct {
	world  *ecs.World
	cfg    *config.Config
	grid   *systems.PathGrid
	tree   *systems.KDTree
	rng    *rand.Rand
	stats  *telemetry.Collector
	mapper *ecs.Map4[components.Position, components.Meta, components.Agent, components.PathFollow]

	posMap   *ecs.Map[components.Position]
	metaMap  *ecs.Map[components.Meta]
	agentMap *ecs.Map[components.Agent]
	resMap   *ecs.Map[components.Resource]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	world := ecs.NewWorld()
	return &fixture{
		world:    world,
		cfg:      cfg,
		grid:     systems.NewPathGrid(cfg.Derived.WorldW32, cfg.Derived.WorldH32, cfg.Derived.TileSize),
		tree:     systems.NewKDTree(),
		rng:      rand.New(rand.NewSource(1)),
		stats:    telemetry.NewCollector(cfg.Telemetry.WindowSec, cfg.Derived.DT32),
		mapper:   ecs.NewMap4[components.Position, components.Meta, components.Agent, components.PathFollow](world),
		posMap:   ecs.NewMap[components.Position](world),
		metaMap:  ecs.NewMap[components.Meta](world),
		agentMap: ecs.NewMap[components.Agent](world),
		resMap:   ecs.NewMap[components.Resource](world),
	}
}

func (f *fixture) spawn(kind components.Kind, x, y float32) ecs.Entity {
	pos := components.Position{X: x, Y: y}
	meta := components.Meta{Kind: kind, Active: true}
	path := components.PathFollow{}
	agent := components.Agent{
		State: components.StateIdle, AnchorX: x, AnchorY: y,
	}
	switch kind {
	case components.KindPredator:
		agent.MaxHealth = float32(f.cfg.Predator.MaxHealth)
		agent.Speed = float32(f.cfg.Predator.Speed)
		agent.DetectRange = float32(f.cfg.Predator.DetectRange)
		agent.AttackRange = float32(f.cfg.Predator.AttackRange)
		agent.AttackDamage = float32(f.cfg.Predator.AttackDamage)
		agent.AttackInterval = float32(f.cfg.Predator.AttackInterval)
		agent.Territory = float32(f.cfg.Predator.Territory)
	case components.KindPrey:
		agent.MaxHealth = float32(f.cfg.Prey.MaxHealth)
		agent.Speed = float32(f.cfg.Prey.Speed)
		agent.Territory = float32(f.cfg.Prey.Territory)
	case components.KindWorker:
		agent.MaxHealth = float32(f.cfg.Worker.MaxHealth)
		agent.Speed = float32(f.cfg.Worker.Speed)
		agent.Territory = float32(f.cfg.Worker.Territory)
		agent.MaxEnergy = float32(f.cfg.Worker.MaxEnergy)
		agent.Energy = agent.MaxEnergy
		agent.Job = components.JobWoodcutter
	}
	agent.Health = agent.MaxHealth
	return f.mapper.NewEntity(&pos, &meta, &agent, &path)
}

// rebuild refreshes the spatial index from all live entities.
func (f *fixture) rebuild() {
	var items []systems.Item
	filter := ecs.NewFilter2[components.Position, components.Meta](f.world)
	query := filter.Query()
	for query.Next() {
		pos, meta := query.Get()
		if meta.Active {
			items = append(items, systems.Item{E: query.Entity(), X: pos.X, Y: pos.Y})
		}
	}
	f.tree.Rebuild(items)
}

func (f *fixture) ctx(e ecs.Entity) *Context {
	return &Context{
		World:    f.world,
		Rng:      f.rng,
		Cfg:      f.cfg,
		DT:       float32(f.cfg.AI.Cadence),
		Spatial:  f.tree,
		Grid:     f.grid,
		Stats:    f.stats,
		Self:     e,
		Pos:      f.posMap.Get(e),
		Agent:    f.agentMap.Get(e),
		Path:     f.posPath(e),
		PosMap:   f.posMap,
		MetaMap:  f.metaMap,
		AgentMap: f.agentMap,
		ResMap:   f.resMap,
	}
}

func (f *fixture) posPath(e ecs.Entity) *components.PathFollow {
	return ecs.NewMap[components.PathFollow](f.world).Get(e)
}

// TestPredatorEngagesAndRateLimitsAttacks runs the canonical hunt:
// predator anchored at the origin with territory 250, prey at (100, 0),
// detection 150, attack range 40. The predator acquires the prey, paths
// toward it, and once in range applies exactly one damage instance per
// cooldown window.
func TestPredatorEngagesAndRateLimitsAttacks(t *testing.T) {
	f := newFixture(t)
	pred := f.spawn(components.KindPredator, 0, 0)
	prey := f.spawn(components.KindPrey, 100, 0)
	f.rebuild()

	tree := PredatorTree()

	ctx := f.ctx(pred)
	if got := tree.Tick(ctx); got != behavior.Running {
		t.Fatalf("first tick = %v, want running (chasing)", got)
	}
	if !ctx.Agent.HasThreat() {
		t.Fatal("predator did not acquire the prey")
	}
	if !ctx.Path.HasPath() {
		t.Fatal("predator has no path toward the prey")
	}

	// Close the distance to inside attack range.
	ctx.Pos.X = 70
	startHealth := f.agentMap.Get(prey).Health

	tree.Tick(ctx)
	afterFirst := f.agentMap.Get(prey).Health
	if afterFirst != startHealth-ctx.Agent.AttackDamage {
		t.Fatalf("first strike: health %f, want %f", afterFirst, startHealth-ctx.Agent.AttackDamage)
	}
	if ctx.Path.HasPath() {
		t.Error("predator still pathing while in attack range")
	}

	// Cooldown window: interval 1.5s at cadence 0.4s means the next
	// three ticks must not strike again.
	elapsed := float32(0)
	for elapsed+ctx.DT < ctx.Agent.AttackInterval {
		tree.Tick(ctx)
		elapsed += ctx.DT
	}
	if got := f.agentMap.Get(prey).Health; got != afterFirst {
		t.Fatalf("struck again inside cooldown: health %f", got)
	}

	tree.Tick(ctx)
	if got := f.agentMap.Get(prey).Health; got != afterFirst-ctx.Agent.AttackDamage {
		t.Errorf("second strike after cooldown: health %f, want %f",
			got, afterFirst-ctx.Agent.AttackDamage)
	}
}

// TestPredatorAbandonsBeyondTerritory verifies a predator outside its
// territory drops the chase and heads home.
func TestPredatorAbandonsBeyondTerritory(t *testing.T) {
	f := newFixture(t)
	pred := f.spawn(components.KindPredator, 0, 0)
	f.spawn(components.KindPrey, 100, 0)
	f.rebuild()

	tree := PredatorTree()
	ctx := f.ctx(pred)
	tree.Tick(ctx)
	if !ctx.Agent.HasThreat() {
		t.Fatal("no threat acquired")
	}

	// Drag the predator past its territory edge mid-chase.
	ctx.Pos.X = ctx.Agent.Territory + 20
	systems.ClearPath(ctx.Path)
	tree.Tick(ctx)

	if ctx.Agent.HasThreat() {
		t.Error("threat not abandoned outside territory")
	}
	if !ctx.Path.HasPath() {
		t.Fatal("no homeward path committed")
	}
	dest := ctx.Path.Destination()
	if dist(dest.X, dest.Y, ctx.Agent.AnchorX, ctx.Agent.AnchorY) > ctx.Agent.Territory {
		t.Errorf("homeward destination %v outside territory", dest)
	}
}

// TestPredatorDisengagesWhenPreyEscapes verifies the chase-slack bound.
func TestPredatorDisengagesWhenPreyEscapes(t *testing.T) {
	f := newFixture(t)
	pred := f.spawn(components.KindPredator, 0, 0)
	prey := f.spawn(components.KindPrey, 100, 0)
	f.rebuild()

	tree := PredatorTree()
	ctx := f.ctx(pred)
	tree.Tick(ctx)

	// Prey teleports beyond detect * slack.
	escape := ctx.Agent.DetectRange*float32(f.cfg.Predator.ChaseSlack) + 10
	f.posMap.Get(prey).X = escape
	tree.Tick(ctx)

	if ctx.Agent.HasThreat() {
		t.Error("threat retained beyond pursuit envelope")
	}
}

// TestStaleThreatIsCleared verifies a dead threat handle reads as "no
// threat" and is nulled rather than dereferenced.
func TestStaleThreatIsCleared(t *testing.T) {
	f := newFixture(t)
	pred := f.spawn(components.KindPredator, 0, 0)
	prey := f.spawn(components.KindPrey, 100, 0)
	f.rebuild()

	ctx := f.ctx(pred)
	ctx.Agent.Threat = prey
	f.mapper.Remove(prey)

	if ctx.ThreatAlive() {
		t.Fatal("removed entity reported alive")
	}
	if ctx.Agent.HasThreat() {
		t.Error("stale threat handle not cleared")
	}
}

// TestPreyFleesAwayAndClearsWhenSafe verifies flee direction and the
// safety-distance release.
func TestPreyFleesAwayAndClearsWhenSafe(t *testing.T) {
	f := newFixture(t)
	prey := f.spawn(components.KindPrey, 400, 400)
	pred := f.spawn(components.KindPredator, 360, 400)
	f.rebuild()

	ctx := f.ctx(prey)
	ctx.Agent.Threat = pred
	ctx.Agent.UnderAttack = true

	tree := PreyTree()
	if got := tree.Tick(ctx); got != behavior.Running {
		t.Fatalf("flee tick = %v, want running", got)
	}
	if ctx.Agent.State != components.StateFlee {
		t.Errorf("state = %v, want flee", ctx.Agent.State)
	}
	if !ctx.Path.HasPath() {
		t.Fatal("no flee path committed")
	}
	dest := ctx.Path.Destination()
	if dest.X <= 400 {
		t.Errorf("flee destination %v not away from threat at (360, 400)", dest)
	}

	// Past the safety distance the threat is released.
	ctx.Pos.X = 400 + float32(f.cfg.Prey.SafeDistance) + 10
	systems.ClearPath(ctx.Path)
	tree.Tick(ctx)
	if ctx.Agent.HasThreat() {
		t.Error("threat retained past safety distance")
	}
}

// TestPreyFleeStaysInTerritory verifies flee hops are clamped into the
// territory circle.
func TestPreyFleeStaysInTerritory(t *testing.T) {
	f := newFixture(t)
	prey := f.spawn(components.KindPrey, 400, 400)
	// Threat positioned so the raw flee target would leave the territory.
	terr := float32(f.cfg.Prey.Territory)
	pos := f.posMap.Get(prey)
	pos.X = 400 + terr - 5
	pred := f.spawn(components.KindPredator, pos.X-20, 400)
	f.rebuild()

	ctx := f.ctx(prey)
	ctx.Agent.Threat = pred
	ctx.Agent.UnderAttack = true

	PreyTree().Tick(ctx)
	if !ctx.Path.HasPath() {
		t.Fatal("no flee path committed")
	}
	dest := ctx.Path.Destination()
	if d := dist(dest.X, dest.Y, 400, 400); d > terr+float32(f.cfg.World.TileSize) {
		t.Errorf("flee destination %v is %f from anchor, territory %f", dest, d, terr)
	}
}

// fakeTasks is a scripted TaskSource.
type fakeTasks struct {
	next      *components.Task
	hasWork   bool
	completed bool
}

func (s *fakeTasks) RequestNextTask(agentID uint32, job components.JobType) *components.Task {
	t := s.next
	s.next = nil
	return t
}

func (s *fakeTasks) ExecuteTask(dt float32, ctx *Context, task *components.Task) bool {
	return s.completed
}

func (s *fakeTasks) HasWork(job components.JobType) bool { return s.hasWork }

// TestWorkerCriticalEnergyPreemptsTask is the priority-order
// regression: a worker below critical energy rests even with a task in
// progress.
func TestWorkerCriticalEnergyPreemptsTask(t *testing.T) {
	f := newFixture(t)
	worker := f.spawn(components.KindWorker, 500, 500)
	f.rebuild()

	ctx := f.ctx(worker)
	ctx.Tasks = &fakeTasks{}
	ctx.Agent.Energy = float32(f.cfg.Worker.CriticalEnergy) - 1
	ctx.Agent.Task = components.Task{WorkX: 900, WorkY: 900, Active: true}

	before := ctx.Agent.Energy
	WorkerTree().Tick(ctx)

	if ctx.Agent.State == components.StateWork {
		t.Fatal("worker chose its task over resting at critical energy")
	}
	// At home already, so the rest leaf recovers energy immediately.
	if ctx.Agent.Energy <= before {
		t.Errorf("energy did not recover: %f -> %f", before, ctx.Agent.Energy)
	}
}

// TestWorkerAttackInterruptDropsTask verifies the under-attack latch
// preempts everything and abandons the task.
func TestWorkerAttackInterruptDropsTask(t *testing.T) {
	f := newFixture(t)
	worker := f.spawn(components.KindWorker, 500, 500)
	pred := f.spawn(components.KindPredator, 520, 500)
	f.rebuild()

	ctx := f.ctx(worker)
	ctx.Tasks = &fakeTasks{}
	ctx.Agent.Task = components.Task{WorkX: 520, WorkY: 500, Active: true}
	ctx.Agent.Threat = pred
	ctx.Agent.UnderAttack = true

	WorkerTree().Tick(ctx)

	if ctx.Agent.State != components.StateFlee {
		t.Errorf("state = %v, want flee", ctx.Agent.State)
	}
	if ctx.Agent.Task.Active {
		t.Error("task not abandoned on attack interrupt")
	}
}

// TestWorkerExecutesAssignedTask verifies a healthy worker walks to the
// work site and completes through the task source.
func TestWorkerExecutesAssignedTask(t *testing.T) {
	f := newFixture(t)
	worker := f.spawn(components.KindWorker, 500, 500)
	f.rebuild()

	ctx := f.ctx(worker)
	src := &fakeTasks{completed: true}
	ctx.Tasks = src
	ctx.Agent.Task = components.Task{WorkX: 504, WorkY: 500, Active: true}

	if got := WorkerTree().Tick(ctx); got != behavior.Success {
		t.Fatalf("tick = %v, want success (task completed at site)", got)
	}
	if ctx.Agent.Task.Active {
		t.Error("completed task still active")
	}
}

// TestWorkerRequestsTaskWhenIdle verifies the request branch pulls from
// the queue.
func TestWorkerRequestsTaskWhenIdle(t *testing.T) {
	f := newFixture(t)
	worker := f.spawn(components.KindWorker, 500, 500)
	f.rebuild()

	ctx := f.ctx(worker)
	task := components.Task{WorkX: 600, WorkY: 600, Job: components.JobWoodcutter, Active: true}
	ctx.Tasks = &fakeTasks{next: &task, hasWork: true}

	WorkerTree().Tick(ctx)
	if !ctx.Agent.Task.Active {
		t.Fatal("idle worker did not take the queued task")
	}
	if ctx.Agent.Task.WorkX != 600 {
		t.Errorf("took wrong task: %+v", ctx.Agent.Task)
	}
}

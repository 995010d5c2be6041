// Package telemetry accumulates simulation events into fixed windows
// and writes them as CSV for offline analysis.
package telemetry

import "github.com/pthm-cable/meadow/components"

// Collector accumulates events within time windows and produces WindowStats.
// All Record methods are safe on a nil receiver so callers can run with
// telemetry disabled.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float32

	windowStartTick int32

	// Event counters for the current window.
	spawns          [components.NumKinds]int
	deaths          [components.NumKinds]int
	attacks         int
	kills           int
	flees           int
	pathsComputed   int
	pathsFailed     int
	stuckRecoveries int
	tasksCompleted  int
	spawnsSkipped   int
}

// NewCollector creates a stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds.
// dt: seconds per tick (used for tick-to-time conversion).
func NewCollector(windowDurationSec float64, dt float32) *Collector {
	ticksPerWindow := int32(windowDurationSec / float64(dt))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}
	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// RecordSpawn records an entity entering the world.
func (c *Collector) RecordSpawn(kind components.Kind) {
	if c == nil {
		return
	}
	c.spawns[kind]++
}

// RecordDeath records an entity being deactivated.
func (c *Collector) RecordDeath(kind components.Kind) {
	if c == nil {
		return
	}
	c.deaths[kind]++
}

// RecordAttack records one damage instance landing.
func (c *Collector) RecordAttack() {
	if c == nil {
		return
	}
	c.attacks++
}

// RecordKill records a damage instance that dropped health to zero.
func (c *Collector) RecordKill() {
	if c == nil {
		return
	}
	c.kills++
}

// RecordFlee records an agent entering the flee branch.
func (c *Collector) RecordFlee() {
	if c == nil {
		return
	}
	c.flees++
}

// RecordPathComputed records a successful path search.
func (c *Collector) RecordPathComputed() {
	if c == nil {
		return
	}
	c.pathsComputed++
}

// RecordPathFailed records a path search that found no route.
func (c *Collector) RecordPathFailed() {
	if c == nil {
		return
	}
	c.pathsFailed++
}

// RecordStuckRecovery records a stuck agent being recovered.
func (c *Collector) RecordStuckRecovery() {
	if c == nil {
		return
	}
	c.stuckRecoveries++
}

// RecordTaskCompleted records a worker task reported complete.
func (c *Collector) RecordTaskCompleted() {
	if c == nil {
		return
	}
	c.tasksCompleted++
}

// RecordSpawnSkipped records a spawn job dropped by validation.
func (c *Collector) RecordSpawnSkipped() {
	if c == nil {
		return
	}
	c.spawnsSkipped++
}

// WindowReady reports whether the current window ends at this tick.
func (c *Collector) WindowReady(tick int32) bool {
	if c == nil {
		return false
	}
	return tick-c.windowStartTick >= c.windowDurationTicks
}

// Flush closes the current window and resets event counters.
// Population counts and health/energy samples are supplied by the
// caller, which owns the registry.
func (c *Collector) Flush(tick int32, pop [components.NumKinds]int, healths, energies []float64) WindowStats {
	if c == nil {
		return WindowStats{}
	}

	s := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   tick,
		SimTimeSec:      float64(tick) * float64(c.dt),

		Predators: pop[components.KindPredator],
		Prey:      pop[components.KindPrey],
		Workers:   pop[components.KindWorker],
		Resources: pop[components.KindResource],

		Attacks:         c.attacks,
		Kills:           c.kills,
		Flees:           c.flees,
		PathsComputed:   c.pathsComputed,
		PathsFailed:     c.pathsFailed,
		StuckRecoveries: c.stuckRecoveries,
		TasksCompleted:  c.tasksCompleted,
		SpawnsSkipped:   c.spawnsSkipped,
	}
	for k := components.Kind(0); k < components.NumKinds; k++ {
		s.Spawns += c.spawns[k]
		s.Deaths += c.deaths[k]
	}
	s.HealthMean, s.HealthStd = meanStd(healths)
	s.EnergyMean, s.EnergyStd = meanStd(energies)
	s.EnergyP10 = Percentile(energies, 0.1)
	s.EnergyP50 = Percentile(energies, 0.5)
	s.EnergyP90 = Percentile(energies, 0.9)

	c.windowStartTick = tick
	c.spawns = [components.NumKinds]int{}
	c.deaths = [components.NumKinds]int{}
	c.attacks = 0
	c.kills = 0
	c.flees = 0
	c.pathsComputed = 0
	c.pathsFailed = 0
	c.stuckRecoveries = 0
	c.tasksCompleted = 0
	c.spawnsSkipped = 0

	return s
}

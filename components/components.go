// Package components defines ECS components for the simulation.
package components

import (
	"github.com/mlange-42/ark/ecs"
)

// Kind categorizes simulated entities.
type Kind uint8

const (
	KindPredator Kind = iota
	KindPrey
	KindWorker
	KindResource
	NumKinds
)

// String returns the display name for a Kind.
func (k Kind) String() string {
	switch k {
	case KindPredator:
		return "predator"
	case KindPrey:
		return "prey"
	case KindWorker:
		return "worker"
	case KindResource:
		return "resource"
	}
	return "unknown"
}

// Collision layers. Stored on Meta so queries can filter without
// inspecting the full component set.
const (
	LayerAgent uint8 = iota
	LayerObstacle
)

// Position represents an entity's world position.
type Position struct {
	X, Y float32
}

// Velocity represents an entity's velocity in world units per second.
type Velocity struct {
	X, Y float32
}

// Collider defines an axis-aligned collision rectangle relative to Position.
type Collider struct {
	OffX, OffY float32 // Offset of the rect origin from Position
	W, H       float32
}

// Meta holds identity and lifetime state shared by every entity.
// IDs are monotonic per Kind and never reused while the entity is
// registered. Inactive entities are skipped by queries and physically
// removed during the scheduler's sweep pass.
type Meta struct {
	ID     uint32
	Kind   Kind
	Active bool
	Blocks bool // Entity blocks movement; kept in sync with the path grid
	Layer  uint8
}

// AgentState is the discrete behavior state consumed by the animation layer.
type AgentState uint8

const (
	StateIdle AgentState = iota
	StateWander
	StateFlee
	StateAttack
	StateWork
)

// String returns the animation-facing name for an AgentState.
func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWander:
		return "wander"
	case StateFlee:
		return "flee"
	case StateAttack:
		return "attack"
	case StateWork:
		return "work"
	}
	return "idle"
}

// Facing is a 4-way facing direction.
type Facing uint8

const (
	FaceDown Facing = iota
	FaceUp
	FaceLeft
	FaceRight
)

// String returns the animation-facing name for a Facing.
func (f Facing) String() string {
	switch f {
	case FaceDown:
		return "down"
	case FaceUp:
		return "up"
	case FaceLeft:
		return "left"
	case FaceRight:
		return "right"
	}
	return "down"
}

// FacingFrom returns the dominant 4-way facing for a movement vector.
func FacingFrom(dx, dy float32) Facing {
	if dx*dx > dy*dy {
		if dx < 0 {
			return FaceLeft
		}
		return FaceRight
	}
	if dy < 0 {
		return FaceUp
	}
	return FaceDown
}

// JobType identifies a worker profession for task requests.
type JobType uint8

const (
	JobNone JobType = iota
	JobWoodcutter
	JobForager
)

// Task is a unit of externally assigned work. The worker AI only reads
// the work location and Active; task internals belong to the task queue.
type Task struct {
	Target       ecs.Entity // Resource being worked, if any
	WorkX, WorkY float32
	Job          JobType
	Active       bool
}

// Agent holds per-agent AI and combat state. The behavior tree mutates
// this component through the per-agent context; the movement and
// animation layers only read State, Facing and Speed.
type Agent struct {
	Health    float32
	MaxHealth float32
	Speed     float32

	State  AgentState
	Facing Facing

	// Threat is a weak reference: the target may die or be removed
	// independently, so every dereference must check liveness first.
	Threat      ecs.Entity
	UnderAttack bool // Hard-interrupt latch set when struck; cleared by the flee branch

	// Spawn anchor and territory bound all autonomous movement.
	AnchorX, AnchorY float32
	Territory        float32

	// Per-kind combat/perception tuning, fixed at spawn.
	DetectRange    float32
	AttackRange    float32
	AttackDamage   float32
	AttackInterval float32 // Seconds between damage instances

	// Worker needs.
	Energy    float32
	MaxEnergy float32
	Job       JobType
	Task      Task

	// Timers, all in seconds.
	AITimer     float32 // Counts down to the next decision tick
	AttackTimer float32 // Counts down to the next allowed damage instance
	PauseTimer  float32 // Grazing/idle pause remaining
	StuckTimer  float32 // Counts down to the next displacement check

	// Last sampled position for stuck detection.
	LastX, LastY float32
}

// HasThreat reports whether a threat handle is set. Liveness must still
// be checked against the registry before use.
func (a *Agent) HasThreat() bool {
	return a.Threat != (ecs.Entity{})
}

// ClearThreat zeroes the threat handle and the under-attack latch.
func (a *Agent) ClearThreat() {
	a.Threat = ecs.Entity{}
	a.UnderAttack = false
}

// ClipName returns the animation clip name consumed by the renderer,
// following the "{state}-{direction}" convention.
func (a *Agent) ClipName() string {
	return a.State.String() + "-" + a.Facing.String()
}

// Resource holds harvestable resource state. Depleted resources are
// deactivated and either respawn after RespawnDelay or are swept.
type Resource struct {
	Yield        float32
	MaxYield     float32
	RespawnDelay float32 // Seconds; <= 0 means no respawn, swept when depleted
	RespawnIn    float32 // Countdown while depleted
}

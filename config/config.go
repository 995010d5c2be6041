// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Spatial   SpatialConfig   `yaml:"spatial"`
	AI        AIConfig        `yaml:"ai"`
	Predator  PredatorConfig  `yaml:"predator"`
	Prey      PreyConfig      `yaml:"prey"`
	Worker    WorkerConfig    `yaml:"worker"`
	Wander    WanderConfig    `yaml:"wander"`
	Stuck     StuckConfig     `yaml:"stuck"`
	Spawn     SpawnConfig     `yaml:"spawn"`
	Resource  ResourceConfig  `yaml:"resource"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds world dimensions and tile classification parameters.
type WorldConfig struct {
	Width      int     `yaml:"width"`       // World width in world units
	Height     int     `yaml:"height"`      // World height in world units
	TileSize   float64 `yaml:"tile_size"`   // Tile edge length; also the path grid cell size
	WaterLevel float64 `yaml:"water_level"` // Noise threshold below which tiles are water (0 disables)
}

// PhysicsConfig holds simulation stepping parameters.
type PhysicsConfig struct {
	DT float64 `yaml:"dt"` // Seconds per simulation tick
}

// SpatialConfig holds spatial index parameters.
type SpatialConfig struct {
	RebuildInterval float64 `yaml:"rebuild_interval"` // Seconds between full k-d tree rebuilds
}

// AIConfig holds decision cadence parameters shared by all agent kinds.
type AIConfig struct {
	Cadence       float64 `yaml:"cadence"`        // Seconds between behavior tree ticks
	CadenceJitter float64 `yaml:"cadence_jitter"` // Random extra per tick to desync agents
}

// PredatorConfig holds predator tuning.
type PredatorConfig struct {
	MaxHealth      float64 `yaml:"max_health"`
	Speed          float64 `yaml:"speed"`
	DetectRange    float64 `yaml:"detect_range"`
	AttackRange    float64 `yaml:"attack_range"`
	AttackDamage   float64 `yaml:"attack_damage"`
	AttackInterval float64 `yaml:"attack_interval"` // Seconds between damage instances
	ChaseSlack     float64 `yaml:"chase_slack"`     // Disengage beyond detect_range * this
	RepathDistance float64 `yaml:"repath_distance"` // Re-route when remaining path drops below this
	Territory      float64 `yaml:"territory"`
}

// PreyConfig holds prey tuning.
type PreyConfig struct {
	MaxHealth    float64 `yaml:"max_health"`
	Speed        float64 `yaml:"speed"`
	FleePush     float64 `yaml:"flee_push"`     // Distance of one flee hop away from the threat
	SafeDistance float64 `yaml:"safe_distance"` // Threat cleared beyond this
	Territory    float64 `yaml:"territory"`
}

// WorkerConfig holds worker tuning.
type WorkerConfig struct {
	MaxHealth      float64 `yaml:"max_health"`
	Speed          float64 `yaml:"speed"`
	MaxEnergy      float64 `yaml:"max_energy"`
	CriticalEnergy float64 `yaml:"critical_energy"` // Below this: go home and rest, even mid-task
	LowEnergy      float64 `yaml:"low_energy"`      // Below this: eat/forage before working
	RestRate       float64 `yaml:"rest_rate"`       // Energy per second while resting at home
	ForageRate     float64 `yaml:"forage_rate"`     // Energy per second while eating
	DrainRate      float64 `yaml:"drain_rate"`      // Energy per second while active
	WorkRate       float64 `yaml:"work_rate"`       // Resource yield harvested per second
	HomeRadius     float64 `yaml:"home_radius"`     // Arrival tolerance around the spawn anchor
	Territory      float64 `yaml:"territory"`
}

// WanderConfig holds shared wander parameters.
type WanderConfig struct {
	MinDist  float64 `yaml:"min_dist"`  // Wander target distance range from current position
	MaxDist  float64 `yaml:"max_dist"`
	PauseMin float64 `yaml:"pause_min"` // Stationary pause range in seconds
	PauseMax float64 `yaml:"pause_max"`
}

// StuckConfig holds stuck detection and recovery parameters.
type StuckConfig struct {
	CheckInterval   float64 `yaml:"check_interval"`   // Seconds between displacement checks
	MinDisplacement float64 `yaml:"min_displacement"` // Below this since the last check counts as stuck
	ProbeRadius     int     `yaml:"probe_radius"`     // Radial probe distance in cells before teleporting home
}

// SpawnConfig holds natural-distribution spawn parameters.
type SpawnConfig struct {
	MaxPerTick    int          `yaml:"max_per_tick"`   // Spawn queue drain cap per tick
	MinSpacing    float64      `yaml:"min_spacing"`    // Poisson-disk minimum spacing in world units
	RetryLimit    int          `yaml:"retry_limit"`    // Candidate attempts per active point
	ClusterCount  int          `yaml:"cluster_count"`  // Sub-centers per zone; 0 disables clustering
	ClusterRadius float64      `yaml:"cluster_radius"` // Candidate pull-in radius around sub-centers
	Zones         []ZoneConfig `yaml:"zones"`
}

// ZoneConfig describes one spawn zone from the map-object description:
// a named rectangle with a free-text tag mapped to a spawn type.
type ZoneConfig struct {
	Name           string  `yaml:"name"`
	Tag            string  `yaml:"tag"`
	X              float64 `yaml:"x"`
	Y              float64 `yaml:"y"`
	W              float64 `yaml:"w"`
	H              float64 `yaml:"h"`
	TilesPerEntity float64 `yaml:"tiles_per_entity"` // Density: one entity per this many tiles
}

// ResourceConfig holds harvestable resource parameters.
type ResourceConfig struct {
	Yield        float64 `yaml:"yield"`         // Starting yield per resource
	RespawnDelay float64 `yaml:"respawn_delay"` // Seconds before a depleted resource regrows; 0 sweeps it
	Size         float64 `yaml:"size"`          // Collider edge length in world units
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	WindowSec float64 `yaml:"window_sec"` // Stats window length in simulation seconds
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32      float32 // Physics.DT as float32
	WorldW32  float32
	WorldH32  float32
	TileSize  float32
	TilesX    int // World width in tiles
	TilesY    int // World height in tiles
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Physics.DT)
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)
	c.Derived.TileSize = float32(c.World.TileSize)
	if c.World.TileSize > 0 {
		c.Derived.TilesX = int(float64(c.World.Width) / c.World.TileSize)
		c.Derived.TilesY = int(float64(c.World.Height) / c.World.TileSize)
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

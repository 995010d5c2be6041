package sim

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/pthm-cable/meadow/components"
	"github.com/pthm-cable/meadow/config"
	"github.com/pthm-cable/meadow/systems"
	"github.com/pthm-cable/meadow/telemetry"
	"github.com/pthm-cable/meadow/terrain"
)

// SpawnRequest is one queued entity placement.
type SpawnRequest struct {
	Kind components.Kind
	X, Y float32
}

// zoneKinds maps map-object zone tags to spawn kinds. Unknown tags are
// logged and skipped, never fatal.
var zoneKinds = map[string]components.Kind{
	"forest":  components.KindResource,
	"meadow":  components.KindPrey,
	"den":     components.KindPredator,
	"village": components.KindWorker,
}

// Distributor plans natural-looking spawn placements per zone and feeds
// them out through a rate-capped queue.
type Distributor struct {
	cfg   *config.Config
	rng   *rand.Rand
	log   *slog.Logger
	queue []SpawnRequest
}

// NewDistributor creates a spawn distributor.
func NewDistributor(cfg *config.Config, rng *rand.Rand, log *slog.Logger) *Distributor {
	return &Distributor{cfg: cfg, rng: rng, log: log}
}

// Pending returns the number of queued spawn requests.
func (d *Distributor) Pending() int { return len(d.queue) }

// PlanZones computes Poisson-disk placements for every configured zone
// and queues them. Target count per zone is its tile area divided by
// the configured tiles-per-entity density.
func (d *Distributor) PlanZones(grid *systems.PathGrid, t *terrain.Map, stats *telemetry.Collector) {
	tileArea := d.cfg.World.TileSize * d.cfg.World.TileSize
	for _, zone := range d.cfg.Spawn.Zones {
		kind, ok := zoneKinds[zone.Tag]
		if !ok {
			d.log.Warn("unknown zone tag, skipping zone", "zone", zone.Name, "tag", zone.Tag)
			continue
		}
		target := int(zone.W * zone.H / tileArea / zone.TilesPerEntity)
		if target <= 0 {
			continue
		}
		points := d.poissonDisk(zone, target, grid, t)
		for _, p := range points {
			d.queue = append(d.queue, SpawnRequest{Kind: kind, X: p[0], Y: p[1]})
		}
		if missed := target - len(points); missed > 0 {
			for i := 0; i < missed; i++ {
				stats.RecordSpawnSkipped()
			}
			d.log.Info("zone spawn budget not met",
				"zone", zone.Name, "target", target, "placed", len(points))
		}
	}
}

// Drain pops up to max requests, spawning each through the callback.
// Returns the number spawned.
func (d *Distributor) Drain(max int, spawn func(SpawnRequest)) int {
	n := max
	if n > len(d.queue) {
		n = len(d.queue)
	}
	for i := 0; i < n; i++ {
		spawn(d.queue[i])
	}
	d.queue = d.queue[n:]
	return n
}

// poissonDisk runs Bridson's algorithm inside the zone rectangle:
// candidates ring each active point at [r, 2r), each point gets a fixed
// retry budget, and rejected points retire from the active list. With
// clustering enabled, placements are further confined to discs around
// random sub-centers so the result reads as groves rather than an even
// sprinkle.
func (d *Distributor) poissonDisk(zone config.ZoneConfig, target int, grid *systems.PathGrid, t *terrain.Map) [][2]float32 {
	r := float32(d.cfg.Spawn.MinSpacing)
	retries := d.cfg.Spawn.RetryLimit
	if retries <= 0 {
		retries = 30
	}

	var centers [][2]float32
	if d.cfg.Spawn.ClusterCount > 0 {
		for i := 0; i < d.cfg.Spawn.ClusterCount; i++ {
			centers = append(centers, [2]float32{
				float32(zone.X + d.rng.Float64()*zone.W),
				float32(zone.Y + d.rng.Float64()*zone.H),
			})
		}
	}

	valid := func(x, y float32) bool {
		if x < float32(zone.X) || y < float32(zone.Y) ||
			x >= float32(zone.X+zone.W) || y >= float32(zone.Y+zone.H) {
			return false
		}
		if t.IsWater(x, y) || !grid.IsWalkable(x, y) {
			return false
		}
		if centers == nil {
			return true
		}
		cr := float32(d.cfg.Spawn.ClusterRadius)
		for _, c := range centers {
			dx, dy := x-c[0], y-c[1]
			if dx*dx+dy*dy <= cr*cr {
				return true
			}
		}
		return false
	}

	// Acceleration grid with cell edge r/sqrt(2) so each cell holds at
	// most one accepted point.
	cell := r / float32(math.Sqrt2)
	cols := int(float32(zone.W)/cell) + 1
	rows := int(float32(zone.H)/cell) + 1
	occupied := make([]int32, cols*rows)
	for i := range occupied {
		occupied[i] = -1
	}
	cellOf := func(x, y float32) (int, int) {
		return int((x - float32(zone.X)) / cell), int((y - float32(zone.Y)) / cell)
	}

	var points [][2]float32
	farEnough := func(x, y float32) bool {
		cx, cy := cellOf(x, y)
		for gy := cy - 2; gy <= cy+2; gy++ {
			if gy < 0 || gy >= rows {
				continue
			}
			for gx := cx - 2; gx <= cx+2; gx++ {
				if gx < 0 || gx >= cols {
					continue
				}
				idx := occupied[gy*cols+gx]
				if idx < 0 {
					continue
				}
				dx := points[idx][0] - x
				dy := points[idx][1] - y
				if dx*dx+dy*dy < r*r {
					return false
				}
			}
		}
		return true
	}
	accept := func(x, y float32) {
		cx, cy := cellOf(x, y)
		points = append(points, [2]float32{x, y})
		occupied[cy*cols+cx] = int32(len(points) - 1)
	}

	// Seed the active list: one point per cluster center, or one random
	// point for unclustered zones.
	var active []int32
	seed := func(x, y float32) {
		for i := 0; i < retries; i++ {
			sx := x + (d.rng.Float32()-0.5)*2*r
			sy := y + (d.rng.Float32()-0.5)*2*r
			if valid(sx, sy) && farEnough(sx, sy) {
				accept(sx, sy)
				active = append(active, int32(len(points)-1))
				return
			}
		}
	}
	if centers != nil {
		for _, c := range centers {
			seed(c[0], c[1])
		}
	} else {
		seed(float32(zone.X+zone.W/2), float32(zone.Y+zone.H/2))
	}

	for len(active) > 0 && len(points) < target {
		pick := d.rng.Intn(len(active))
		p := points[active[pick]]

		placed := false
		for i := 0; i < retries; i++ {
			ang := d.rng.Float64() * 2 * math.Pi
			dist := r * (1 + d.rng.Float32())
			x := p[0] + float32(math.Cos(ang))*dist
			y := p[1] + float32(math.Sin(ang))*dist
			if !valid(x, y) || !farEnough(x, y) {
				continue
			}
			accept(x, y)
			active = append(active, int32(len(points)-1))
			placed = true
			break
		}
		if !placed {
			active[pick] = active[len(active)-1]
			active = active[:len(active)-1]
		}
	}
	return points
}

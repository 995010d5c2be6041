// Package terrain generates the per-tile ground classification consumed
// once at world sync to seed the path grid. It stands in for the
// external tile-map collaborator: the AI core only ever sees walkable
// and water classes.
package terrain

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// Class is the navigation classification of one tile.
type Class uint8

const (
	ClassGround Class = iota
	ClassWater
)

// Map is a fixed grid of tile classifications.
type Map struct {
	cells    []Class
	width    int
	height   int
	tileSize float32
}

// NoiseScale controls the feature size of generated water bodies.
// Smaller values produce larger, smoother lakes.
const NoiseScale = 0.035

// Generate builds a map of widthTiles x heightTiles tiles from seeded
// simplex noise. Tiles whose noise value falls below waterLevel become
// water; waterLevel 0 yields an all-ground map.
func Generate(widthTiles, heightTiles int, tileSize float32, waterLevel float64, seed int64) *Map {
	m := &Map{
		cells:    make([]Class, widthTiles*heightTiles),
		width:    widthTiles,
		height:   heightTiles,
		tileSize: tileSize,
	}
	if waterLevel <= 0 {
		return m
	}

	noise := opensimplex.NewNormalized(seed)
	for ty := 0; ty < heightTiles; ty++ {
		for tx := 0; tx < widthTiles; tx++ {
			v := noise.Eval2(float64(tx)*NoiseScale, float64(ty)*NoiseScale)
			if v < waterLevel {
				m.cells[ty*widthTiles+tx] = ClassWater
			}
		}
	}
	return m
}

// Width returns the map width in tiles.
func (m *Map) Width() int { return m.width }

// Height returns the map height in tiles.
func (m *Map) Height() int { return m.height }

// TileSize returns the tile edge length in world units.
func (m *Map) TileSize() float32 { return m.tileSize }

// ClassAt returns the classification of a tile. Out of bounds is water,
// which keeps agents and spawns clamped to the map.
func (m *Map) ClassAt(tx, ty int) Class {
	if tx < 0 || tx >= m.width || ty < 0 || ty >= m.height {
		return ClassWater
	}
	return m.cells[ty*m.width+tx]
}

// IsWater reports whether the world position lies on a water tile.
// Floor semantics: negative coordinates resolve to negative tiles,
// which ClassAt reports as water.
func (m *Map) IsWater(x, y float32) bool {
	tx := int(math.Floor(float64(x / m.tileSize)))
	ty := int(math.Floor(float64(y / m.tileSize)))
	return m.ClassAt(tx, ty) == ClassWater
}

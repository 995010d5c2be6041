package systems

import (
	"container/heap"
	"math"

	"github.com/pthm-cable/meadow/components"
)

// Rect is an axis-aligned world-space rectangle.
type Rect struct {
	X, Y, W, H float32
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// PathGrid is a uniform walkability grid over the world backing A*
// shortest-path search. Each cell carries a blocker count rather than a
// boolean: two overlapping blockers each contribute one count, so
// removing one leaves the cell blocked until the other is removed too.
type PathGrid struct {
	blockers []int32 // Per-cell blocker count; > 0 means blocked
	cellSize float32
	width    int // Grid width in cells
	height   int // Grid height in cells

	// Reusable A* search state (cleared between searches).
	openHeap  *nodeHeap
	closedSet map[int]struct{}
	cameFrom  map[int]int
	gScore    map[int]float32
}

// astarNode is a node in the A* open set.
type astarNode struct {
	gx, gy int
	f      float32 // g + heuristic (priority)
	index  int     // Heap index
}

type nodeHeap []*astarNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// NewPathGrid creates an all-walkable grid covering the given world size.
func NewPathGrid(worldW, worldH, cellSize float32) *PathGrid {
	w := int(worldW / cellSize)
	h := int(worldH / cellSize)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return &PathGrid{
		blockers:  make([]int32, w*h),
		cellSize:  cellSize,
		width:     w,
		height:    h,
		openHeap:  &nodeHeap{},
		closedSet: make(map[int]struct{}, 256),
		cameFrom:  make(map[int]int, 256),
		gScore:    make(map[int]float32, 256),
	}
}

// Width returns the grid width in cells.
func (g *PathGrid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *PathGrid) Height() int { return g.height }

// CellSize returns the cell size in world units.
func (g *PathGrid) CellSize() float32 { return g.cellSize }

// WorldToGrid converts world coordinates to grid coordinates. Floor
// semantics: negative coordinates land in negative cells rather than
// truncating into cell 0, so bounds checks downstream reject them.
func (g *PathGrid) WorldToGrid(x, y float32) (gx, gy int) {
	return int(math.Floor(float64(x / g.cellSize))), int(math.Floor(float64(y / g.cellSize)))
}

// GridToWorld converts grid coordinates to the cell center in world
// coordinates.
func (g *PathGrid) GridToWorld(gx, gy int) (x, y float32) {
	return (float32(gx) + 0.5) * g.cellSize, (float32(gy) + 0.5) * g.cellSize
}

// SetWalkable adjusts the blocker count of one cell: false adds a
// blocker, true removes one. Out-of-range cells are ignored.
func (g *PathGrid) SetWalkable(gx, gy int, walkable bool) {
	if gx < 0 || gx >= g.width || gy < 0 || gy >= g.height {
		return
	}
	idx := gy*g.width + gx
	if walkable {
		if g.blockers[idx] > 0 {
			g.blockers[idx]--
		}
	} else {
		g.blockers[idx]++
	}
}

// SetAreaWalkable applies SetWalkable to every cell the world-space
// rectangle overlaps. Adding and later removing the same rectangle is
// balanced cell for cell, so overlapping blockers stay correct.
func (g *PathGrid) SetAreaWalkable(r Rect, walkable bool) {
	if r.W <= 0 || r.H <= 0 {
		return
	}
	minX := int(r.X / g.cellSize)
	minY := int(r.Y / g.cellSize)
	maxX := int((r.X + r.W) / g.cellSize)
	maxY := int((r.Y + r.H) / g.cellSize)
	// A rect edge exactly on a cell boundary does not overlap the next cell.
	if float32(maxX)*g.cellSize == r.X+r.W {
		maxX--
	}
	if float32(maxY)*g.cellSize == r.Y+r.H {
		maxY--
	}
	for gy := minY; gy <= maxY; gy++ {
		for gx := minX; gx <= maxX; gx++ {
			g.SetWalkable(gx, gy, walkable)
		}
	}
}

// IsBlocked returns true if the cell is blocked. Out of bounds is blocked.
func (g *PathGrid) IsBlocked(gx, gy int) bool {
	if gx < 0 || gx >= g.width || gy < 0 || gy >= g.height {
		return true
	}
	return g.blockers[gy*g.width+gx] > 0
}

// IsWalkable returns true if the world position is in a walkable cell.
func (g *PathGrid) IsWalkable(x, y float32) bool {
	gx, gy := g.WorldToGrid(x, y)
	return !g.IsBlocked(gx, gy)
}

// FindPath computes a shortest path between two world positions using
// 8-connected A* with a Euclidean heuristic. Waypoints are returned in
// world coordinates snapped to cell centers, start to goal inclusive.
// Returns nil when no path exists or either endpoint resolves to a
// blocked or out-of-bounds cell; callers treat nil as a normal outcome.
func (g *PathGrid) FindPath(startX, startY, goalX, goalY float32) []components.Position {
	startGX, startGY := g.WorldToGrid(startX, startY)
	goalGX, goalGY := g.WorldToGrid(goalX, goalY)

	if g.IsBlocked(startGX, startGY) || g.IsBlocked(goalGX, goalGY) {
		return nil
	}

	// Same cell: arrive at the goal cell center.
	if startGX == goalGX && startGY == goalGY {
		x, y := g.GridToWorld(goalGX, goalGY)
		return []components.Position{{X: x, Y: y}}
	}

	*g.openHeap = (*g.openHeap)[:0]
	clear(g.closedSet)
	clear(g.cameFrom)
	clear(g.gScore)

	startID := startGY*g.width + startGX
	goalID := goalGY*g.width + goalGX

	g.gScore[startID] = 0
	heap.Push(g.openHeap, &astarNode{gx: startGX, gy: startGY, f: g.heuristic(startGX, startGY, goalGX, goalGY)})

	maxIterations := g.width * g.height
	iterations := 0

	for g.openHeap.Len() > 0 && iterations < maxIterations {
		current := heap.Pop(g.openHeap).(*astarNode)
		currentID := current.gy*g.width + current.gx

		// Re-pushed duplicates carry stale priorities; skip any node
		// already expanded.
		if _, ok := g.closedSet[currentID]; ok {
			continue
		}
		iterations++

		if currentID == goalID {
			return g.reconstructPath(startID, goalID)
		}

		g.closedSet[currentID] = struct{}{}

		neighbors := [8][2]int{
			{current.gx - 1, current.gy},     // W
			{current.gx + 1, current.gy},     // E
			{current.gx, current.gy - 1},     // N
			{current.gx, current.gy + 1},     // S
			{current.gx - 1, current.gy - 1}, // NW
			{current.gx + 1, current.gy - 1}, // NE
			{current.gx - 1, current.gy + 1}, // SW
			{current.gx + 1, current.gy + 1}, // SE
		}

		for i, n := range neighbors {
			ngx, ngy := n[0], n[1]

			if g.IsBlocked(ngx, ngy) {
				continue
			}

			// Diagonal moves require both adjacent cardinals open to
			// prevent cutting corners.
			if i >= 4 {
				dx := ngx - current.gx
				dy := ngy - current.gy
				if g.IsBlocked(current.gx+dx, current.gy) || g.IsBlocked(current.gx, current.gy+dy) {
					continue
				}
			}

			neighborID := ngy*g.width + ngx
			if _, ok := g.closedSet[neighborID]; ok {
				continue
			}

			moveCost := float32(1.0)
			if i >= 4 {
				moveCost = 1.414
			}

			tentativeG := g.gScore[currentID] + moveCost
			existingG, exists := g.gScore[neighborID]
			if exists && tentativeG >= existingG {
				continue
			}

			g.cameFrom[neighborID] = currentID
			g.gScore[neighborID] = tentativeG
			heap.Push(g.openHeap, &astarNode{
				gx: ngx,
				gy: ngy,
				f:  tentativeG + g.heuristic(ngx, ngy, goalGX, goalGY),
			})
		}
	}

	return nil
}

func (g *PathGrid) heuristic(gx1, gy1, gx2, gy2 int) float32 {
	dx := float32(gx2 - gx1)
	dy := float32(gy2 - gy1)
	return float32(math.Sqrt(float64(dx*dx + dy*dy)))
}

func (g *PathGrid) reconstructPath(startID, goalID int) []components.Position {
	var pathIDs []int
	current := goalID
	for current != startID {
		pathIDs = append(pathIDs, current)
		var ok bool
		current, ok = g.cameFrom[current]
		if !ok {
			break
		}
	}
	pathIDs = append(pathIDs, startID)

	path := make([]components.Position, len(pathIDs))
	for i := range pathIDs {
		id := pathIDs[len(pathIDs)-1-i]
		x, y := g.GridToWorld(id%g.width, id/g.width)
		path[i] = components.Position{X: x, Y: y}
	}

	return g.simplifyPath(path)
}

// simplifyPath drops waypoints that a straight walk would pass anyway.
// Remaining waypoints are a subset of the original cell centers.
func (g *PathGrid) simplifyPath(path []components.Position) []components.Position {
	if len(path) <= 2 {
		return path
	}

	simplified := make([]components.Position, 0, len(path))
	simplified = append(simplified, path[0])

	for i := 1; i < len(path)-1; i++ {
		prev := path[i-1]
		next := path[i+1]
		if !g.hasLineOfSight(prev.X, prev.Y, next.X, next.Y) {
			simplified = append(simplified, path[i])
		}
	}

	simplified = append(simplified, path[len(path)-1])
	return simplified
}

// hasLineOfSight checks for a clear straight walk between two points by
// sampling cells along the segment at half-cell steps.
func (g *PathGrid) hasLineOfSight(x1, y1, x2, y2 float32) bool {
	dx := x2 - x1
	dy := y2 - y1
	dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if dist < 0.01 {
		return true
	}

	stepSize := g.cellSize * 0.5
	steps := int(dist/stepSize) + 1
	dx /= dist
	dy /= dist

	for i := 0; i <= steps; i++ {
		if !g.IsWalkable(x1+dx*float32(i)*stepSize, y1+dy*float32(i)*stepSize) {
			return false
		}
	}
	return true
}

// NearestOpen spiral-searches outward for the nearest walkable cell.
// Returns (-1, -1) when nothing opens within maxRadius cells. Used by
// stuck recovery to probe for an escape cell.
func (g *PathGrid) NearestOpen(gx, gy, maxRadius int) (int, int) {
	if !g.IsBlocked(gx, gy) {
		return gx, gy
	}
	for radius := 1; radius <= maxRadius; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if absInt(dx) != radius && absInt(dy) != radius {
					continue // only the ring at this radius
				}
				if !g.IsBlocked(gx+dx, gy+dy) {
					return gx + dx, gy + dy
				}
			}
		}
	}
	return -1, -1
}

// NearestOpenWorld is NearestOpen in world coordinates.
func (g *PathGrid) NearestOpenWorld(x, y float32, maxRadius int) (float32, float32, bool) {
	gx, gy := g.WorldToGrid(x, y)
	ogx, ogy := g.NearestOpen(gx, gy, maxRadius)
	if ogx < 0 {
		return 0, 0, false
	}
	wx, wy := g.GridToWorld(ogx, ogy)
	return wx, wy, true
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

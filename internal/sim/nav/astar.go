package nav

import (
	"container/heap"

	"raidcraft.ai/internal/sim/geo"
	"raidcraft.ai/internal/sim/world"
)

const (
	// DefaultMaxNodes bounds A* expansions per search.
	DefaultMaxNodes = 1000

	costCardinal     = 1.0
	costDiagonal     = 1.4
	costVerticalUnit = 1.4
	costJumpUnit     = 2.0

	heuristicYWeight = 1.2

	// Falls deeper than this below a descending move pay a risk surcharge.
	dropSafeDepth   = 2
	dropRiskPerCell = 0.4
	dropProbeDepth  = 6

	goalShellMaxRadius = 5
)

// expandHook, when non-nil, observes every unique node expansion. Tests use
// it to check search-order invariants; production leaves it nil.
var expandHook func(c geo.Cell, g, f float64)

type move struct {
	dx, dy, dz int
}

// 18 candidate directions: 4 cardinal, 4 horizontal diagonal, vertical
// up/down, and the 8 diagonal-with-vertical combinations. Vertical delta is
// always within [-1, +1].
var moveDirs = [18]move{
	{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1},
	{1, 0, 1}, {1, 0, -1}, {-1, 0, 1}, {-1, 0, -1},
	{0, 1, 0}, {0, -1, 0},
	{1, 1, 1}, {1, 1, -1}, {-1, 1, 1}, {-1, 1, -1},
	{1, -1, 1}, {1, -1, -1}, {-1, -1, 1}, {-1, -1, -1},
}

type searchNode struct {
	cell   geo.Cell
	g      float64
	h      float64
	f      float64
	index  int
	parent *searchNode
}

type openQueue []*searchNode

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	// Ties broken by lower h: prefer nodes closer to the goal.
	return q[i].h < q[j].h
}

func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openQueue) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *openQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}

func heuristic(a, b geo.Cell) float64 {
	dx := float64(absInt(a.X - b.X))
	dy := float64(absInt(a.Y - b.Y))
	dz := float64(absInt(a.Z - b.Z))
	return dx + dz + heuristicYWeight*dy
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// FindPath computes a waypoint path from start toward end. The result may be
// empty (no explored progress) or partial (search budget exhausted before
// reaching the goal); callers treat both as "hold position / fall back".
func FindPath(q world.Query, start, end geo.Vec3, maxNodes int) Path {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	startCell := geo.CellOf(start)
	goalCell := geo.CellOf(end)
	if !q.IsWalkable(goalCell) {
		// Unreachable goals are silently substituted; when no walkable cell
		// exists in the shell the original goal stands and the search simply
		// returns its best partial path.
		if adj, ok := nearestWalkableGoal(q, goalCell); ok {
			goalCell = adj
		}
	}

	open := &openQueue{}
	heap.Init(open)
	startNode := &searchNode{cell: startCell, h: heuristic(startCell, goalCell)}
	startNode.f = startNode.h
	heap.Push(open, startNode)

	gScore := map[geo.Cell]float64{startCell: 0}
	closed := map[geo.Cell]struct{}{}

	var best *searchNode
	bestDist := geo.CellDistSq(startCell, goalCell)
	expanded := 0

	for open.Len() > 0 && expanded < maxNodes {
		cur := heap.Pop(open).(*searchNode)
		if _, seen := closed[cur.cell]; seen {
			continue
		}
		closed[cur.cell] = struct{}{}
		expanded++
		if expandHook != nil {
			expandHook(cur.cell, cur.g, cur.f)
		}

		if d := geo.CellDistSq(cur.cell, goalCell); best == nil || d < bestDist {
			best = cur
			bestDist = d
		}
		if geo.Chebyshev(cur.cell, goalCell) <= 1 {
			return buildPath(q, cur, goalCell)
		}

		for _, m := range moveDirs {
			next := cur.cell.Offset(m.dx, m.dy, m.dz)
			if _, seen := closed[next]; seen {
				continue
			}
			if !q.IsWalkable(next) {
				continue
			}
			if m.dx != 0 && m.dz != 0 && !cornersClear(q, cur.cell, m) {
				continue
			}
			g := cur.g + moveCost(q, m, next)
			if prev, ok := gScore[next]; ok && g >= prev {
				continue
			}
			gScore[next] = g
			h := heuristic(next, goalCell)
			heap.Push(open, &searchNode{cell: next, g: g, h: h, f: g + h, parent: cur})
		}
	}

	// Budget exhausted: best partial path toward the closest explored cell.
	if best == nil || best.parent == nil {
		return Path{}
	}
	return buildPath(q, best, best.cell)
}

// cornersClear rejects diagonal moves that would cut through a solid corner:
// both orthogonal cells at the current level must be independently walkable.
func cornersClear(q world.Query, from geo.Cell, m move) bool {
	return q.IsWalkable(from.Offset(m.dx, 0, 0)) && q.IsWalkable(from.Offset(0, 0, m.dz))
}

func moveCost(q world.Query, m move, dest geo.Cell) float64 {
	var c float64
	switch {
	case m.dx != 0 && m.dz != 0:
		c = costDiagonal
	case m.dx != 0 || m.dz != 0:
		c = costCardinal
	}
	if m.dy != 0 {
		c += costVerticalUnit * float64(absInt(m.dy))
	}
	if m.dy > 0 {
		// Jumps are expensive; prefer level routes.
		c += costJumpUnit * float64(m.dy)
	}
	if m.dy < 0 {
		if depth := fallDepth(q, dest); depth > dropSafeDepth {
			c += dropRiskPerCell * float64(depth-dropSafeDepth)
		}
	}
	return c
}

// fallDepth counts open cells below the destination's ground level. A strict
// walkability oracle keeps this at zero; looser oracles (ledges, water) expose
// real fall hazard here.
func fallDepth(q world.Query, dest geo.Cell) int {
	depth := 0
	for i := 1; i <= dropProbeDepth; i++ {
		if q.BlockKindAt(dest.Offset(0, -i, 0)).Collidable() {
			break
		}
		depth++
	}
	return depth
}

// nearestWalkableGoal scans an expanding cubic shell (radius 1..5, all Y
// offsets -2..2) for the walkable cell closest to the blocked goal.
func nearestWalkableGoal(q world.Query, goal geo.Cell) (geo.Cell, bool) {
	for r := 1; r <= goalShellMaxRadius; r++ {
		var found bool
		var bestCell geo.Cell
		var bestD float64
		for dy := -2; dy <= 2; dy++ {
			for dz := -r; dz <= r; dz++ {
				for dx := -r; dx <= r; dx++ {
					if absInt(dx) != r && absInt(dz) != r {
						continue
					}
					c := goal.Offset(dx, dy, dz)
					if !q.IsWalkable(c) {
						continue
					}
					d := geo.CellDistSq(c, goal)
					if !found || d < bestD {
						found = true
						bestCell = c
						bestD = d
					}
				}
			}
		}
		if found {
			return bestCell, true
		}
	}
	return geo.Cell{}, false
}

func buildPath(q world.Query, end *searchNode, goal geo.Cell) Path {
	cells := make([]geo.Cell, 0, 16)
	for n := end; n != nil; n = n.parent {
		cells = append(cells, n.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	if last := cells[len(cells)-1]; last != goal && geo.Chebyshev(last, goal) <= 1 && q.IsWalkable(goal) {
		cells = append(cells, goal)
	}
	cells = pruneCells(q, cells)

	points := make([]geo.Vec3, len(cells))
	for i, c := range cells {
		points[i] = c.Center()
	}
	return newPath(points)
}

// pruneCells drops zig-zag waypoints: a cell is removed when its neighbors are
// themselves adjacent (so the shortcut still satisfies the one-cell move
// constraint) and the straight line between them stays walkable.
func pruneCells(q world.Query, cells []geo.Cell) []geo.Cell {
	if len(cells) < 3 {
		return cells
	}
	out := cells[:1]
	for i := 1; i < len(cells)-1; i++ {
		prev := out[len(out)-1]
		next := cells[i+1]
		if geo.Chebyshev(prev, next) <= 1 && absInt(next.Y-prev.Y) <= 1 && lineWalkable(q, prev, next) {
			continue
		}
		out = append(out, cells[i])
	}
	return append(out, cells[len(cells)-1])
}

// lineWalkable samples the segment between two cell centers and requires every
// touched cell to be walkable.
func lineWalkable(q world.Query, a, b geo.Cell) bool {
	from := a.Center()
	to := b.Center()
	d := to.Sub(from)
	steps := int(d.Len()/0.25) + 1
	for i := 0; i <= steps; i++ {
		p := from.Add(d.Scale(float64(i) / float64(steps)))
		if !q.IsWalkable(geo.CellOf(p)) {
			return false
		}
	}
	return true
}

package world

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/cory-johannsen/vanguard/internal/game/geom"
)

// DefaultFieldCacheSize bounds how many single-source distance fields a Grid keeps.
const DefaultFieldCacheSize = 256

// Grid is a unit-cell pathing grid. Cell (x, y) covers [x, x+1) x [y, y+1).
//
// Distances are computed with Dijkstra over 8-connected cells using octile
// costs; diagonal moves may not cut blocked corners. Distance fields are
// cached per source cell.
//
// Invariant: len(pathable) == width*height.
type Grid struct {
	width, height int
	pathable      []bool
	fields        map[int]*field
	cacheSize     int
}

type field struct {
	dist []float64
	prev []int
}

// NewGrid builds a grid from text rows. '.' marks a pathable cell, any other
// rune blocks it. Row index i is y = i.
//
// Precondition: rows must be non-empty and of equal length.
// Postcondition: Returns a Grid or an error describing the malformed row.
func NewGrid(rows []string) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.New("world: NewGrid: rows must not be empty")
	}
	w, h := len(rows[0]), len(rows)
	g := &Grid{
		width:     w,
		height:    h,
		pathable:  make([]bool, w*h),
		fields:    make(map[int]*field),
		cacheSize: DefaultFieldCacheSize,
	}
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("world: NewGrid: row %d has width %d, want %d", y, len(row), w)
		}
		for x := 0; x < w; x++ {
			g.pathable[y*w+x] = row[x] == '.'
		}
	}
	return g, nil
}

// OpenGrid returns a fully pathable w x h grid.
func OpenGrid(w, h int) *Grid {
	g := &Grid{
		width:     w,
		height:    h,
		pathable:  make([]bool, w*h),
		fields:    make(map[int]*field),
		cacheSize: DefaultFieldCacheSize,
	}
	for i := range g.pathable {
		g.pathable[i] = true
	}
	return g
}

// Bounds returns the grid area.
func (g *Grid) Bounds() geom.Rect {
	return geom.Rect{Max: geom.Pt(float64(g.width), float64(g.height))}
}

// IsPathable reports whether the cell containing p is pathable.
func (g *Grid) IsPathable(p geom.Point) bool {
	idx, ok := g.cell(p)
	return ok && g.pathable[idx]
}

// PathDistance returns the shortest path length between a and b, or +Inf.
func (g *Grid) PathDistance(a, b geom.Point) float64 {
	src, ok := g.cell(a)
	if !ok || !g.pathable[src] {
		return math.Inf(1)
	}
	dst, ok := g.cell(b)
	if !ok || !g.pathable[dst] {
		return math.Inf(1)
	}
	if src == dst {
		return a.Dist(b)
	}
	return g.fieldFrom(src).dist[dst]
}

// Path returns cell-center waypoints from a to b with a and b as end points.
func (g *Grid) Path(a, b geom.Point) []geom.Point {
	if math.IsInf(g.PathDistance(a, b), 1) {
		return nil
	}
	src, _ := g.cell(a)
	dst, _ := g.cell(b)
	if src == dst {
		return []geom.Point{a, b}
	}
	f := g.fieldFrom(src)
	var rev []int
	for c := f.prev[dst]; c != src && c >= 0; c = f.prev[c] {
		rev = append(rev, c)
	}
	out := make([]geom.Point, 0, len(rev)+2)
	out = append(out, a)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, g.center(rev[i]))
	}
	return append(out, b)
}

// ClosestPathable returns p when pathable, else the center of the nearest
// pathable cell by ring search. A grid with no pathable cell returns p.
func (g *Grid) ClosestPathable(p geom.Point) geom.Point {
	if g.IsPathable(p) {
		return p
	}
	q := g.Bounds().Clamp(p)
	cx, cy := int(math.Floor(q.X)), int(math.Floor(q.Y))
	maxRing := g.width
	if g.height > maxRing {
		maxRing = g.height
	}
	for ring := 0; ring <= maxRing; ring++ {
		best, bestD := -1, math.Inf(1)
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				if abs(dx) != ring && abs(dy) != ring {
					continue
				}
				x, y := cx+dx, cy+dy
				if x < 0 || y < 0 || x >= g.width || y >= g.height {
					continue
				}
				idx := y*g.width + x
				if !g.pathable[idx] {
					continue
				}
				if d := g.center(idx).Dist2(p); d < bestD {
					best, bestD = idx, d
				}
			}
		}
		if best >= 0 {
			return g.center(best)
		}
	}
	return p
}

// SetPathable toggles a cell and drops cached distance fields.
func (g *Grid) SetPathable(x, y int, pathable bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return
	}
	g.pathable[y*g.width+x] = pathable
	g.fields = make(map[int]*field)
}

func (g *Grid) cell(p geom.Point) (int, bool) {
	if !p.IsFinite() || !g.Bounds().Contains(p) {
		return 0, false
	}
	x, y := int(math.Floor(p.X)), int(math.Floor(p.Y))
	return y*g.width + x, true
}

func (g *Grid) center(idx int) geom.Point {
	return geom.Pt(float64(idx%g.width)+0.5, float64(idx/g.width)+0.5)
}

func (g *Grid) fieldFrom(src int) *field {
	if f, ok := g.fields[src]; ok {
		return f
	}
	if len(g.fields) >= g.cacheSize {
		g.fields = make(map[int]*field)
	}
	f := g.dijkstra(src)
	g.fields[src] = f
	return f
}

var neighborOffsets = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

func (g *Grid) dijkstra(src int) *field {
	n := g.width * g.height
	f := &field{dist: make([]float64, n), prev: make([]int, n)}
	for i := range f.dist {
		f.dist[i] = math.Inf(1)
		f.prev[i] = -1
	}
	f.dist[src] = 0
	pq := &cellQueue{{idx: src}}
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(cellItem)
		if cur.dist > f.dist[cur.idx] {
			continue
		}
		x, y := cur.idx%g.width, cur.idx/g.width
		for _, off := range neighborOffsets {
			nx, ny := x+off[0], y+off[1]
			if nx < 0 || ny < 0 || nx >= g.width || ny >= g.height {
				continue
			}
			next := ny*g.width + nx
			if !g.pathable[next] {
				continue
			}
			step := 1.0
			if off[0] != 0 && off[1] != 0 {
				if !g.pathable[y*g.width+nx] || !g.pathable[ny*g.width+x] {
					continue
				}
				step = math.Sqrt2
			}
			if d := cur.dist + step; d < f.dist[next] {
				f.dist[next] = d
				f.prev[next] = cur.idx
				heap.Push(pq, cellItem{idx: next, dist: d})
			}
		}
	}
	return f
}

type cellItem struct {
	idx  int
	dist float64
}

type cellQueue []cellItem

func (q cellQueue) Len() int            { return len(q) }
func (q cellQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q cellQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x interface{}) { *q = append(*q, x.(cellItem)) }
func (q *cellQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

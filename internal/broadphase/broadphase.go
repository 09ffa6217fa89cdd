// Package broadphase finds pairs of particles whose swept bounds overlap,
// using a spatial hash over world cells.
package broadphase

import (
	"math"
	"sort"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
)

const (
	hashP1 = 73856093
	hashP2 = 19349663
	hashP3 = 83492791
)

// maxCells bounds how many cells one body is inserted into. Larger bodies
// are tested against everything instead.
const maxCells = 512

// Pair is a candidate pair with A.ID() < B.ID().
type Pair struct {
	A, B particles.Handle
}

type cell struct {
	x, y, z int
}

func (c cell) hash() int {
	return (c.x * hashP1) ^ (c.y * hashP2) ^ (c.z * hashP3)
}

type entry struct {
	h      particles.Handle
	bounds geometry.AABB
}

// SpatialHash buckets bodies by the cells their swept bounds cover.
type SpatialHash struct {
	CellSize float64
	// Margin thickens every body's bounds, usually by the cull distance.
	Margin float64

	grid  map[int][]int
	large []int
	items []entry
	seen  map[[2]particles.ID]struct{}
}

func NewSpatialHash(cellSize, margin float64) *SpatialHash {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialHash{
		CellSize: cellSize,
		Margin:   margin,
		grid:     make(map[int][]int),
		seen:     make(map[[2]particles.ID]struct{}),
	}
}

// SweptBounds is the union of a particle's bounds at its committed and
// predicted poses. ok is false when a shape is unbounded.
func SweptBounds(h particles.Handle) (geometry.AABB, bool) {
	out := geometry.EmptyAABB()
	from := dynamo.NewTransform(h.X(), h.R())
	to := dynamo.NewTransform(h.P(), h.Q())
	for _, s := range h.Shapes() {
		if !geometry.Bounded(s.Shape) {
			return geometry.AABB{}, false
		}
		out = out.Union(geometry.WorldBounds(s.Shape, from.Mul(s.Local)))
		out = out.Union(geometry.WorldBounds(s.Shape, to.Mul(s.Local)))
	}
	return out, true
}

func (g *SpatialHash) cellOf(v float64) int {
	return int(math.Floor(v / g.CellSize))
}

func (g *SpatialHash) reset() {
	clear(g.grid)
	clear(g.seen)
	g.large = g.large[:0]
	g.items = g.items[:0]
}

// Pairs returns every pair of bodies whose thickened swept bounds overlap
// and at least one of which can move, sorted by particle id.
func (g *SpatialHash) Pairs(bodies []particles.Handle) []Pair {
	g.reset()

	for _, h := range bodies {
		if !h.CollisionsEnabled() || len(h.Shapes()) == 0 {
			continue
		}
		b, bounded := SweptBounds(h)
		idx := len(g.items)
		if !bounded {
			g.items = append(g.items, entry{h: h})
			g.large = append(g.large, idx)
			continue
		}
		b = b.Thicken(g.Margin)
		g.items = append(g.items, entry{h: h, bounds: b})

		lo := cell{g.cellOf(b.Min[0]), g.cellOf(b.Min[1]), g.cellOf(b.Min[2])}
		hi := cell{g.cellOf(b.Max[0]), g.cellOf(b.Max[1]), g.cellOf(b.Max[2])}
		if (hi.x-lo.x+1)*(hi.y-lo.y+1)*(hi.z-lo.z+1) > maxCells {
			g.large = append(g.large, idx)
			continue
		}
		for x := lo.x; x <= hi.x; x++ {
			for y := lo.y; y <= hi.y; y++ {
				for z := lo.z; z <= hi.z; z++ {
					key := cell{x, y, z}.hash()
					g.grid[key] = append(g.grid[key], idx)
				}
			}
		}
	}

	var out []Pair
	for _, bucket := range g.grid {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				out = g.consider(out, bucket[i], bucket[j])
			}
		}
	}
	for _, l := range g.large {
		for other := range g.items {
			if other != l {
				out = g.consider(out, l, other)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].A.ID() != out[j].A.ID() {
			return out[i].A.ID() < out[j].A.ID()
		}
		return out[i].B.ID() < out[j].B.ID()
	})
	return out
}

func (g *SpatialHash) consider(out []Pair, i, j int) []Pair {
	a, b := g.items[i], g.items[j]
	if !particles.Movable(a.h) && !particles.Movable(b.h) {
		return out
	}
	if a.h.ID() > b.h.ID() {
		a, b = b, a
	}
	key := [2]particles.ID{a.h.ID(), b.h.ID()}
	if _, dup := g.seen[key]; dup {
		return out
	}
	// Unbounded shapes carry a zero AABB and always pass.
	if a.bounds != (geometry.AABB{}) && b.bounds != (geometry.AABB{}) && !a.bounds.Overlaps(b.bounds) {
		return out
	}
	g.seen[key] = struct{}{}
	return append(out, Pair{A: a.h, B: b.h})
}

package collision

import (
	"fmt"
	"sort"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
)

// PairType is an ordered pair of shape kinds. In a registered pair, A is
// the shape whose features are tested against the distance field of B.
type PairType struct {
	A, B geometry.Kind
}

func (p PairType) String() string {
	return fmt.Sprintf("%s/%s", p.A, p.B)
}

func (p PairType) swap() PairType { return PairType{A: p.B, B: p.A} }

// PointsFunc appends to out every contact point between a (at ta) and b
// (at tb) whose separation is below cull.
type PointsFunc func(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint

// PairEntry is one row of the dispatch table.
type PairEntry struct {
	Type   PairType
	Name   string
	Points PointsFunc
}

// Deepest returns the deepest point of the pair, or false when nothing is
// within cull.
func (e *PairEntry) Deepest(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, scratch []ContactPoint) (ContactPoint, []ContactPoint, bool) {
	scratch = e.Points(a, b, ta, tb, cull, scratch[:0])
	pt, ok := deepest(scratch)
	return pt, scratch, ok
}

// Registry dispatches shape pairs to their contact generators. Every
// unordered kind pair is either registered once or explicitly marked
// unsupported.
type Registry struct {
	entries     map[PairType]*PairEntry
	unsupported map[PairType]bool
}

func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[PairType]*PairEntry),
		unsupported: make(map[PairType]bool),
	}
}

func (r *Registry) Register(a, b geometry.Kind, name string, fn PointsFunc) {
	t := PairType{A: a, B: b}
	r.entries[t] = &PairEntry{Type: t, Name: name, Points: fn}
}

// Unsupported marks a pair that never produces contacts.
func (r *Registry) Unsupported(a, b geometry.Kind) {
	r.unsupported[PairType{A: a, B: b}] = true
}

// Lookup finds the entry for (a, b). swapped is true when the entry is
// registered as (b, a) and the caller must exchange its arguments.
func (r *Registry) Lookup(a, b geometry.Kind) (entry *PairEntry, swapped bool, ok bool) {
	t := PairType{A: a, B: b}
	if e, found := r.entries[t]; found {
		return e, false, true
	}
	if e, found := r.entries[t.swap()]; found {
		return e, true, true
	}
	return nil, false, false
}

func (r *Registry) IsUnsupported(a, b geometry.Kind) bool {
	t := PairType{A: a, B: b}
	return r.unsupported[t] || r.unsupported[t.swap()]
}

// Pairs lists the registered pairs in kind order.
func (r *Registry) Pairs() []PairType {
	out := make([]PairType, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// DefaultRegistry covers every kind pair with at least one shape that can
// move. Pairs made only of plane, triangle mesh and height field are
// unsupported: those shapes are used for static level geometry.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	var (
		sphere  = geometry.KindSphere
		box     = geometry.KindBox
		capsule = geometry.KindCapsule
		plane   = geometry.KindPlane
		convex  = geometry.KindConvex
		mesh    = geometry.KindTriangleMesh
		field   = geometry.KindHeightField
		level   = geometry.KindLevelSet
	)

	for _, k := range geometry.Kinds() {
		r.Register(sphere, k, "sphere-sdf", spherePoints)
	}
	for _, k := range []geometry.Kind{box, capsule, plane, convex, mesh, field, level} {
		r.Register(capsule, k, "capsule-sdf", capsulePoints)
	}

	r.Register(box, box, "box-box", boxBoxPoints)
	for _, k := range []geometry.Kind{plane, mesh, field} {
		r.Register(box, k, "samples-sdf", samplePoints)
		r.Register(convex, k, "samples-sdf", samplePoints)
		r.Register(level, k, "samples-sdf", samplePoints)
	}
	r.Register(box, convex, "mutual-samples", mutualPoints)
	r.Register(box, level, "mutual-samples", mutualPoints)
	r.Register(convex, convex, "mutual-samples", mutualPoints)
	r.Register(convex, level, "mutual-samples", mutualPoints)
	r.Register(level, level, "mutual-samples", mutualPoints)

	statics := []geometry.Kind{plane, mesh, field}
	for i, a := range statics {
		for _, b := range statics[i:] {
			r.Unsupported(a, b)
		}
	}
	return r
}

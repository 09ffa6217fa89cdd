package collision

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
)

// NarrowStats counts what the narrow phase did since the last ResetStats.
type NarrowStats struct {
	Constructed int
	Refreshed   int
	// Discarded counts degenerate points and pairs with invalid transforms.
	Discarded int
	// Skipped counts pairs with no movable body or no registered generator.
	Skipped int
}

type narrowCounters struct {
	constructed, refreshed, discarded, skipped atomic.Int64
}

// NarrowPhase turns candidate shape pairs into contacts in a container.
type NarrowPhase struct {
	container *Container
	registry  *Registry
	settings  Settings
	stats     narrowCounters
	scratch   []ContactPoint
}

func NewNarrowPhase(c *Container, r *Registry) *NarrowPhase {
	if r == nil {
		r = DefaultRegistry()
	}
	return &NarrowPhase{container: c, registry: r, settings: c.Settings()}
}

func (n *NarrowPhase) Registry() *Registry { return n.registry }

func (n *NarrowPhase) Stats() NarrowStats {
	return NarrowStats{
		Constructed: int(n.stats.constructed.Load()),
		Refreshed:   int(n.stats.refreshed.Load()),
		Discarded:   int(n.stats.discarded.Load()),
		Skipped:     int(n.stats.skipped.Load()),
	}
}

func (n *NarrowPhase) ResetStats() {
	n.stats.constructed.Store(0)
	n.stats.refreshed.Store(0)
	n.stats.discarded.Store(0)
	n.stats.skipped.Store(0)
}

// CullDistance is the separation below which the narrow phase keeps a
// contact.
func (n *NarrowPhase) CullDistance() float64 {
	return n.settings.Thickness + n.settings.CullDistance
}

type candidate struct {
	particles [2]particles.Handle
	geom      Geometry
	xf        [2]dynamo.Transform
	entry     *PairEntry
	swapped   bool
}

// ConstructConstraints creates or refreshes the contact between shape
// shapeA of a and shape shapeB of b, given the world transforms of the two
// shapes. It returns the number of contacts created or refreshed.
func (n *NarrowPhase) ConstructConstraints(a, b particles.Handle, shapeA, shapeB int, ta, tb dynamo.Transform, cull float64) int {
	if !particles.Movable(a) && !particles.Movable(b) {
		n.stats.skipped.Add(1)
		return 0
	}
	if !a.CollisionsEnabled() || !b.CollisionsEnabled() {
		n.stats.skipped.Add(1)
		return 0
	}
	if !dynamo.ValidTransform(ta) || !dynamo.ValidTransform(tb) {
		n.stats.discarded.Add(1)
		return 0
	}

	sa, sb := a.Shapes()[shapeA], b.Shapes()[shapeB]
	entry, swapped, ok := n.registry.Lookup(sa.Shape.Kind(), sb.Shape.Kind())
	if !ok {
		n.stats.skipped.Add(1)
		return 0
	}

	cand := candidate{
		particles: [2]particles.Handle{a, b},
		geom: Geometry{
			Shapes:     [2]geometry.Shape{sa.Shape, sb.Shape},
			Locals:     [2]dynamo.Transform{sa.Local, sb.Local},
			ShapeIndex: [2]int{shapeA, shapeB},
		},
		xf:      [2]dynamo.Transform{ta, tb},
		entry:   entry,
		swapped: swapped,
	}
	if swapped {
		cand.particles[0], cand.particles[1] = cand.particles[1], cand.particles[0]
		cand.geom.Shapes[0], cand.geom.Shapes[1] = cand.geom.Shapes[1], cand.geom.Shapes[0]
		cand.geom.Locals[0], cand.geom.Locals[1] = cand.geom.Locals[1], cand.geom.Locals[0]
		cand.geom.ShapeIndex[0], cand.geom.ShapeIndex[1] = cand.geom.ShapeIndex[1], cand.geom.ShapeIndex[0]
		cand.xf[0], cand.xf[1] = cand.xf[1], cand.xf[0]
	}

	switch {
	case n.settings.CCD.Enabled && (n.needsSweep(a) || n.needsSweep(b)):
		return n.constructPoint(cand, SweptPoint, cull)
	case n.settings.UseManifolds:
		return n.constructManifold(cand, cull)
	default:
		return n.constructPoint(cand, SinglePoint, cull)
	}
}

func (n *NarrowPhase) constructPoint(cand candidate, kind Kind, cull float64) int {
	pt, scratch, ok := cand.entry.Deepest(cand.geom.Shapes[0], cand.geom.Shapes[1], cand.xf[0], cand.xf[1], cull, n.scratch)
	n.scratch = scratch

	ta, tb := cand.xf[0], cand.xf[1]
	toi := 1.0
	if kind == SweptPoint {
		probe := Contact{Particles: cand.particles, Geometry: cand.geom, pair: cand.entry}
		toi = n.timeOfImpact(&probe, cull)
		if !ok && toi < 1 {
			// The body passed through within the step; use the pose at impact.
			ta = poseAt(cand.particles[0], toi).Mul(cand.geom.Locals[0])
			tb = poseAt(cand.particles[1], toi).Mul(cand.geom.Locals[1])
			pt, n.scratch, ok = cand.entry.Deepest(cand.geom.Shapes[0], cand.geom.Shapes[1], ta, tb, cull, n.scratch)
		}
	}
	if !ok {
		return 0
	}
	if !validPoint(pt) {
		n.stats.discarded.Add(1)
		return 0
	}

	c := n.container
	a, b := cand.particles[0], cand.particles[1]
	var contact *Contact
	if h, exists := c.FindPoint(a.ID(), b.ID()); exists {
		existing := h.Contact()
		// Another shape pair of the same bodies already produced a deeper
		// contact this step.
		if existing.Timestamp == c.lifespanCounter && existing.ShapeIndex != cand.geom.ShapeIndex && existing.Phi <= pt.Phi {
			return 0
		}
		if existing.Kind == kind {
			contact = existing
			contact.Particles = cand.particles
			contact.Geometry = cand.geom
		} else {
			c.RemoveConstraint(h)
		}
	}
	// A point contact replaces the manifold of the same shape pair.
	if h, exists := c.FindManifold(a.ID(), b.ID(), cand.geom.ShapeIndex[0], cand.geom.ShapeIndex[1]); exists {
		c.RemoveConstraint(h)
	}
	if contact == nil {
		c.AddConstraint(kind, a, b, cand.geom)
		h, _ := c.FindPoint(a.ID(), b.ID())
		contact = h.Contact()
		n.stats.constructed.Add(1)
	} else {
		n.stats.refreshed.Add(1)
	}

	contact.pair = cand.entry
	contact.reversed = cand.swapped
	n.setSinglePoint(contact, pt, ta, tb)
	contact.refreshMaterial(n.settings.DefaultFriction)
	c.Stamp(contact)

	contact.TimeOfImpact = toi
	return 1
}

// setSinglePoint anchors pt using the shape transforms it was found at.
func (n *NarrowPhase) setSinglePoint(contact *Contact, pt ContactPoint, ta, tb dynamo.Transform) {
	impulse := contact.Points[0].AccumulatedImpulse
	if contact.NumPoints == 0 {
		impulse = mgl64.Vec3{}
	}
	contact.Points[0] = anchor(pt, ta, tb)
	contact.Points[0].AccumulatedImpulse = impulse
	contact.NumPoints = 1
	contact.setDeepest(pt)
}

func (n *NarrowPhase) constructManifold(cand candidate, cull float64) int {
	c := n.container
	a, b := cand.particles[0], cand.particles[1]

	// A point or swept contact left from an earlier step for the same
	// shape pair is superseded by the manifold.
	if h, exists := c.FindPoint(a.ID(), b.ID()); exists && sameShapes(h.Contact(), cand) {
		c.RemoveConstraint(h)
	}

	if h, exists := c.FindManifold(a.ID(), b.ID(), cand.geom.ShapeIndex[0], cand.geom.ShapeIndex[1]); exists {
		contact := h.Contact()
		if n.UpdateManifold(contact, cull) {
			n.stats.refreshed.Add(1)
			return 1
		}
		return 0
	}

	pts := n.manifoldPoints(cand.entry, cand.geom.Shapes, cand.xf, cull)
	if len(pts) == 0 {
		return 0
	}

	c.AddConstraint(MultiPoint, a, b, cand.geom)
	h, _ := c.FindManifold(a.ID(), b.ID(), cand.geom.ShapeIndex[0], cand.geom.ShapeIndex[1])
	contact := h.Contact()
	contact.pair = cand.entry
	contact.reversed = cand.swapped

	ta, tb := contact.ShapeTransforms()
	contact.setPoints(pts, ta, tb, n.settings.ManifoldPositionTolerance)
	contact.manifoldRef = tb.Relative(ta)
	c.Stamp(contact)
	n.stats.constructed.Add(1)
	return 1
}

// sameShapes reports whether contact is between the candidate's two shapes,
// in either order.
func sameShapes(contact *Contact, cand candidate) bool {
	for i := 0; i < 2; i++ {
		j := 1 - i
		if contact.Particles[i].ID() == cand.particles[0].ID() && contact.Particles[j].ID() == cand.particles[1].ID() &&
			contact.ShapeIndex[i] == cand.geom.ShapeIndex[0] && contact.ShapeIndex[j] == cand.geom.ShapeIndex[1] {
			return true
		}
	}
	return false
}

func (n *NarrowPhase) manifoldPoints(entry *PairEntry, shapes [2]geometry.Shape, xf [2]dynamo.Transform, cull float64) []ContactPoint {
	pts := entry.Points(shapes[0], shapes[1], xf[0], xf[1], cull, n.scratch[:0])
	n.scratch = pts
	pts, dropped := cleanPoints(pts)
	n.stats.discarded.Add(int64(dropped))
	return reducePoints(pts)
}

// UpdateConstraint re-runs the contact's shape-pair query at the current
// predicted poses. A contact with nothing within cull keeps no active
// points and reports Phi = cull.
func (n *NarrowPhase) UpdateConstraint(contact *Contact, cull, dt float64) {
	if contact.Kind == MultiPoint {
		n.UpdateManifold(contact, cull)
		return
	}
	n.updatePoint(contact, cull, &n.scratch)
	if contact.NumPoints > 0 {
		n.container.Stamp(contact)
	}
}

// updatePoint refreshes a single or swept contact using the caller's
// scratch buffer, so solver workers can run it concurrently on disjoint
// contacts. It does not stamp the contact; only the narrow phase extends a
// contact's lifespan.
func (n *NarrowPhase) updatePoint(contact *Contact, cull float64, scratch *[]ContactPoint) {
	if !n.bind(contact) {
		contact.NumPoints = 0
		contact.Phi = cull
		return
	}
	ta, tb := contact.ShapeTransforms()
	if !dynamo.ValidTransform(ta) || !dynamo.ValidTransform(tb) {
		n.stats.discarded.Add(1)
		contact.NumPoints = 0
		contact.Phi = cull
		return
	}

	pt, buf, ok := contact.pair.Deepest(contact.Shapes[0], contact.Shapes[1], ta, tb, cull, *scratch)
	*scratch = buf
	if !ok || !validPoint(pt) {
		contact.NumPoints = 0
		contact.Phi = cull
		return
	}
	n.setSinglePoint(contact, pt, ta, tb)
}

// UpdateManifold refreshes a manifold contact. Within the manifold
// tolerances existing points are moved with their shapes; otherwise, or
// with one-shot manifolds, the point set is regenerated. It reports
// whether any point lies within cull.
func (n *NarrowPhase) UpdateManifold(contact *Contact, cull float64) bool {
	if contact.Kind != MultiPoint || !n.bind(contact) {
		return false
	}
	contact.refreshMaterial(n.settings.DefaultFriction)
	ta, tb := contact.ShapeTransforms()
	if !dynamo.ValidTransform(ta) || !dynamo.ValidTransform(tb) {
		n.stats.discarded.Add(1)
		contact.NumPoints = 0
		contact.Phi = cull
		return false
	}

	rel := tb.Relative(ta)
	incremental := !n.settings.OneShotManifolds && contact.NumPoints > 0 &&
		withinManifoldTolerance(contact.manifoldRef, rel, n.settings.ManifoldPositionTolerance, n.settings.ManifoldRotationTolerance)

	if incremental {
		contact.refreshPoints(ta, tb)
	} else {
		pts := n.manifoldPoints(contact.pair, contact.Shapes, [2]dynamo.Transform{ta, tb}, cull)
		contact.setPoints(pts, ta, tb, n.settings.ManifoldPositionTolerance)
		contact.manifoldRef = rel
	}

	if contact.NumPoints == 0 {
		contact.Phi = cull
		return false
	}
	if contact.Phi < cull {
		n.container.Stamp(contact)
		return true
	}
	return false
}

// bind resolves the shape-pair entry of a contact added directly to the
// container, exchanging its sides if the entry is registered the other
// way round.
func (n *NarrowPhase) bind(contact *Contact) bool {
	if contact.pair != nil {
		return true
	}
	entry, swapped, ok := n.registry.Lookup(contact.Shapes[0].Kind(), contact.Shapes[1].Kind())
	if !ok {
		return false
	}
	if swapped {
		contact.Particles[0], contact.Particles[1] = contact.Particles[1], contact.Particles[0]
		contact.Shapes[0], contact.Shapes[1] = contact.Shapes[1], contact.Shapes[0]
		contact.Locals[0], contact.Locals[1] = contact.Locals[1], contact.Locals[0]
		contact.ShapeIndex[0], contact.ShapeIndex[1] = contact.ShapeIndex[1], contact.ShapeIndex[0]
		contact.reversed = !contact.reversed
	}
	contact.pair = entry
	return true
}

// UpdateConstraints refreshes every contact in the container.
func (n *NarrowPhase) UpdateConstraints(dt float64) {
	cull := n.CullDistance()
	for _, h := range n.container.Handles() {
		n.UpdateConstraint(h.Contact(), cull, dt)
	}
}

func (n *NarrowPhase) needsSweep(p particles.Handle) bool {
	if !particles.IsDynamic(p) {
		return false
	}
	extent := math.Inf(1)
	for _, s := range p.Shapes() {
		if geometry.Bounded(s.Shape) {
			extent = math.Min(extent, s.Shape.Bounds().MinExtent())
		}
	}
	if math.IsInf(extent, 1) {
		return false
	}
	return p.P().Sub(p.X()).Len() > n.settings.CCD.ThresholdScale*extent
}

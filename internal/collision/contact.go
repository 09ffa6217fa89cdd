// Package collision generates, persists and resolves rigid-body contact
// constraints.
//
// A [Container] owns every live [Contact] and the [Handle] that refers to
// it. The [NarrowPhase] turns candidate shape pairs into contacts through a
// dispatch table keyed by shape kind, and the [Solver] resolves them with a
// velocity pass ([Solver.Apply]) followed by a position pass
// ([Solver.ApplyPushOut]).
//
// # Thread Safety
//
// Containers are not safe for concurrent mutation. The parallel solver
// entry points lock the container for their duration; see
// [Solver.ApplyParallel] for the partitioning precondition.
package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/material"
	"github.com/san-kum/contactsim/internal/particles"
)

// Kind is the representation of a contact.
type Kind uint8

const (
	SinglePoint Kind = iota
	SweptPoint
	MultiPoint

	numKinds
)

func (k Kind) String() string {
	switch k {
	case SinglePoint:
		return "single"
	case SweptPoint:
		return "swept"
	case MultiPoint:
		return "manifold"
	}
	return "unknown"
}

const MaxManifoldPoints = 4

// ContactPoint is one point of overlap produced by a shape-pair query.
// Normal points from shape B toward shape A and Location lies on A.
type ContactPoint struct {
	Location mgl64.Vec3
	Normal   mgl64.Vec3
	Phi      float64
	Feature  int
}

// ManifoldPoint is a persistent contact point. Anchors are stored in each
// shape's frame so the point can be refreshed without a new query.
type ManifoldPoint struct {
	ContactPoint
	LocalA       mgl64.Vec3
	LocalB       mgl64.Vec3
	LocalNormalB mgl64.Vec3
	// AccumulatedImpulse is the impulse applied through this point since it
	// was created.
	AccumulatedImpulse mgl64.Vec3
}

// Geometry identifies the two shapes a contact is between.
type Geometry struct {
	Shapes     [2]geometry.Shape
	Locals     [2]dynamo.Transform
	ShapeIndex [2]int
}

// Contact is a constraint between particle 0 and particle 1. Phi, Normal
// and Location summarize the deepest point.
type Contact struct {
	Particles [2]particles.Handle
	Geometry
	Kind Kind

	Location mgl64.Vec3
	Normal   mgl64.Vec3
	Phi      float64

	Points    [MaxManifoldPoints]ManifoldPoint
	NumPoints int

	Material           material.Combined
	AccumulatedImpulse mgl64.Vec3

	// Timestamp is the lifespan counter value of the last refresh.
	Timestamp int
	Disabled  bool

	// TimeOfImpact is the fraction of the step at first touch, for swept
	// contacts.
	TimeOfImpact float64

	pair     *PairEntry
	reversed bool
	// manifoldRef is shape B relative to shape A when the manifold was built.
	manifoldRef dynamo.Transform
	serial      uint64
}

// ActivePoints returns the points the solver iterates.
func (c *Contact) ActivePoints() []ManifoldPoint {
	return c.Points[:c.NumPoints]
}

// ShapeTransforms returns the world transforms of both shapes at the
// predicted particle poses.
func (c *Contact) ShapeTransforms() (dynamo.Transform, dynamo.Transform) {
	return shapeTransform(c.Particles[0], c.Locals[0]), shapeTransform(c.Particles[1], c.Locals[1])
}

// Touches reports whether the contact involves particle id.
func (c *Contact) Touches(id particles.ID) bool {
	return c.Particles[0].ID() == id || c.Particles[1].ID() == id
}

func shapeTransform(p particles.Handle, local dynamo.Transform) dynamo.Transform {
	return dynamo.NewTransform(p.P(), p.Q()).Mul(local)
}

func (c *Contact) setDeepest(pt ContactPoint) {
	c.Location = pt.Location
	c.Normal = pt.Normal
	c.Phi = pt.Phi
}

// summarize sets the contact summary to the deepest manifold point,
// averaging points of equal depth.
func (c *Contact) summarize() {
	if c.NumPoints == 0 {
		return
	}
	var pts [MaxManifoldPoints]ContactPoint
	for i := 0; i < c.NumPoints; i++ {
		pts[i] = c.Points[i].ContactPoint
	}
	best, _ := deepest(pts[:c.NumPoints])
	c.setDeepest(best)
}

func (c *Contact) refreshMaterial(defaultFriction float64) {
	c.Material = material.Combine(c.Particles[0].Material(), c.Particles[1].Material(), defaultFriction)
}

// Package particles stores rigid bodies and exposes them to the collision
// code through the Handle interface.
package particles

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/material"
)

// ID identifies a particle for its whole lifetime. IDs are never reused.
type ID uint64

type ObjectState uint8

const (
	Dynamic ObjectState = iota
	Kinematic
	Static
	Sleeping
)

func (s ObjectState) String() string {
	switch s {
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	case Static:
		return "static"
	case Sleeping:
		return "sleeping"
	}
	return "unknown"
}

// ShapeInstance places a shape in its particle's frame.
type ShapeInstance struct {
	Shape geometry.Shape
	Local dynamo.Transform
}

// Handle is the view of a body used by the constraint code. X/R is the
// pose at the start of the step, P/Q the predicted pose being solved.
type Handle interface {
	ID() ID
	Mass() float64
	InvMass() float64
	InvInertia() mgl64.Mat3

	X() mgl64.Vec3
	R() mgl64.Quat
	P() mgl64.Vec3
	SetP(mgl64.Vec3)
	Q() mgl64.Quat
	SetQ(mgl64.Quat)
	V() mgl64.Vec3
	SetV(mgl64.Vec3)
	W() mgl64.Vec3
	SetW(mgl64.Vec3)

	Material() *material.Material
	Shapes() []ShapeInstance
	State() ObjectState
	CollisionsEnabled() bool
}

// Rigid is the store's concrete body.
type Rigid struct {
	id         ID
	mass       float64
	invMass    float64
	inertia    mgl64.Vec3
	invInertia mgl64.Mat3

	x mgl64.Vec3
	r mgl64.Quat
	p mgl64.Vec3
	q mgl64.Quat
	v mgl64.Vec3
	w mgl64.Vec3

	material   *material.Material
	shapes     []ShapeInstance
	state      ObjectState
	collisions bool
}

func (b *Rigid) ID() ID                       { return b.id }
func (b *Rigid) Mass() float64                { return b.mass }
func (b *Rigid) InvMass() float64             { return b.invMass }
func (b *Rigid) InvInertia() mgl64.Mat3       { return b.invInertia }
func (b *Rigid) Inertia() mgl64.Vec3          { return b.inertia }
func (b *Rigid) X() mgl64.Vec3                { return b.x }
func (b *Rigid) R() mgl64.Quat                { return b.r }
func (b *Rigid) P() mgl64.Vec3                { return b.p }
func (b *Rigid) SetP(p mgl64.Vec3)            { b.p = p }
func (b *Rigid) Q() mgl64.Quat                { return b.q }
func (b *Rigid) SetQ(q mgl64.Quat)            { b.q = q }
func (b *Rigid) V() mgl64.Vec3                { return b.v }
func (b *Rigid) SetV(v mgl64.Vec3)            { b.v = v }
func (b *Rigid) W() mgl64.Vec3                { return b.w }
func (b *Rigid) SetW(w mgl64.Vec3)            { b.w = w }
func (b *Rigid) Material() *material.Material { return b.material }
func (b *Rigid) Shapes() []ShapeInstance      { return b.shapes }
func (b *Rigid) State() ObjectState           { return b.state }
func (b *Rigid) CollisionsEnabled() bool      { return b.collisions }

func (b *Rigid) SetMaterial(m *material.Material) { b.material = m }
func (b *Rigid) SetCollisionsEnabled(on bool)     { b.collisions = on }

// SetState changes the object state. Static and kinematic bodies have
// infinite mass as far as the solver is concerned.
func (b *Rigid) SetState(s ObjectState) {
	b.state = s
	if s == Static || s == Kinematic {
		b.v = mgl64.Vec3{}
		b.w = mgl64.Vec3{}
	}
}

// SetPose teleports the body; both the committed and predicted poses move.
func (b *Rigid) SetPose(x mgl64.Vec3, r mgl64.Quat) {
	b.x, b.p = x, x
	b.r, b.q = r, r
}

// Transform returns the predicted pose.
func (b *Rigid) Transform() dynamo.Transform {
	return dynamo.NewTransform(b.p, b.q)
}

// AddShape attaches another shape in body space.
func (b *Rigid) AddShape(s geometry.Shape, local dynamo.Transform) {
	b.shapes = append(b.shapes, ShapeInstance{Shape: s, Local: local})
}

// Bounds is the world box of every shape at the predicted pose.
func (b *Rigid) Bounds() geometry.AABB {
	out := geometry.EmptyAABB()
	tr := b.Transform()
	for _, s := range b.shapes {
		out = out.Union(geometry.WorldBounds(s.Shape, tr.Mul(s.Local)))
	}
	return out
}

// IsDynamic reports whether the solver may move h.
func IsDynamic(h Handle) bool {
	return h.InvMass() > 0 && h.State() == Dynamic
}

// Movable reports whether h responds to impulses at all, counting sleeping
// bodies as movable.
func Movable(h Handle) bool {
	return h.InvMass() > 0 && (h.State() == Dynamic || h.State() == Sleeping)
}

// WorldInvInertia is the inverse inertia of h at its predicted pose.
func WorldInvInertia(h Handle) mgl64.Mat3 {
	if h.InvMass() == 0 {
		return mgl64.Mat3{}
	}
	return dynamo.WorldInvInertia(h.Q(), h.InvInertia())
}

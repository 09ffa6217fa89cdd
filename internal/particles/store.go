package particles

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/material"
)

// Store owns every body in a world. Bodies are kept densely packed and
// removal swaps the last body into the freed slot.
type Store struct {
	bodies []*Rigid
	index  map[ID]int
	nextID ID
}

func NewStore() *Store {
	return &Store{index: make(map[ID]int), nextID: 1}
}

func (s *Store) add(b *Rigid) *Rigid {
	b.id = s.nextID
	s.nextID++
	b.collisions = true
	s.index[b.id] = len(s.bodies)
	s.bodies = append(s.bodies, b)
	return b
}

// NewDynamic adds a body of the given mass with inertia derived from shape.
func (s *Store) NewDynamic(shape geometry.Shape, mass float64, x mgl64.Vec3, r mgl64.Quat) *Rigid {
	if mass <= 0 {
		panic(fmt.Errorf("%w: mass must be positive, got %f", dynamo.ErrParameterBounds, mass))
	}
	inertia := InertiaFor(shape, mass)
	b := &Rigid{
		mass:       mass,
		invMass:    1 / mass,
		inertia:    inertia,
		invInertia: mgl64.Diag3(mgl64.Vec3{1 / inertia[0], 1 / inertia[1], 1 / inertia[2]}),
		state:      Dynamic,
	}
	b.AddShape(shape, dynamo.Identity())
	b.SetPose(x, r)
	return s.add(b)
}

// NewStatic adds an immovable body.
func (s *Store) NewStatic(shape geometry.Shape, x mgl64.Vec3, r mgl64.Quat) *Rigid {
	b := &Rigid{state: Static}
	b.AddShape(shape, dynamo.Identity())
	b.SetPose(x, r)
	return s.add(b)
}

// NewKinematic adds a body that moves with a prescribed velocity and
// ignores impulses.
func (s *Store) NewKinematic(shape geometry.Shape, x mgl64.Vec3, r mgl64.Quat, v mgl64.Vec3) *Rigid {
	b := &Rigid{state: Kinematic}
	b.AddShape(shape, dynamo.Identity())
	b.SetPose(x, r)
	b.v = v
	return s.add(b)
}

func (s *Store) Get(id ID) (*Rigid, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.bodies[i], true
}

// Remove deletes a body. Its id is never handed out again.
func (s *Store) Remove(id ID) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %d", dynamo.ErrUnknownParticle, id)
	}
	last := len(s.bodies) - 1
	if i != last {
		s.bodies[i] = s.bodies[last]
		s.index[s.bodies[i].id] = i
	}
	s.bodies[last] = nil
	s.bodies = s.bodies[:last]
	delete(s.index, id)
	return nil
}

func (s *Store) Len() int        { return len(s.bodies) }
func (s *Store) All() []*Rigid   { return s.bodies }
func (s *Store) At(i int) *Rigid { return s.bodies[i] }

// parallelChunk is the smallest slice of bodies worth a goroutine.
const parallelChunk = 512

// Integrate predicts P/Q for every moving body from its velocity, after
// adding gravity to dynamic bodies.
func (s *Store) Integrate(dt float64, gravity mgl64.Vec3) {
	dynamo.ParallelFor(len(s.bodies), parallelChunk, func(start, end int) {
		for _, b := range s.bodies[start:end] {
			switch b.state {
			case Dynamic:
				b.v = b.v.Add(gravity.Mul(dt))
				fallthrough
			case Kinematic:
				b.p = b.x.Add(b.v.Mul(dt))
				b.q = dynamo.IntegrateRotation(b.r, b.w, dt)
			default:
				b.p = b.x
				b.q = b.r
			}
		}
	})
}

// Commit makes the solved P/Q the new pose. Velocities are already
// consistent with the solve, so only the pose is copied.
func (s *Store) Commit() {
	dynamo.ParallelFor(len(s.bodies), parallelChunk, func(start, end int) {
		for _, b := range s.bodies[start:end] {
			b.x = b.p
			b.r = b.q
		}
	})
}

// Valid reports the first body with a non-finite pose or velocity.
func (s *Store) Valid() error {
	for _, b := range s.bodies {
		if !dynamo.ValidVec(b.p) || !dynamo.ValidQuat(b.q) || !dynamo.ValidVec(b.v) || !dynamo.ValidVec(b.w) {
			return fmt.Errorf("%w: particle %d", dynamo.ErrInvalidState, b.id)
		}
	}
	return nil
}

// KineticEnergy sums linear and angular kinetic energy of dynamic bodies.
func (s *Store) KineticEnergy() float64 {
	e := 0.0
	for _, b := range s.bodies {
		if b.state != Dynamic {
			continue
		}
		e += 0.5 * b.mass * b.v.LenSqr()
		local := b.r.Conjugate().Rotate(b.w)
		for i := 0; i < 3; i++ {
			e += 0.5 * b.inertia[i] * local[i] * local[i]
		}
	}
	return e
}

// InertiaFor returns the principal moments of a solid shape of mass m.
// Shapes without a closed form use their bounding box.
func InertiaFor(shape geometry.Shape, m float64) mgl64.Vec3 {
	switch sh := shape.(type) {
	case *geometry.Sphere:
		i := 0.4 * m * sh.Radius * sh.Radius
		return mgl64.Vec3{i, i, i}
	case *geometry.Capsule:
		r := sh.Radius
		h := sh.B.Sub(sh.A).Len() + 2*r
		side := m * (3*r*r + h*h) / 12
		return mgl64.Vec3{side, side, 0.5 * m * r * r}
	}

	e := shape.Bounds().Extents()
	x2, y2, z2 := e[0]*e[0], e[1]*e[1], e[2]*e[2]
	out := mgl64.Vec3{m * (y2 + z2) / 12, m * (x2 + z2) / 12, m * (x2 + y2) / 12}
	for i := range out {
		if out[i] <= 0 || math.IsNaN(out[i]) {
			out[i] = m
		}
	}
	return out
}

// DefaultMaterial is a convenience for scenes.
func DefaultMaterial() *material.Material {
	return material.New(material.DefaultFriction, 0)
}

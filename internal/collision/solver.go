package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/material"
	"github.com/san-kum/contactsim/internal/particles"
)

// StaticSet holds particles treated as immovable for one push-out pass.
type StaticSet map[particles.ID]struct{}

func (s StaticSet) Contains(id particles.ID) bool {
	_, ok := s[id]
	return ok
}

// Solver resolves contacts in a container. Apply works on velocities,
// ApplyPushOut on positions.
type Solver struct {
	container *Container
	narrow    *NarrowPhase
	settings  SolverSettings
	thickness float64
	scratch   []ContactPoint
}

func NewSolver(c *Container, n *NarrowPhase, settings SolverSettings) *Solver {
	return &Solver{
		container: c,
		narrow:    n,
		settings:  settings,
		thickness: c.Settings().Thickness,
	}
}

func (s *Solver) Settings() SolverSettings { return s.settings }

// SetSettings replaces the settings used by later passes. It must not be
// called while a pass is running.
func (s *Solver) SetSettings(settings SolverSettings) { s.settings = settings }

type body struct {
	h       particles.Handle
	invMass float64
	invI    mgl64.Mat3
	movable bool
}

func solverBody(h particles.Handle, static StaticSet) body {
	b := body{h: h}
	if !particles.IsDynamic(h) || static.Contains(h.ID()) {
		return b
	}
	b.invMass = h.InvMass()
	b.invI = particles.WorldInvInertia(h)
	b.movable = true
	return b
}

// factor maps an impulse at offset r to the velocity change of that point.
func (b body) factor(r mgl64.Vec3) mgl64.Mat3 {
	if !b.movable {
		return mgl64.Mat3{}
	}
	cross := dynamo.CrossMatrix(r)
	return mgl64.Ident3().Mul(b.invMass).Add(cross.Mul3(b.invI).Mul3(cross.Transpose()))
}

func pointVelocity(h particles.Handle, r mgl64.Vec3) mgl64.Vec3 {
	return h.V().Add(h.W().Cross(r))
}

// refresh brings the contact geometry up to date with the predicted poses.
func (s *Solver) refresh(contact *Contact, scratch *[]ContactPoint) {
	if contact.Kind == MultiPoint {
		ta, tb := contact.ShapeTransforms()
		contact.refreshPoints(ta, tb)
		return
	}
	s.narrow.updatePoint(contact, s.narrow.CullDistance(), scratch)
}

func skipContact(contact *Contact) bool {
	if contact.Disabled {
		return true
	}
	return contact.Particles[0].State() == particles.Sleeping || contact.Particles[1].State() == particles.Sleeping
}

// Apply runs one velocity pass over handles in order. It reports whether
// any contact point was still approaching faster than the tolerance after
// its impulse, in which case the caller may run another iteration.
func (s *Solver) Apply(dt float64, handles []*Handle, iteration, totalIterations int) bool {
	s.container.lock()
	defer s.container.unlock()
	return s.apply(dt, handles, &s.scratch)
}

func (s *Solver) apply(dt float64, handles []*Handle, scratch *[]ContactPoint) bool {
	needsAnother := false
	for _, h := range handles {
		if s.applyContact(h.Contact(), dt, scratch) {
			needsAnother = true
		}
	}
	return needsAnother
}

func (s *Solver) applyContact(contact *Contact, dt float64, scratch *[]ContactPoint) bool {
	if skipContact(contact) {
		return false
	}
	s.refresh(contact, scratch)
	if contact.NumPoints == 0 || contact.Phi >= s.thickness {
		return false
	}

	mat := s.settings.Resolve(contact.Material)
	// A rolled-back swept contact leaves positions at the time of impact;
	// AdvanceAfterImpact moves them on once the velocities are solved.
	posDt := dt
	if contact.Kind == SweptPoint && contact.TimeOfImpact < 1 {
		posDt = 0
	}
	violated := false
	for i := 0; i < contact.NumPoints; i++ {
		pt := &contact.Points[i]
		if contact.Kind == MultiPoint && i > 0 {
			// earlier points in this manifold may have moved the bodies
			ta, tb := contact.ShapeTransforms()
			refreshPoint(pt, ta, tb)
		}
		if pt.Phi >= s.thickness {
			continue
		}
		impulse, still := s.applyPoint(contact, pt, mat, dt, posDt)
		pt.AccumulatedImpulse = pt.AccumulatedImpulse.Add(impulse)
		contact.AccumulatedImpulse = contact.AccumulatedImpulse.Add(impulse)
		if still {
			violated = true
		}
	}
	return violated
}

func (s *Solver) applyPoint(contact *Contact, pt *ManifoldPoint, mat material.Combined, dt, posDt float64) (mgl64.Vec3, bool) {
	b0 := solverBody(contact.Particles[0], nil)
	b1 := solverBody(contact.Particles[1], nil)
	if !b0.movable && !b1.movable {
		return mgl64.Vec3{}, false
	}

	n := pt.Normal
	r0 := pt.Location.Sub(b0.h.P())
	r1 := pt.Location.Sub(b1.h.P())
	v0 := pointVelocity(b0.h, r0)
	v1 := pointVelocity(b1.h, r1)
	vrel := v0.Sub(v1)
	vn := vrel.Dot(n)
	if vn >= 0 {
		return mgl64.Vec3{}, false
	}

	k := b0.factor(r0).Add(b1.factor(r1))

	// Slow contacts are resting contacts and do not bounce.
	e := 0.0
	if vrel.Len() > 2*s.settings.RestitutionGravity*dt {
		e = mat.Restitution
	}
	friction := mat.Friction

	var impulse, angular mgl64.Vec3
	if friction > 0 && math.Abs(k.Det()) > dynamo.SmallNumber {
		velocityChange := n.Mul(e * vn).Add(vrel).Mul(-1)
		minimal := k.Inv().Mul3x1(velocityChange)
		jn := minimal.Dot(n)
		tangential := minimal.Sub(n.Mul(jn)).Len()

		if tangential <= math.Max(friction, mat.StaticFriction)*jn {
			impulse = minimal
			if mat.AngularFriction > 0 {
				linear, ang := angularFrictionImpulse(b0, b1, r0, r1, n, mat.AngularFriction*velocityChange.Dot(n))
				impulse = impulse.Add(linear)
				angular = ang
			}
		} else {
			tangent := dynamo.SafeNormalize(vrel.Sub(n.Mul(vn)), mgl64.Vec3{})
			dir := n.Sub(tangent.Mul(friction))
			denom := n.Dot(k.Mul3x1(dir))
			if math.Abs(denom) < dynamo.SmallNumber {
				denom = 1
			}
			impulse = dir.Mul(-(1 + e) * vn / denom)
		}
	} else {
		denom := n.Dot(k.Mul3x1(n))
		if math.Abs(denom) < dynamo.SmallNumber {
			denom = 1
		}
		impulse = n.Mul(-(1 + e) * vn / denom)
	}

	impulse = energyClamped(impulse, b0, b1, r0, r1, v0, v1)
	applyImpulse(b0, b1, r0, r1, impulse, angular, posDt)

	after := pointVelocity(b0.h, r0).Sub(pointVelocity(b1.h, r1)).Dot(n)
	return impulse, after < -s.settings.Tolerance
}

// angularFrictionImpulse damps the relative spin of the two bodies by up
// to budget, returning the linear impulse that keeps the contact point
// still and the angular impulse applied to body 0 (and negated on body 1).
func angularFrictionImpulse(b0, b1 body, r0, r1, n mgl64.Vec3, budget float64) (mgl64.Vec3, mgl64.Vec3) {
	relW := b0.h.W().Sub(b1.h.W())
	wn := relW.Dot(n)
	wt := relW.Sub(n.Mul(wn))

	final := n.Mul(sign(wn) * math.Max(0, math.Abs(wn)-budget)).
		Add(dynamo.SafeNormalize(wt, mgl64.Vec3{}).Mul(math.Max(0, wt.Len()-budget)))
	delta := final.Sub(relW)

	invSum := b0.invI.Add(b1.invI)
	if math.Abs(invSum.Det()) < dynamo.SmallNumber {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	d2 := invSum.Inv()

	var s0, s1 mgl64.Mat3
	if b0.movable {
		s0 = dynamo.CrossMatrix(r0)
	}
	if b1.movable {
		s1 = dynamo.CrossMatrix(r1)
	}
	c := s0.Mul3(b0.invI).Add(s1.Mul3(b1.invI))
	a := mgl64.Ident3().Mul(b0.invMass + b1.invMass).
		Add(s0.Mul3(b0.invI).Mul3(s0.Transpose())).
		Add(s1.Mul3(b1.invI).Mul3(s1.Transpose()))

	cd2 := c.Mul3(d2)
	system := a.Sub(cd2.Mul3(c.Transpose()))
	if math.Abs(system.Det()) < dynamo.SmallNumber {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	linear := system.Inv().Mul3x1(cd2.Mul3x1(delta))
	angular := d2.Mul3x1(delta.Add(c.Transpose().Mul3x1(linear)))
	return linear, angular
}

// energyClamped scales an impulse down so it cannot add kinetic energy.
func energyClamped(impulse mgl64.Vec3, b0, b1 body, r0, r1, v0, v1 mgl64.Vec3) mgl64.Vec3 {
	var kinematic mgl64.Vec3
	switch {
	case !b0.movable:
		kinematic = v0
	case !b1.movable:
		kinematic = v1
	}

	size := impulse.LenSqr()
	var num0, num1, den0, den1 float64
	if b0.movable {
		jr := r0.Cross(impulse)
		iinv := b0.invI.Mul3x1(jr)
		num0 = impulse.Dot(b0.h.V().Sub(kinematic)) + jr.Dot(b0.h.W())
		den0 = size*b0.invMass + jr.Dot(iinv)
	}
	if b1.movable {
		jr := r1.Cross(impulse)
		iinv := b1.invI.Mul3x1(jr)
		num1 = impulse.Dot(b1.h.V().Sub(kinematic)) + jr.Dot(b1.h.W())
		den1 = size*b1.invMass + jr.Dot(iinv)
	}

	num := -2 * (num0 - num1)
	if num < 0 {
		return mgl64.Vec3{}
	}
	den := den0 + den1
	if num < den {
		return impulse.Mul(num / den)
	}
	return impulse
}

// applyImpulse updates velocities and moves the predicted poses by the
// velocity change over dt.
func applyImpulse(b0, b1 body, r0, r1, impulse, angular mgl64.Vec3, dt float64) {
	if b0.movable {
		dw := b0.invI.Mul3x1(r0.Cross(impulse).Add(angular))
		dv := impulse.Mul(b0.invMass)
		b0.h.SetV(b0.h.V().Add(dv))
		b0.h.SetW(b0.h.W().Add(dw))
		b0.h.SetP(b0.h.P().Add(dv.Mul(dt)))
		b0.h.SetQ(dynamo.IntegrateRotation(b0.h.Q(), dw, dt))
	}
	if b1.movable {
		dw := b1.invI.Mul3x1(r1.Cross(impulse.Mul(-1)).Sub(angular))
		dv := impulse.Mul(-b1.invMass)
		b1.h.SetV(b1.h.V().Add(dv))
		b1.h.SetW(b1.h.W().Add(dw))
		b1.h.SetP(b1.h.P().Add(dv.Mul(dt)))
		b1.h.SetQ(dynamo.IntegrateRotation(b1.h.Q(), dw, dt))
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// ApplyPushOut runs one position pass over handles. Particles in static
// are not moved. The pass scales its correction up over the iterations,
// reaching the full depth on the last one. It reports whether any contact
// still needed correction.
func (s *Solver) ApplyPushOut(dt float64, handles []*Handle, static StaticSet, iteration, totalIterations int) bool {
	s.container.lock()
	defer s.container.unlock()
	return s.pushOut(handles, static, iteration, totalIterations, &s.scratch)
}

func (s *Solver) pushOut(handles []*Handle, static StaticSet, iteration, totalIterations int, scratch *[]ContactPoint) bool {
	needsAnother := false
	for _, h := range handles {
		if s.pushOutContact(h.Contact(), static, iteration, totalIterations, scratch) {
			needsAnother = true
		}
	}
	return needsAnother
}

func (s *Solver) pushOutContact(contact *Contact, static StaticSet, iteration, totalIterations int, scratch *[]ContactPoint) bool {
	if skipContact(contact) {
		return false
	}
	if totalIterations < 1 {
		totalIterations = 1
	}
	scale := math.Min(float64(iteration+2), float64(totalIterations)) / float64(totalIterations)

	needsAnother := false
	for pass := 0; pass < s.settings.PairIterations; pass++ {
		s.refresh(contact, scratch)
		if contact.NumPoints == 0 || contact.Phi >= s.thickness {
			break
		}

		b0 := solverBody(contact.Particles[0], static)
		b1 := solverBody(contact.Particles[1], static)
		if !b0.movable && !b1.movable {
			break
		}
		needsAnother = true

		n := contact.Normal
		r0 := contact.Location.Sub(b0.h.P())
		r1 := contact.Location.Sub(b1.h.P())
		k := b0.factor(r0).Add(b1.factor(r1))

		if s.settings.PushOutVelocityFix {
			v0 := pointVelocity(b0.h, r0)
			v1 := pointVelocity(b1.h, r1)
			vn := v0.Sub(v1).Dot(n)
			if vn < 0 {
				denom := n.Dot(k.Mul3x1(n))
				if math.Abs(denom) < dynamo.SmallNumber {
					denom = 1
				}
				fix := n.Mul(-vn * scale / denom)
				fix = energyClamped(fix, b0, b1, r0, r1, v0, v1)
				contact.AccumulatedImpulse = contact.AccumulatedImpulse.Add(fix)
				if b0.movable {
					b0.h.SetV(b0.h.V().Add(fix.Mul(b0.invMass)))
					b0.h.SetW(b0.h.W().Add(b0.invI.Mul3x1(r0.Cross(fix))))
				}
				if b1.movable {
					b1.h.SetV(b1.h.V().Sub(fix.Mul(b1.invMass)))
					b1.h.SetW(b1.h.W().Add(b1.invI.Mul3x1(r1.Cross(fix.Mul(-1)))))
				}
			}
		}

		if math.Abs(k.Det()) < dynamo.SmallNumber {
			break
		}
		correction := k.Inv().Mul3x1(n.Mul((s.thickness - contact.Phi) * scale))
		if b0.movable {
			b0.h.SetP(b0.h.P().Add(correction.Mul(b0.invMass)))
			rot := dynamo.QuatFromVector(b0.invI.Mul3x1(r0.Cross(correction)))
			b0.h.SetQ(rot.Mul(b0.h.Q()).Normalize())
		}
		if b1.movable {
			b1.h.SetP(b1.h.P().Sub(correction.Mul(b1.invMass)))
			rot := dynamo.QuatFromVector(b1.invI.Mul3x1(r1.Cross(correction.Mul(-1))))
			b1.h.SetQ(rot.Mul(b1.h.Q()).Normalize())
		}
	}
	return needsAnother
}

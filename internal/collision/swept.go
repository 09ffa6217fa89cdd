package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/particles"
)

// bisectionSteps refines the first sampled crossing of the sweep.
const bisectionSteps = 10

// poseAt interpolates a particle between its committed and predicted pose.
func poseAt(p particles.Handle, t float64) dynamo.Transform {
	x := p.X().Add(p.P().Sub(p.X()).Mul(t))
	q := mgl64.QuatNlerp(p.R(), p.Q(), t)
	return dynamo.NewTransform(x, q)
}

// sweepPhi is the deepest separation of the contact's shapes with both
// particles placed at fraction t of their motion.
func (n *NarrowPhase) sweepPhi(contact *Contact, t, cull float64) float64 {
	ta := poseAt(contact.Particles[0], t).Mul(contact.Locals[0])
	tb := poseAt(contact.Particles[1], t).Mul(contact.Locals[1])
	pt, scratch, ok := contact.pair.Deepest(contact.Shapes[0], contact.Shapes[1], ta, tb, cull, n.scratch)
	n.scratch = scratch
	if !ok {
		return math.Inf(1)
	}
	return pt.Phi
}

func (n *NarrowPhase) allowedDepth(contact *Contact) float64 {
	extent := math.Inf(1)
	for i, s := range contact.Shapes {
		if particles.IsDynamic(contact.Particles[i]) {
			extent = math.Min(extent, s.Bounds().MinExtent())
		}
	}
	if math.IsInf(extent, 1) {
		return n.settings.Thickness
	}
	return n.settings.Thickness - n.settings.CCD.AllowedDepthScale*extent
}

// timeOfImpact finds the earliest fraction of the step at which the
// contact penetrates deeper than the allowed depth, by marching the sweep
// and bisecting the first crossing. It returns 1 when the motion never
// crosses.
func (n *NarrowPhase) timeOfImpact(contact *Contact, cull float64) float64 {
	allowed := n.allowedDepth(contact)
	if n.sweepPhi(contact, 0, cull) <= allowed {
		return 0
	}

	steps := n.settings.CCD.Iterations
	if steps < 1 {
		steps = 1
	}
	lo := 0.0
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		if n.sweepPhi(contact, t, cull) <= allowed {
			hi := t
			for j := 0; j < bisectionSteps; j++ {
				mid := 0.5 * (lo + hi)
				if n.sweepPhi(contact, mid, cull) <= allowed {
					hi = mid
				} else {
					lo = mid
				}
			}
			return hi
		}
		lo = t
	}
	return 1
}

// RollbackToTimeOfImpact moves the dynamic particles of a swept contact
// back along their motion to the time of impact and refreshes the contact.
// Velocities are kept so the velocity pass still sees the approach.
func (n *NarrowPhase) RollbackToTimeOfImpact(contact *Contact, dt float64) {
	if contact.Kind != SweptPoint || contact.TimeOfImpact >= 1 {
		return
	}
	for _, p := range contact.Particles {
		if !particles.IsDynamic(p) {
			continue
		}
		pose := poseAt(p, contact.TimeOfImpact)
		p.SetP(pose.Translation)
		p.SetQ(pose.Rotation)
	}
	n.UpdateConstraint(contact, n.CullDistance(), dt)
}

// AdvanceAfterImpact finishes rolled-back swept contacts: each dynamic
// particle moves on from its earliest time of impact for the rest of the
// step with the velocity the solver left it. It returns the number of
// particles advanced.
func AdvanceAfterImpact(handles []*Handle, dt float64) int {
	earliest := make(map[particles.ID]float64)
	moved := make(map[particles.ID]particles.Handle)
	for _, h := range handles {
		c := h.Contact()
		if c.Kind != SweptPoint || c.TimeOfImpact >= 1 {
			continue
		}
		for _, p := range c.Particles {
			if !particles.IsDynamic(p) {
				continue
			}
			if t, ok := earliest[p.ID()]; !ok || c.TimeOfImpact < t {
				earliest[p.ID()] = c.TimeOfImpact
				moved[p.ID()] = p
			}
		}
		c.TimeOfImpact = 1
	}
	for id, p := range moved {
		rest := (1 - earliest[id]) * dt
		p.SetP(p.P().Add(p.V().Mul(rest)))
		p.SetQ(dynamo.IntegrateRotation(p.Q(), p.W(), rest))
	}
	return len(moved)
}

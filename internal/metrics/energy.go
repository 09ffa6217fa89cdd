package metrics

import (
	"math"

	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

// KineticEnergy reports the kinetic energy at the last observed step.
type KineticEnergy struct {
	name    string
	current float64
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(w *sim.World, st sim.Stats) {
	k.current = w.Particles().KineticEnergy()
}

func (k *KineticEnergy) Value() float64 { return k.current }
func (k *KineticEnergy) Reset()         { k.current = 0 }

// MechanicalEnergy is kinetic plus gravitational potential energy of the
// dynamic bodies.
func MechanicalEnergy(w *sim.World) float64 {
	g := w.Settings().Gravity
	e := w.Particles().KineticEnergy()
	for _, b := range w.Particles().All() {
		if particles.IsDynamic(b) {
			e -= b.Mass() * g.Dot(b.X())
		}
	}
	return e
}

// EnergyGain tracks the largest rise in mechanical energy over the first
// observation. Contacts should only ever remove energy, so anything above
// zero points at a solver problem.
type EnergyGain struct {
	name    string
	initial float64
	maxGain float64
	samples int
}

func NewEnergyGain() *EnergyGain {
	return &EnergyGain{name: "energy_gain"}
}

func (e *EnergyGain) Name() string { return e.name }

func (e *EnergyGain) Observe(w *sim.World, st sim.Stats) {
	energy := MechanicalEnergy(w)
	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++
	e.maxGain = math.Max(e.maxGain, energy-e.initial)
}

func (e *EnergyGain) Value() float64 {
	return e.maxGain
}

func (e *EnergyGain) Reset() {
	e.initial = 0
	e.maxGain = 0
	e.samples = 0
}

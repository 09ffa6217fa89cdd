package metrics

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

// ContactCount is the mean number of live contacts per step.
type ContactCount struct {
	name    string
	total   int
	samples int
}

func NewContactCount() *ContactCount {
	return &ContactCount{name: "contact_count"}
}

func (c *ContactCount) Name() string { return c.name }

func (c *ContactCount) Observe(w *sim.World, st sim.Stats) {
	c.total += st.Constraints
	c.samples++
}

func (c *ContactCount) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.total) / float64(c.samples)
}

func (c *ContactCount) Reset() {
	c.total = 0
	c.samples = 0
}

// RestingDrift is the largest distance any dynamic body moved from where
// it was at the first observation. For a scene that starts at rest it
// measures creep.
type RestingDrift struct {
	name  string
	start map[particles.ID]mgl64.Vec3
	max   float64
}

func NewRestingDrift() *RestingDrift {
	return &RestingDrift{name: "resting_drift"}
}

func (r *RestingDrift) Name() string { return r.name }

func (r *RestingDrift) Observe(w *sim.World, st sim.Stats) {
	first := r.start == nil
	if first {
		r.start = make(map[particles.ID]mgl64.Vec3)
	}
	for _, b := range w.Particles().All() {
		if !particles.IsDynamic(b) {
			continue
		}
		if first {
			r.start[b.ID()] = b.X()
			continue
		}
		if x0, ok := r.start[b.ID()]; ok {
			if d := b.X().Sub(x0).Len(); d > r.max {
				r.max = d
			}
		}
	}
}

func (r *RestingDrift) Value() float64 { return r.max }

func (r *RestingDrift) Reset() {
	r.start = nil
	r.max = 0
}

var constructors = map[string]func() sim.Metric{
	"kinetic_energy":  func() sim.Metric { return NewKineticEnergy() },
	"energy_gain":     func() sim.Metric { return NewEnergyGain() },
	"max_penetration": func() sim.Metric { return NewPenetration() },
	"convergence":     func() sim.Metric { return NewConvergence() },
	"contact_count":   func() sim.Metric { return NewContactCount() },
	"resting_drift":   func() sim.Metric { return NewRestingDrift() },
}

// New returns a fresh metric by name.
func New(name string) (sim.Metric, error) {
	fn, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: metric %q", dynamo.ErrParameterBounds, name)
	}
	return fn(), nil
}

// All returns one fresh instance of every metric, sorted by name.
func All() []sim.Metric {
	out := make([]sim.Metric, 0, len(constructors))
	for _, name := range Names() {
		out = append(out, constructors[name]())
	}
	return out
}

func Names() []string {
	names := make([]string, 0, len(constructors))
	for n := range constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package metrics

import (
	"math"

	"github.com/san-kum/contactsim/internal/sim"
)

// Penetration is the deepest contact seen over the run.
type Penetration struct {
	name string
	max  float64
}

func NewPenetration() *Penetration {
	return &Penetration{name: "max_penetration"}
}

func (p *Penetration) Name() string {
	return p.name
}

func (p *Penetration) Observe(w *sim.World, st sim.Stats) {
	p.max = math.Max(p.max, w.MaxPenetration())
}

func (p *Penetration) Value() float64 { return p.max }
func (p *Penetration) Reset()         { p.max = 0 }

// Convergence is the fraction of steps whose velocity pass finished
// before running out of iterations.
type Convergence struct {
	name      string
	converged int
	samples   int
}

func NewConvergence() *Convergence {
	return &Convergence{name: "convergence"}
}

func (c *Convergence) Name() string {
	return c.name
}

func (c *Convergence) Observe(w *sim.World, st sim.Stats) {
	c.samples++
	if st.Converged {
		c.converged++
	}
}

func (c *Convergence) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return float64(c.converged) / float64(c.samples)
}

func (c *Convergence) Reset() {
	c.converged = 0
	c.samples = 0
}

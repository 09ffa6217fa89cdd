// Package material describes surface properties of rigid bodies and how
// two of them combine at a contact.
package material

import "math"

// DefaultFriction is substituted for a body without a material.
const DefaultFriction = 0.5

type Material struct {
	Friction        float64 `yaml:"friction"`
	Restitution     float64 `yaml:"restitution"`
	StaticFriction  float64 `yaml:"static_friction"`
	AngularFriction float64 `yaml:"angular_friction"`
}

func New(friction, restitution float64) *Material {
	return &Material{Friction: friction, Restitution: restitution, StaticFriction: friction}
}

// Combined holds the per-pair values used by the solver.
type Combined struct {
	Friction        float64
	Restitution     float64
	StaticFriction  float64
	AngularFriction float64
}

// Combine mixes two materials: restitution takes the minimum, friction
// terms take the maximum. A nil material counts as defaultFriction with no
// bounce. The result does not depend on argument order.
func Combine(a, b *Material, defaultFriction float64) Combined {
	ma := orDefault(a, defaultFriction)
	mb := orDefault(b, defaultFriction)

	return Combined{
		Friction:        math.Max(ma.Friction, mb.Friction),
		Restitution:     math.Min(ma.Restitution, mb.Restitution),
		StaticFriction:  math.Max(ma.StaticFriction, mb.StaticFriction),
		AngularFriction: math.Max(ma.AngularFriction, mb.AngularFriction),
	}
}

func orDefault(m *Material, defaultFriction float64) Material {
	if m == nil {
		return Material{Friction: defaultFriction, StaticFriction: defaultFriction}
	}
	return *m
}

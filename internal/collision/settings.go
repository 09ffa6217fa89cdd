package collision

import (
	"fmt"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/material"
)

// Settings configures constraint generation and persistence.
type Settings struct {
	// Thickness is the separation below which a contact is solved.
	Thickness float64 `yaml:"thickness"`
	// CullDistance is the extra margin beyond Thickness within which
	// constraints are still created.
	CullDistance float64 `yaml:"cull_distance"`

	UseManifolds     bool `yaml:"use_manifolds"`
	OneShotManifolds bool `yaml:"one_shot_manifolds"`

	Persistence bool `yaml:"persistence"`
	// Lifespan is the number of steps an untouched constraint survives.
	Lifespan int `yaml:"lifespan"`

	HandlesEnabled  bool    `yaml:"handles_enabled"`
	DefaultFriction float64 `yaml:"default_friction"`

	ManifoldPositionTolerance float64 `yaml:"manifold_position_tolerance"`
	ManifoldRotationTolerance float64 `yaml:"manifold_rotation_tolerance"`

	CCD CCDSettings `yaml:"ccd"`
}

// CCDSettings controls swept contacts for fast bodies.
type CCDSettings struct {
	Enabled bool `yaml:"enabled"`
	// ThresholdScale of a body's smallest extent it must travel in one step
	// before a swept contact is used.
	ThresholdScale float64 `yaml:"threshold_scale"`
	// AllowedDepthScale of the smallest extent the body may penetrate at the
	// time of impact.
	AllowedDepthScale float64 `yaml:"allowed_depth_scale"`
	Iterations        int     `yaml:"iterations"`
}

func DefaultSettings() Settings {
	return Settings{
		Thickness:                 0,
		CullDistance:              0.02,
		UseManifolds:              true,
		OneShotManifolds:          false,
		Persistence:               true,
		Lifespan:                  1,
		HandlesEnabled:            true,
		DefaultFriction:           material.DefaultFriction,
		ManifoldPositionTolerance: 0.005,
		ManifoldRotationTolerance: 0.05,
		CCD: CCDSettings{
			Enabled:           true,
			ThresholdScale:    0.4,
			AllowedDepthScale: 0.05,
			Iterations:        16,
		},
	}
}

func (s Settings) Validate() error {
	if s.Thickness < 0 {
		return fmt.Errorf("%w: thickness must be non-negative, got %f", dynamo.ErrParameterBounds, s.Thickness)
	}
	if s.CullDistance < 0 {
		return fmt.Errorf("%w: cull distance must be non-negative, got %f", dynamo.ErrParameterBounds, s.CullDistance)
	}
	if s.Persistence && s.Lifespan < 1 {
		return fmt.Errorf("%w: lifespan must be at least 1 with persistence, got %d", dynamo.ErrParameterBounds, s.Lifespan)
	}
	if s.CCD.Enabled && s.CCD.ThresholdScale <= 0 {
		return fmt.Errorf("%w: ccd threshold scale must be positive", dynamo.ErrParameterBounds)
	}
	return nil
}

// SolverSettings configures Apply and ApplyPushOut. Override fields left
// nil use the combined material value.
type SolverSettings struct {
	Iterations        int `yaml:"iterations"`
	PushOutIterations int `yaml:"push_out_iterations"`
	// PairIterations is the number of inner push-out iterations per
	// constraint.
	PairIterations int `yaml:"pair_iterations"`

	FrictionOverride        *float64 `yaml:"friction_override,omitempty"`
	RestitutionOverride     *float64 `yaml:"restitution_override,omitempty"`
	AngularFrictionOverride *float64 `yaml:"angular_friction_override,omitempty"`

	// RestitutionGravity sets the bounce threshold: restitution applies
	// only when the relative speed exceeds 2 * RestitutionGravity * dt.
	RestitutionGravity float64 `yaml:"restitution_gravity"`
	// Tolerance is the approach speed still counted as resolved.
	Tolerance float64 `yaml:"tolerance"`
	// PushOutVelocityFix removes approaching normal velocity during push-out.
	PushOutVelocityFix bool `yaml:"push_out_velocity_fix"`

	Parallel bool `yaml:"parallel"`
	Workers  int  `yaml:"workers"`
}

func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		Iterations:         8,
		PushOutIterations:  4,
		PairIterations:     1,
		RestitutionGravity: 9.81,
		Tolerance:          1e-4,
		PushOutVelocityFix: true,
		Workers:            dynamo.Workers(),
	}
}

func (s SolverSettings) Validate() error {
	if s.Iterations < 0 || s.PushOutIterations < 0 {
		return fmt.Errorf("%w: iteration counts must be non-negative", dynamo.ErrParameterBounds)
	}
	if s.PairIterations < 1 {
		return fmt.Errorf("%w: pair iterations must be at least 1, got %d", dynamo.ErrParameterBounds, s.PairIterations)
	}
	for name, v := range map[string]*float64{
		"friction_override":         s.FrictionOverride,
		"restitution_override":      s.RestitutionOverride,
		"angular_friction_override": s.AngularFrictionOverride,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must be non-negative, got %f", dynamo.ErrParameterBounds, name, *v)
		}
	}
	return nil
}

// Resolve applies the overrides to a combined material.
func (s SolverSettings) Resolve(m material.Combined) material.Combined {
	if s.FrictionOverride != nil {
		m.Friction = *s.FrictionOverride
		m.StaticFriction = *s.FrictionOverride
	}
	if s.RestitutionOverride != nil {
		m.Restitution = *s.RestitutionOverride
	}
	if s.AngularFrictionOverride != nil {
		m.AngularFriction = *s.AngularFrictionOverride
	}
	return m
}

// Float returns a pointer to v, for filling override fields.
func Float(v float64) *float64 { return &v }

package sim

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/collision"
)

// Settings configures a World.
type Settings struct {
	Gravity   mgl64.Vec3
	CellSize  float64
	Collision collision.Settings
	Solver    collision.SolverSettings
}

func DefaultSettings() Settings {
	return Settings{
		Gravity:   mgl64.Vec3{0, 0, -9.81},
		CellSize:  1,
		Collision: collision.DefaultSettings(),
		Solver:    collision.DefaultSolverSettings(),
	}
}

// Stats reports what one step did.
type Stats struct {
	Step int
	Time float64

	Candidates  int
	Constraints int
	Pruned      int
	Swept       int
	Islands     int

	Narrow collision.NarrowStats

	Iterations        int
	PushOutIterations int
	// Converged is false when the velocity pass used every iteration and
	// still asked for another.
	Converged bool
}

type Metric interface {
	Name() string
	Observe(w *World, st Stats)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(w *World, st Stats)
}

type Config struct {
	Dt       float64
	Duration float64
	Seed     int64
	// ValidateState stops the run at the first non-finite particle.
	ValidateState bool
}

// Sample is the per-step summary kept in a Result.
type Sample struct {
	Time           float64
	KineticEnergy  float64
	MaxPenetration float64
	Contacts       int
	Iterations     int
}

type Result struct {
	Samples    []Sample
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for contact simulation.
var (
	// ErrInvalidState indicates a body state with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStaleHandle indicates a constraint handle used after removal.
	ErrStaleHandle = errors.New("dynamo: stale constraint handle")

	// ErrHandlesDisabled indicates a handle was requested from a container
	// configured without handle allocation.
	ErrHandlesDisabled = errors.New("dynamo: constraint handles are disabled")

	// ErrDuplicatePair indicates a second point constraint for one particle pair.
	ErrDuplicatePair = errors.New("dynamo: duplicate constraint for particle pair")

	// ErrContainerLocked indicates a container mutation inside a parallel region.
	ErrContainerLocked = errors.New("dynamo: constraint container mutated during parallel solve")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrUnknownScene indicates a scene name with no registered builder.
	ErrUnknownScene = errors.New("dynamo: unknown scene")

	// ErrUnknownParticle indicates a particle id that is not in the store.
	ErrUnknownParticle = errors.New("dynamo: unknown particle")
)

// StepError wraps an error with the step it happened on.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

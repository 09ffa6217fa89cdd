package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/contactsim/internal/broadphase"
	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/particles"
)

// World advances a set of rigid bodies with contact.
type World struct {
	settings  Settings
	particles *particles.Store
	container *collision.Container
	narrow    *collision.NarrowPhase
	solver    *collision.Solver
	broad     *broadphase.SpatialHash
	modifiers []collision.Modifier

	step   int
	time   float64
	bodies []particles.Handle
}

func NewWorld(store *particles.Store, settings Settings) (*World, error) {
	if err := settings.Collision.Validate(); err != nil {
		return nil, fmt.Errorf("collision settings: %w", err)
	}
	if err := settings.Solver.Validate(); err != nil {
		return nil, fmt.Errorf("solver settings: %w", err)
	}
	if settings.CellSize <= 0 {
		return nil, fmt.Errorf("%w: cell size must be positive, got %f", dynamo.ErrParameterBounds, settings.CellSize)
	}

	c := collision.NewContainer(settings.Collision)
	n := collision.NewNarrowPhase(c, nil)
	return &World{
		settings:  settings,
		particles: store,
		container: c,
		narrow:    n,
		solver:    collision.NewSolver(c, n, settings.Solver),
		broad:     broadphase.NewSpatialHash(settings.CellSize, settings.Collision.Thickness+settings.Collision.CullDistance),
	}, nil
}

func (w *World) Settings() Settings                     { return w.settings }
func (w *World) Particles() *particles.Store            { return w.particles }
func (w *World) Container() *collision.Container        { return w.container }
func (w *World) NarrowPhase() *collision.NarrowPhase    { return w.narrow }
func (w *World) Time() float64                          { return w.time }
func (w *World) StepCount() int                         { return w.step }
func (w *World) AddModifier(m collision.Modifier)       { w.modifiers = append(w.modifiers, m) }
func (w *World) NumConstraints() int                    { return w.container.NumConstraints() }
func (w *World) GetConstraint(i int) *collision.Contact { return w.container.GetConstraint(i) }

// GetConstraintHandle panics when handles are disabled in the settings.
func (w *World) GetConstraintHandle(i int) *collision.Handle {
	return w.container.GetConstraintHandle(i)
}

// SetSolverSettings changes iteration counts and overrides between steps.
func (w *World) SetSolverSettings(s collision.SolverSettings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("solver settings: %w", err)
	}
	w.settings.Solver = s
	w.solver.SetSettings(s)
	return nil
}

// RemoveParticle deletes a body together with every contact touching it.
func (w *World) RemoveParticle(id particles.ID) error {
	w.container.RemoveConstraints(map[particles.ID]struct{}{id: {}})
	return w.particles.Remove(id)
}

// MaxPenetration is the deepest active contact, as a positive depth.
func (w *World) MaxPenetration() float64 {
	depth := 0.0
	for _, h := range w.container.Handles() {
		c := h.Contact()
		if c.NumPoints > 0 && !c.Disabled {
			depth = math.Max(depth, -c.Phi)
		}
	}
	return depth
}

// ComputeConstraints runs the broad phase and builds or refreshes the
// contact for every overlapping shape pair. It returns the number of
// candidate body pairs.
func (w *World) ComputeConstraints() int {
	w.bodies = w.bodies[:0]
	for _, b := range w.particles.All() {
		w.bodies = append(w.bodies, b)
	}

	cull := w.narrow.CullDistance()
	pairs := w.broad.Pairs(w.bodies)
	for _, p := range pairs {
		ta := dynamo.NewTransform(p.A.P(), p.A.Q())
		tb := dynamo.NewTransform(p.B.P(), p.B.Q())
		for i, sa := range p.A.Shapes() {
			for j, sb := range p.B.Shapes() {
				w.narrow.ConstructConstraints(p.A, p.B, i, j, ta.Mul(sa.Local), tb.Mul(sb.Local), cull)
			}
		}
	}
	return len(pairs)
}

// Step advances the world by dt.
func (w *World) Step(dt float64) (Stats, error) {
	st := Stats{Step: w.step, Time: w.time}

	st.Pruned = w.container.UpdatePositionBasedState(dt)
	w.particles.Integrate(dt, w.settings.Gravity)

	w.narrow.ResetStats()
	st.Candidates = w.ComputeConstraints()

	handles := w.container.Handles()
	for _, h := range handles {
		if c := h.Contact(); c.Kind == collision.SweptPoint && c.TimeOfImpact < 1 {
			w.narrow.RollbackToTimeOfImpact(c, dt)
			st.Swept++
		}
	}
	st.Narrow = w.narrow.Stats()
	st.Constraints = len(handles)

	if len(w.modifiers) > 0 {
		collision.NewModifierSet(w.container).Apply(w.modifiers...)
	}

	solver := w.settings.Solver
	var islands [][]*collision.Handle
	if solver.Parallel {
		islands = collision.BuildIslands(handles)
		st.Islands = len(islands)
	}

	st.Converged = true
	for it := 0; it < solver.Iterations; it++ {
		st.Iterations++
		var again bool
		if solver.Parallel {
			again = w.solver.ApplyParallel(dt, islands, it, solver.Iterations)
		} else {
			again = w.solver.Apply(dt, handles, it, solver.Iterations)
		}
		if !again {
			break
		}
		if it == solver.Iterations-1 {
			st.Converged = false
		}
	}
	collision.AdvanceAfterImpact(handles, dt)

	for it := 0; it < solver.PushOutIterations; it++ {
		st.PushOutIterations++
		var again bool
		if solver.Parallel {
			again = w.solver.ApplyPushOutParallel(dt, islands, nil, it, solver.PushOutIterations)
		} else {
			again = w.solver.ApplyPushOut(dt, handles, nil, it, solver.PushOutIterations)
		}
		if !again {
			break
		}
	}

	if err := w.particles.Valid(); err != nil {
		return st, &dynamo.StepError{Step: w.step, Time: w.time, Wrapped: err}
	}
	w.particles.Commit()
	w.step++
	w.time += dt
	return st, nil
}

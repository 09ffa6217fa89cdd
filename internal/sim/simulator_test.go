package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/material"
	"github.com/san-kum/contactsim/internal/particles"
)

const dt = 1.0 / 60

func pointWorld(t *testing.T, store *particles.Store) *World {
	t.Helper()
	settings := DefaultSettings()
	settings.Collision.UseManifolds = false
	w, err := NewWorld(store, settings)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

func addFloor(store *particles.Store) *particles.Rigid {
	return store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
}

func addBox(store *particles.Store, x mgl64.Vec3) *particles.Rigid {
	return store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), 1, x, mgl64.QuatIdent())
}

func TestRestingBoxStaysPut(t *testing.T) {
	tests := []struct {
		name     string
		material *material.Material
	}{
		{"default material", nil},
		{"frictionless inelastic", material.New(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := particles.NewStore()
			floor := addFloor(store)
			box := addBox(store, mgl64.Vec3{0, 0, 0.5})
			if tt.material != nil {
				floor.SetMaterial(tt.material)
				box.SetMaterial(tt.material)
			}
			w := pointWorld(t, store)

			for i := 0; i < 120; i++ {
				st, err := w.Step(dt)
				if err != nil {
					t.Fatalf("step %d: %v", i, err)
				}
				if st.Constraints != 1 {
					t.Fatalf("step %d: expected 1 contact, got %d", i, st.Constraints)
				}
			}
			if math.Abs(box.X().Z()-0.5) > 1e-9 {
				t.Errorf("expected z=0.5, got %.12f", box.X().Z())
			}
			if box.V().Len() > 1e-9 || box.W().Len() > 1e-9 {
				t.Errorf("expected the box at rest, got v=%v w=%v", box.V(), box.W())
			}
			if d := w.MaxPenetration(); d > 1e-6 {
				t.Errorf("expected no penetration after push-out, got %g", d)
			}
		})
	}
}

func TestFastBoxKeepsOneContact(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	box := addBox(store, mgl64.Vec3{0, 0, 1.2})
	box.SetV(mgl64.Vec3{0, 0, -60})
	w, err := NewWorld(store, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	st, err := w.Step(dt)
	if err != nil {
		t.Fatal(err)
	}
	if st.Swept != 1 {
		t.Fatalf("expected a swept contact on impact, got %d", st.Swept)
	}
	for i := 1; i < 120; i++ {
		if _, err := w.Step(dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if n := w.NumConstraints(); n > 1 {
			t.Fatalf("step %d: expected at most 1 contact, got %d", i, n)
		}
	}
	if w.NumConstraints() != 1 {
		t.Fatalf("expected the settled box to keep one contact, got %d", w.NumConstraints())
	}
	if kind := w.GetConstraint(0).Kind; kind != collision.MultiPoint {
		t.Errorf("expected a manifold contact, got %s", kind)
	}
}

func TestSeparatedBoxesConvergeImmediately(t *testing.T) {
	store := particles.NewStore()
	addBox(store, mgl64.Vec3{0, 0, 5})
	addBox(store, mgl64.Vec3{1.5, 0, 5})
	w, err := NewWorld(store, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		st, err := w.Step(dt)
		if err != nil {
			t.Fatal(err)
		}
		if st.Constraints != 0 {
			t.Fatalf("step %d: expected no contacts, got %d", i, st.Constraints)
		}
		if st.Iterations != 1 || !st.Converged {
			t.Errorf("step %d: expected one converged iteration, got %d (converged=%v)", i, st.Iterations, st.Converged)
		}
	}
	if w.solver.Apply(dt, w.container.Handles(), 0, w.settings.Solver.Iterations) {
		t.Errorf("expected Apply to need no further iteration")
	}
}

func TestManifoldBoxSettles(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	box := addBox(store, mgl64.Vec3{0, 0, 0.6})
	w, err := NewWorld(store, DefaultSettings())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 180; i++ {
		if _, err := w.Step(dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if math.Abs(box.X().Z()-0.5) > 0.02 {
		t.Errorf("expected the box near z=0.5, got %f", box.X().Z())
	}
	if box.V().Len() > 0.1 {
		t.Errorf("expected the box nearly at rest, got v=%v", box.V())
	}
	if w.GetConstraint(0).Kind != collision.MultiPoint {
		t.Errorf("expected a manifold contact, got %s", w.GetConstraint(0).Kind)
	}
}

func TestBallBounces(t *testing.T) {
	store := particles.NewStore()
	floor := addFloor(store)
	floor.SetMaterial(material.New(0, 1))
	ball := store.NewDynamic(geometry.NewSphere(0.5), 1, mgl64.Vec3{0, 0, 2}, mgl64.QuatIdent())
	ball.SetMaterial(material.New(0, 1))
	w := pointWorld(t, store)

	impact, rebound := 0.0, 0.0
	for i := 0; i < 60; i++ {
		before := ball.V().Z()
		if _, err := w.Step(dt); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if before < 0 && ball.V().Z() > 0 {
			impact, rebound = before, ball.V().Z()
			break
		}
	}
	if impact == 0 {
		t.Fatal("ball never bounced")
	}
	if rebound < 0.8*math.Abs(impact) {
		t.Errorf("expected an elastic rebound, got %f after %f", rebound, impact)
	}
	if ball.X().Z() < 0.45 {
		t.Errorf("ball sank into the floor: z=%f", ball.X().Z())
	}
}

func TestFastBallDoesNotTunnel(t *testing.T) {
	store := particles.NewStore()
	store.NewStatic(geometry.NewBox(mgl64.Vec3{5, 5, 0.05}), mgl64.Vec3{}, mgl64.QuatIdent())
	ball := store.NewDynamic(geometry.NewSphere(0.1), 1, mgl64.Vec3{0, 0, 1}, mgl64.QuatIdent())
	ball.SetV(mgl64.Vec3{0, 0, -300})

	settings := DefaultSettings()
	settings.Gravity = mgl64.Vec3{}
	settings.Collision.UseManifolds = false
	w, err := NewWorld(store, settings)
	if err != nil {
		t.Fatal(err)
	}

	st, err := w.Step(dt)
	if err != nil {
		t.Fatal(err)
	}
	if st.Swept != 1 {
		t.Fatalf("expected a swept contact, got %d", st.Swept)
	}
	for i := 0; i < 10; i++ {
		if _, err := w.Step(dt); err != nil {
			t.Fatal(err)
		}
	}
	if math.Abs(ball.X().Z()-0.15) > 0.02 {
		t.Errorf("expected the ball on top of the slab, got z=%f", ball.X().Z())
	}
}

func TestRemoveParticleDropsContacts(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	box := addBox(store, mgl64.Vec3{0, 0, 0.5})
	w := pointWorld(t, store)
	if _, err := w.Step(dt); err != nil {
		t.Fatal(err)
	}
	if w.NumConstraints() != 1 {
		t.Fatalf("expected 1 contact, got %d", w.NumConstraints())
	}

	if err := w.RemoveParticle(box.ID()); err != nil {
		t.Fatal(err)
	}
	if w.NumConstraints() != 0 {
		t.Errorf("expected no contacts, got %d", w.NumConstraints())
	}
	if err := w.RemoveParticle(box.ID()); !errors.Is(err, dynamo.ErrUnknownParticle) {
		t.Errorf("expected ErrUnknownParticle, got %v", err)
	}
}

func TestParallelIslandsMatchSerial(t *testing.T) {
	run := func(parallel bool) []float64 {
		store := particles.NewStore()
		addFloor(store)
		var boxes []*particles.Rigid
		for i := 0; i < 5; i++ {
			boxes = append(boxes, addBox(store, mgl64.Vec3{float64(3 * i), 0, 0.5 + 0.1*float64(i)}))
		}
		settings := DefaultSettings()
		settings.Collision.UseManifolds = false
		settings.Solver.Parallel = parallel
		settings.Solver.Workers = 3
		w, err := NewWorld(store, settings)
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 60; i++ {
			if _, err := w.Step(dt); err != nil {
				t.Fatal(err)
			}
		}
		out := make([]float64, len(boxes))
		for i, b := range boxes {
			out[i] = b.X().Z()
		}
		return out
	}

	serial, parallel := run(false), run(true)
	for i := range serial {
		if math.Abs(serial[i]-parallel[i]) > 1e-9 {
			t.Errorf("box %d: serial z=%f parallel z=%f", i, serial[i], parallel[i])
		}
	}
}

func TestModifierDisablesContacts(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	box := addBox(store, mgl64.Vec3{0, 0, 0.5})
	w := pointWorld(t, store)
	w.AddModifier(func(set *collision.ModifierSet) {
		for _, h := range set.Handles() {
			set.Disable(h)
		}
	})

	for i := 0; i < 10; i++ {
		if _, err := w.Step(dt); err != nil {
			t.Fatal(err)
		}
	}
	if box.X().Z() > 0.4 {
		t.Errorf("expected the box to fall through, got z=%f", box.X().Z())
	}
}

func TestHandlesDisabledWorld(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	addBox(store, mgl64.Vec3{0, 0, 0.5})
	settings := DefaultSettings()
	settings.Collision.HandlesEnabled = false
	w, err := NewWorld(store, settings)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Step(dt); err != nil {
		t.Fatal(err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected a panic")
		}
	}()
	w.GetConstraintHandle(0)
}

type countMetric struct {
	count int
}

func (c *countMetric) Name() string               { return "count" }
func (c *countMetric) Observe(w *World, st Stats) { c.count++ }
func (c *countMetric) Value() float64             { return float64(c.count) }
func (c *countMetric) Reset()                     { c.count = 0 }

func TestSimulatorRun(t *testing.T) {
	store := particles.NewStore()
	addFloor(store)
	addBox(store, mgl64.Vec3{0, 0, 0.5})
	sim := New(pointWorld(t, store))
	metric := &countMetric{}
	sim.AddMetric(metric)

	result, err := sim.Run(context.Background(), Config{Dt: dt, Duration: 1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Samples) != 60 || result.StepsTaken != 60 {
		t.Errorf("expected 60 samples, got %d", len(result.Samples))
	}
	if result.Metrics["count"] != 60 {
		t.Errorf("expected 60 observations, got %f", result.Metrics["count"])
	}
	last := result.Samples[len(result.Samples)-1]
	if last.Contacts != 1 || last.MaxPenetration > 1e-6 {
		t.Errorf("unexpected final sample %+v", last)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	store := particles.NewStore()
	sim := New(pointWorld(t, store))

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Duration: 1.0}},
		{"negative dt", Config{Dt: -0.1, Duration: 1.0}},
		{"zero duration", Config{Dt: 0.1, Duration: 0}},
		{"negative duration", Config{Dt: 0.1, Duration: -1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.cfg)
			if !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}

func TestSimulatorCancel(t *testing.T) {
	store := particles.NewStore()
	sim := New(pointWorld(t, store))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sim.Run(ctx, Config{Dt: dt, Duration: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.StepsTaken != 0 {
		t.Errorf("expected no steps, got %d", result.StepsTaken)
	}
}

func TestNewWorldRejectsBadSettings(t *testing.T) {
	settings := DefaultSettings()
	settings.Solver.PairIterations = 0
	if _, err := NewWorld(particles.NewStore(), settings); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
}

func TestEnsemble(t *testing.T) {
	build := func(seed int64) (*World, error) {
		store := particles.NewStore()
		addFloor(store)
		addBox(store, mgl64.Vec3{0, 0, 0.5 + 0.1*float64(seed)})
		settings := DefaultSettings()
		settings.Collision.UseManifolds = false
		return NewWorld(store, settings)
	}
	e := NewEnsemble(build, func() []Metric { return []Metric{&countMetric{}} }, 4, 0)
	results, err := e.Run(context.Background(), Config{Dt: dt, Duration: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Metrics["count"] != 30 {
			t.Errorf("run %d: expected 30 observations, got %f", i, r.Metrics["count"])
		}
	}
}

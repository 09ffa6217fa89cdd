package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

func restingWorld(t *testing.T, z float64) *sim.World {
	t.Helper()
	store := particles.NewStore()
	store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
	store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), 2, mgl64.Vec3{0, 0, z}, mgl64.QuatIdent())
	settings := sim.DefaultSettings()
	settings.Collision.UseManifolds = false
	w, err := sim.NewWorld(store, settings)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestMechanicalEnergy(t *testing.T) {
	w := restingWorld(t, 0.5)
	want := 2 * 9.81 * 0.5
	if got := MechanicalEnergy(w); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestMetricsOnRestingBox(t *testing.T) {
	w := restingWorld(t, 0.5)
	s := sim.New(w)
	for _, m := range All() {
		s.AddMetric(m)
	}
	result, err := s.Run(context.Background(), sim.Config{Dt: 1.0 / 60, Duration: 1})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want float64
		tol  float64
	}{
		{"kinetic_energy", 0, 1e-9},
		{"energy_gain", 0, 1e-9},
		{"max_penetration", 0, 1e-6},
		{"convergence", 1, 0},
		{"contact_count", 1, 0},
		{"resting_drift", 0, 1e-9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := result.Metrics[tt.name]
			if !ok {
				t.Fatalf("metric missing")
			}
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestFallingBoxGainsNoEnergy(t *testing.T) {
	w := restingWorld(t, 2)
	gain := NewEnergyGain()
	pen := NewPenetration()
	s := sim.New(w)
	s.AddMetric(gain)
	s.AddMetric(pen)
	if _, err := s.Run(context.Background(), sim.Config{Dt: 1.0 / 60, Duration: 2}); err != nil {
		t.Fatal(err)
	}
	if gain.Value() > 1e-6 {
		t.Errorf("energy grew by %f", gain.Value())
	}
	if pen.Value() <= 0 {
		t.Errorf("expected the landing to register penetration")
	}
}

func TestNewUnknownMetric(t *testing.T) {
	if _, err := New("nope"); err == nil {
		t.Error("expected an error")
	}
	for _, name := range Names() {
		m, err := New(name)
		if err != nil || m.Name() != name {
			t.Errorf("%s: got %v, %v", name, m, err)
		}
	}
}

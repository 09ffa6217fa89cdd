package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/contactsim/internal/dynamo"
)

func TestEverySceneRuns(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.ListScenes() {
		t.Run(name, func(t *testing.T) {
			settings, err := r.Settings(name)
			if err != nil {
				t.Fatal(err)
			}
			e := New(Config{Scene: name, Dt: 1.0 / 60, Duration: 0.5, Seed: 1, Settings: settings})
			if err := e.Setup(r, r.DefaultMetrics()); err != nil {
				t.Fatal(err)
			}
			result, err := e.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(result.Errors) > 0 {
				t.Fatalf("step errors: %v", result.Errors)
			}
			if result.StepsTaken != 30 {
				t.Errorf("expected 30 steps, got %d", result.StepsTaken)
			}
		})
	}
}

func TestUnknownScene(t *testing.T) {
	r := NewRegistry()
	if _, err := r.GetScene("nope"); !errors.Is(err, dynamo.ErrUnknownScene) {
		t.Errorf("expected ErrUnknownScene, got %v", err)
	}
	e := New(Config{Scene: "nope", Dt: 0.01, Duration: 1})
	if err := e.Setup(r, nil); !errors.Is(err, dynamo.ErrUnknownScene) {
		t.Errorf("expected ErrUnknownScene, got %v", err)
	}
}

func TestRestingBoxHoldsStill(t *testing.T) {
	r := NewRegistry()
	settings, _ := r.Settings("resting_box")
	settings.Collision.UseManifolds = false
	w, err := r.Build("resting_box", settings, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 60; i++ {
		if _, err := w.Step(1.0 / 60); err != nil {
			t.Fatal(err)
		}
	}
	if d := w.MaxPenetration(); d > 1e-6 {
		t.Errorf("expected no penetration, got %f", d)
	}
}

package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/experiment"
)

func shortConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scene = "bounce"
	cfg.Duration = 0.5
	cfg.Collision.UseManifolds = false
	return cfg
}

func TestApply(t *testing.T) {
	base := config.DefaultConfig()
	cfg, err := Apply(base, Params{"iterations": 3, "thickness": 0.01})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Solver.Iterations != 3 || cfg.Collision.Thickness != 0.01 {
		t.Errorf("params not applied: %+v", cfg.Solver)
	}
	if base.Solver.Iterations == 3 {
		t.Error("base config was modified")
	}

	if _, err := Apply(base, Params{"bogus": 1}); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds, got %v", err)
	}
	if _, err := Apply(base, Params{"pair_iterations": 0}); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for invalid value, got %v", err)
	}
}

func TestGridSearch(t *testing.T) {
	g := NewGridSearch(
		[]string{"iterations", "pair_iterations"},
		[][]float64{{1, 8}, {0, 1}},
	)
	best, val, trials, err := g.Search(context.Background(), experiment.NewRegistry(), shortConfig(), "max_penetration")
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 4 {
		t.Fatalf("expected 4 trials, got %d", len(trials))
	}

	failed := 0
	for _, tr := range trials {
		if tr.Err != nil {
			failed++
			if tr.Params["pair_iterations"] != 0 {
				t.Errorf("unexpected failure for %v: %v", tr.Params, tr.Err)
			}
			continue
		}
		if tr.Value < val {
			t.Errorf("trial %v beat the reported best %f", tr.Params, val)
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 invalid trials, got %d", failed)
	}
	if best["pair_iterations"] != 1 {
		t.Errorf("best params came from an invalid trial: %v", best)
	}
}

func TestGridSearchErrors(t *testing.T) {
	reg := experiment.NewRegistry()

	g := NewGridSearch([]string{"iterations"}, nil)
	if _, _, _, err := g.Search(context.Background(), reg, shortConfig(), "max_penetration"); err == nil {
		t.Error("expected error for mismatched ranges")
	}

	g = NewGridSearch([]string{"iterations"}, [][]float64{{1}})
	if _, _, _, err := g.Search(context.Background(), reg, shortConfig(), "nope"); err == nil {
		t.Error("expected error for unknown metric")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, _, err := g.Search(ctx, reg, shortConfig(), "max_penetration"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

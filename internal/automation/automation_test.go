package automation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/experiment"
	"github.com/san-kum/contactsim/internal/storage"
)

const scenarioYAML = `name: smoke
description: two short runs
steps:
  - scene: resting_box
    duration: 0.25
    params:
      iterations: 2
    save: true
  - scene: stack
    preset: oneshot
    duration: 0.25
    seed: 3
`

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoke.yaml")
	if err := os.WriteFile(path, []byte(scenarioYAML), 0644); err != nil {
		t.Fatal(err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Name != "smoke" || len(sc.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", sc)
	}

	store := storage.New(filepath.Join(dir, "runs"))
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	results, err := RunScenario(context.Background(), sc, experiment.NewRegistry(), store)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Config.Solver.Iterations != 2 {
		t.Errorf("params not applied, iterations %d", results[0].Config.Solver.Iterations)
	}
	if results[0].RunID == "" || results[1].RunID != "" {
		t.Errorf("only the first step should be saved: %q %q", results[0].RunID, results[1].RunID)
	}
	if !results[1].Config.Collision.OneShotManifolds || results[1].Config.Seed != 3 {
		t.Errorf("preset not applied: %+v", results[1].Config.Collision)
	}
	runs, err := store.List()
	if err != nil || len(runs) != 1 {
		t.Errorf("expected one saved run, got %d (%v)", len(runs), err)
	}
}

func TestStepConfigErrors(t *testing.T) {
	reg := experiment.NewRegistry()
	if _, err := StepConfig(reg, ScenarioStep{Scene: "nope"}); err == nil {
		t.Error("expected error for unknown scene")
	}
	if _, err := StepConfig(reg, ScenarioStep{Scene: "stack", Preset: "nope"}); err == nil {
		t.Error("expected error for unknown preset")
	}
	if _, err := StepConfig(reg, ScenarioStep{Scene: "stack", Params: map[string]float64{"bogus": 1}}); err == nil {
		t.Error("expected error for unknown tunable")
	}
}

func TestRunSweep(t *testing.T) {
	base := config.DefaultConfig()
	base.Duration = 0.25
	sweep := &ParameterSweep{Base: base, ParamName: "pair_iterations", ParamMin: 0, ParamMax: 2, NumSteps: 3}

	results, err := RunSweep(context.Background(), sweep, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Error("zero pair iterations should be rejected")
	}
	for _, r := range results[1:] {
		if r.Err != nil {
			t.Errorf("value %f failed: %v", r.ParamValue, r.Err)
		}
	}
	if results[2].ParamValue != 2 {
		t.Errorf("expected last value 2, got %f", results[2].ParamValue)
	}
}

func TestRunMonteCarlo(t *testing.T) {
	base := config.DefaultConfig()
	base.Scene = "capsules"
	base.Duration = 0.25
	base.Seed = 10

	results, err := RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: base, NumTrials: 3, MaxPenetration: 1}, experiment.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 || results[2].Seed != 12 {
		t.Fatalf("unexpected results %+v", results)
	}
	if rate := StabilityRate(results); rate != 1 {
		t.Errorf("expected every short capsule drop to stay stable, got %f", rate)
	}
	if StabilityRate(nil) != 0 {
		t.Error("expected zero rate for no trials")
	}
}

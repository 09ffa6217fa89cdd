// Package automation runs scripted batches of contact experiments.
package automation

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/experiment"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/optim"
	"github.com/san-kum/contactsim/internal/sim"
	"github.com/san-kum/contactsim/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep runs one scene. Preset is optional; Params are tunables
// from optim applied on top of it.
type ScenarioStep struct {
	Scene    string             `yaml:"scene"`
	Preset   string             `yaml:"preset"`
	Duration float64            `yaml:"duration"`
	Dt       float64            `yaml:"dt"`
	Seed     int64              `yaml:"seed"`
	Params   map[string]float64 `yaml:"params"`
	Save     bool               `yaml:"save"`
}

type StepResult struct {
	Config *config.Config
	Result *sim.Result
	RunID  string
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	return &scenario, nil
}

// StepConfig resolves the config a step runs with.
func StepConfig(reg *experiment.Registry, step ScenarioStep) (*config.Config, error) {
	settings, err := reg.Settings(step.Scene)
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	cfg.Scene = step.Scene
	cfg.Collision = settings.Collision
	cfg.Solver = settings.Solver
	if step.Preset != "" {
		if cfg = config.GetPreset(step.Scene, step.Preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %s/%s", step.Scene, step.Preset)
		}
	}
	if step.Duration > 0 {
		cfg.Duration = step.Duration
	}
	if step.Dt > 0 {
		cfg.Dt = step.Dt
	}
	cfg.Seed = step.Seed
	return optim.Apply(cfg, step.Params)
}

func runConfig(ctx context.Context, reg *experiment.Registry, cfg *config.Config, ms []sim.Metric) (*sim.Result, error) {
	exp := experiment.New(experiment.Config{
		Scene:    cfg.Scene,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Seed:     cfg.Seed,
		Settings: cfg.WorldSettings(),
	})
	if err := exp.Setup(reg, ms); err != nil {
		return nil, err
	}
	return exp.Run(ctx)
}

// RunScenario executes all steps in a scenario. Steps with Save set are
// written to store when it is non-nil.
func RunScenario(ctx context.Context, scenario *Scenario, reg *experiment.Registry, store *storage.Store) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := StepConfig(reg, step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		result, err := runConfig(ctx, reg, cfg, metrics.All())
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Config: cfg, Result: result}
		if step.Save && store != nil {
			if sr.RunID, err = store.Save(cfg, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep runs a base config across evenly spaced values of one
// tunable.
type ParameterSweep struct {
	Base      *config.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

type SweepResult struct {
	ParamValue     float64
	MaxPenetration float64
	FinalEnergy    float64
	Converged      float64
	Err            error
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, reg *experiment.Registry) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	}

	for i := 0; i < sweep.NumSteps; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		val := sweep.ParamMin + float64(i)*paramStep
		sr := SweepResult{ParamValue: val}

		cfg, err := optim.Apply(sweep.Base, optim.Params{sweep.ParamName: val})
		if err != nil {
			sr.Err = err
			results = append(results, sr)
			continue
		}

		result, err := runConfig(ctx, reg, cfg, []sim.Metric{metrics.NewPenetration(), metrics.NewConvergence()})
		if err != nil {
			return results, err
		}
		if len(result.Errors) > 0 {
			sr.Err = result.Errors[0]
		}
		sr.MaxPenetration = result.Metrics["max_penetration"]
		sr.Converged = result.Metrics["convergence"]
		if n := len(result.Samples); n > 0 {
			sr.FinalEnergy = result.Samples[n-1].KineticEnergy
		}
		results = append(results, sr)
	}

	return results, nil
}

// MonteCarloConfig runs one config across consecutive seeds.
type MonteCarloConfig struct {
	Base      *config.Config
	NumTrials int
	// MaxPenetration above which a trial counts as unstable.
	MaxPenetration float64
}

type MonteCarloResult struct {
	Seed           int64
	MaxPenetration float64
	Stable         bool
}

// RunMonteCarlo runs the trials and reports which stayed stable: no step
// error and penetration within bounds.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, reg *experiment.Registry) ([]MonteCarloResult, error) {
	results := make([]MonteCarloResult, 0, cfg.NumTrials)

	for trial := 0; trial < cfg.NumTrials; trial++ {
		c := cfg.Base.Clone()
		c.Seed = cfg.Base.Seed + int64(trial)

		result, err := runConfig(ctx, reg, c, []sim.Metric{metrics.NewPenetration()})
		if err != nil {
			return results, err
		}
		pen := result.Metrics["max_penetration"]
		results = append(results, MonteCarloResult{
			Seed:           c.Seed,
			MaxPenetration: pen,
			Stable:         len(result.Errors) == 0 && pen <= cfg.MaxPenetration,
		})
	}

	return results, nil
}

// StabilityRate is the fraction of stable trials.
func StabilityRate(results []MonteCarloResult) float64 {
	if len(results) == 0 {
		return 0
	}
	stable := 0
	for _, r := range results {
		if r.Stable {
			stable++
		}
	}
	return float64(stable) / float64(len(results))
}

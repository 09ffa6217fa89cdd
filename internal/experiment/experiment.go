package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/contactsim/internal/sim"
)

type Config struct {
	Scene    string
	Dt       float64
	Duration float64
	Seed     int64
	Settings sim.Settings
}

type Experiment struct {
	cfg       Config
	simulator *sim.Simulator
}

func New(cfg Config) *Experiment {
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(r *Registry, metrics []sim.Metric) error {
	w, err := r.Build(e.cfg.Scene, e.cfg.Settings, e.cfg.Seed)
	if err != nil {
		return fmt.Errorf("build %s: %w", e.cfg.Scene, err)
	}
	e.simulator = sim.New(w)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}

	simCfg := sim.Config{
		Dt:            e.cfg.Dt,
		Duration:      e.cfg.Duration,
		Seed:          e.cfg.Seed,
		ValidateState: true,
	}

	return e.simulator.Run(ctx, simCfg)
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}

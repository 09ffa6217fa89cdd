package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/contactsim/internal/dynamo"
)

// Simulator runs a World for a fixed duration, feeding metrics and
// observers after every step.
type Simulator struct {
	world     *World
	metrics   []Metric
	observers []Observer
}

func New(w *World) *Simulator {
	return &Simulator{
		world:     w,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) World() *World          { return s.world }
func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		st, err := s.world.Step(cfg.Dt)
		if err != nil {
			result.Errors = append(result.Errors, err)
			if cfg.ValidateState {
				break
			}
		}
		result.StepsTaken++

		for _, m := range s.metrics {
			m.Observe(s.world, st)
		}
		for _, obs := range s.observers {
			obs.OnStep(s.world, st)
		}

		result.Samples = append(result.Samples, Sample{
			Time:           s.world.Time(),
			KineticEnergy:  s.world.Particles().KineticEnergy(),
			MaxPenetration: s.world.MaxPenetration(),
			Contacts:       st.Constraints,
			Iterations:     st.Iterations,
		})
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrParameterBounds, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrParameterBounds, cfg.Duration)
	}
	return nil
}

// RunWithCallback steps until the duration elapses or callback returns
// false.
func (s *Simulator) RunWithCallback(ctx context.Context, cfg Config, callback func(*World, Stats) bool) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}

	for s.world.Time() < cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		st, err := s.world.Step(cfg.Dt)
		if err != nil && cfg.ValidateState {
			return err
		}
		if !callback(s.world, st) {
			return nil
		}
	}

	return nil
}

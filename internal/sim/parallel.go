package sim

import (
	"context"
	"sync"
)

// Factory builds a fresh world for one ensemble member.
type Factory func(seed int64) (*World, error)

// Ensemble runs seeded variants of a scene concurrently.
type Ensemble struct {
	build     Factory
	metrics   func() []Metric
	numRuns   int
	seedStart int64
}

// NewEnsemble creates an ensemble. metrics, if not nil, returns fresh
// metric instances for each run.
func NewEnsemble(build Factory, metrics func() []Metric, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{build: build, metrics: metrics, numRuns: numRuns, seedStart: seedStart}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			cfgCopy := cfg
			cfgCopy.Seed = e.seedStart + int64(idx)

			w, err := e.build(cfgCopy.Seed)
			if err != nil {
				errs[idx] = err
				return
			}
			sim := New(w)
			if e.metrics != nil {
				for _, m := range e.metrics() {
					sim.AddMetric(m)
				}
			}

			results[idx], errs[idx] = sim.Run(ctx, cfgCopy)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

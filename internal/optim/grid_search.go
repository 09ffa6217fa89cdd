package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/contactsim/internal/config"
	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/experiment"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/sim"
)

// Params maps tunable names to values. See Tunables.
type Params map[string]float64

var tunables = map[string]func(c *config.Config, v float64){
	"iterations":          func(c *config.Config, v float64) { c.Solver.Iterations = int(v) },
	"push_out_iterations": func(c *config.Config, v float64) { c.Solver.PushOutIterations = int(v) },
	"pair_iterations":     func(c *config.Config, v float64) { c.Solver.PairIterations = int(v) },
	"thickness":           func(c *config.Config, v float64) { c.Collision.Thickness = v },
	"cull_distance":       func(c *config.Config, v float64) { c.Collision.CullDistance = v },
	"dt":                  func(c *config.Config, v float64) { c.Dt = v },
}

func Tunables() []string {
	names := make([]string, 0, len(tunables))
	for name := range tunables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params set.
func Apply(base *config.Config, params Params) (*config.Config, error) {
	cfg := base.Clone()
	for name, v := range params {
		set, ok := tunables[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tunable %q", dynamo.ErrParameterBounds, name)
		}
		set(cfg, v)
	}
	return cfg, cfg.Validate()
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Trial is one evaluated grid point.
type Trial struct {
	Params Params
	Value  float64
	Err    error
}

// Search runs every grid point on the base config and returns the params
// that minimize the named metric. Points whose config is invalid or whose
// run fails are recorded in trials and skipped.
func (g *GridSearch) Search(
	ctx context.Context,
	reg *experiment.Registry,
	base *config.Config,
	metricName string,
) (Params, float64, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, nil, fmt.Errorf("%w: %d params but %d ranges", dynamo.ErrParameterBounds, len(g.paramNames), len(g.ranges))
	}
	if _, err := metrics.New(metricName); err != nil {
		return nil, 0, nil, err
	}

	best := math.Inf(1)
	var bestParams Params
	var trials []Trial

	evaluate := func(params Params) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		val, err := g.run(ctx, reg, base, params, metricName)
		trials = append(trials, Trial{Params: params, Value: val, Err: err})
		if err == nil && val < best {
			best = val
			bestParams = params
		}
		return nil
	}

	if err := g.searchRecursive(0, Params{}, evaluate); err != nil {
		return bestParams, best, trials, err
	}
	if bestParams == nil {
		return nil, best, trials, fmt.Errorf("no grid point completed")
	}
	return bestParams, best, trials, nil
}

func (g *GridSearch) run(ctx context.Context, reg *experiment.Registry, base *config.Config, params Params, metricName string) (float64, error) {
	cfg, err := Apply(base, params)
	if err != nil {
		return 0, err
	}
	m, _ := metrics.New(metricName)
	exp := experiment.New(experiment.Config{
		Scene:    cfg.Scene,
		Dt:       cfg.Dt,
		Duration: cfg.Duration,
		Seed:     cfg.Seed,
		Settings: cfg.WorldSettings(),
	})
	if err := exp.Setup(reg, []sim.Metric{m}); err != nil {
		return 0, err
	}
	result, err := exp.Run(ctx)
	if err != nil {
		return 0, err
	}
	if len(result.Errors) > 0 {
		return 0, result.Errors[0]
	}
	return result.Metrics[metricName], nil
}

func (g *GridSearch) searchRecursive(depth int, current Params, evaluate func(Params) error) error {
	if depth == len(g.paramNames) {
		return evaluate(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(Params, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(depth+1, newParams, evaluate); err != nil {
			return err
		}
	}
	return nil
}

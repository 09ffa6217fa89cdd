package config

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/sim"
)

const (
	DefaultScene    = "resting_box"
	DefaultDt       = 1.0 / 60
	DefaultDuration = 5.0
	DefaultCellSize = 1.0
)

type Config struct {
	Scene     string                   `yaml:"scene"`
	Dt        float64                  `yaml:"dt"`
	Duration  float64                  `yaml:"duration"`
	Seed      int64                    `yaml:"seed"`
	Gravity   [3]float64               `yaml:"gravity"`
	CellSize  float64                  `yaml:"cell_size"`
	Collision collision.Settings       `yaml:"collision"`
	Solver    collision.SolverSettings `yaml:"solver"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:     DefaultScene,
		Dt:        DefaultDt,
		Duration:  DefaultDuration,
		Gravity:   [3]float64{0, 0, -9.81},
		CellSize:  DefaultCellSize,
		Collision: collision.DefaultSettings(),
		Solver:    collision.DefaultSolverSettings(),
	}
}

// Load reads a YAML config. Fields missing from the file keep their
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Scene == "" {
		return fmt.Errorf("%w: scene is required", dynamo.ErrParameterBounds)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrParameterBounds, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrParameterBounds, c.Duration)
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("%w: cell size must be positive, got %f", dynamo.ErrParameterBounds, c.CellSize)
	}
	if err := c.Collision.Validate(); err != nil {
		return err
	}
	return c.Solver.Validate()
}

// WorldSettings converts the config into settings for a World.
func (c *Config) WorldSettings() sim.Settings {
	return sim.Settings{
		Gravity:   mgl64.Vec3(c.Gravity),
		CellSize:  c.CellSize,
		Collision: c.Collision,
		Solver:    c.Solver,
	}
}

func (c *Config) Clone() *Config {
	out := *c
	out.Solver.FrictionOverride = clonePtr(c.Solver.FrictionOverride)
	out.Solver.RestitutionOverride = clonePtr(c.Solver.RestitutionOverride)
	out.Solver.AngularFrictionOverride = clonePtr(c.Solver.AngularFrictionOverride)
	return &out
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/contactsim/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scene != "resting_box" {
		t.Errorf("expected scene resting_box, got %s", cfg.Scene)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	cfg := GetPreset("bounce", "dead")
	cfg.Seed = 42
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "scene: stack\nsolver:\n  iterations: 3\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := DefaultConfig()
	want.Scene = "stack"
	want.Solver.Iterations = 3
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		tweak func(c *Config)
	}{
		{"no scene", func(c *Config) { c.Scene = "" }},
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -1 }},
		{"zero cell", func(c *Config) { c.CellSize = 0 }},
		{"negative thickness", func(c *Config) { c.Collision.Thickness = -0.1 }},
		{"zero pair iterations", func(c *Config) { c.Solver.PairIterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.tweak(cfg)
			if err := cfg.Validate(); !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("stack", "tall")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Solver.Iterations != 16 {
		t.Errorf("expected 16 iterations, got %d", cfg.Solver.Iterations)
	}

	cfg.Solver.Iterations = 1
	if again := GetPreset("stack", "tall"); again.Solver.Iterations != 16 {
		t.Error("preset was mutated through a returned copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("stack", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "tall"); cfg != nil {
		t.Error("expected nil for nonexistent scene")
	}
}

func TestPresetsValidate(t *testing.T) {
	for scene, presets := range Presets {
		for name, cfg := range presets {
			if cfg.Scene != scene {
				t.Errorf("%s/%s: scene is %s", scene, name, cfg.Scene)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("%s/%s: %v", scene, name, err)
			}
		}
	}
}

func TestListPresets(t *testing.T) {
	if diff := cmp.Diff([]string{"oneshot", "tall"}, ListPresets("stack")); diff != "" {
		t.Errorf("presets mismatch (-want +got):\n%s", diff)
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent scene")
	}
}

package config

import "sort"

func preset(scene string, tune func(c *Config)) *Config {
	c := DefaultConfig()
	c.Scene = scene
	if tune != nil {
		tune(c)
	}
	return c
}

var Presets = map[string]map[string]*Config{
	"resting_box": {
		"default": preset("resting_box", nil),
		"single_point": preset("resting_box", func(c *Config) {
			c.Collision.UseManifolds = false
		}),
	},
	"bounce": {
		"elastic": preset("bounce", func(c *Config) {
			c.Collision.UseManifolds = false
			c.Duration = 10
		}),
		"dead": preset("bounce", func(c *Config) {
			c.Collision.UseManifolds = false
			zero := 0.0
			c.Solver.RestitutionOverride = &zero
		}),
	},
	"stack": {
		"tall": preset("stack", func(c *Config) {
			c.Solver.Iterations = 16
			c.Solver.PushOutIterations = 8
			c.Duration = 10
		}),
		"oneshot": preset("stack", func(c *Config) {
			c.Collision.OneShotManifolds = true
			c.Solver.Iterations = 16
		}),
	},
	"pile": {
		"parallel": preset("pile", func(c *Config) {
			c.Solver.Parallel = true
		}),
		"nopersist": preset("pile", func(c *Config) {
			c.Collision.Persistence = false
		}),
	},
	"spheres": {
		"fine": preset("spheres", func(c *Config) {
			c.Dt = 1.0 / 240
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(scene, name string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	cfg, ok := scenePresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

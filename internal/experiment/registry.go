package experiment

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/metrics"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

// Builder fills a store with the bodies of a scene.
type Builder func(store *particles.Store, rng *rand.Rand)

type Scene struct {
	Name        string
	Description string
	Build       Builder
	// Tune adjusts the default settings for the scene, if set.
	Tune func(*sim.Settings)
}

type Registry struct {
	scenes map[string]Scene
}

func NewRegistry() *Registry {
	r := &Registry{scenes: make(map[string]Scene)}

	r.Register(Scene{Name: "resting_box", Description: "unit box resting on a plane", Build: buildRestingBox})
	r.Register(Scene{Name: "bounce", Description: "bouncy ball dropped on a plane", Build: buildBounce, Tune: tuneBounce})
	r.Register(Scene{Name: "stack", Description: "five boxes stacked on a plane", Build: buildStack, Tune: tuneStack})
	r.Register(Scene{Name: "pile", Description: "mixed shapes dropped into a pile", Build: buildPile})
	r.Register(Scene{Name: "heightfield", Description: "spheres and boxes on rolling terrain", Build: buildHeightField})
	r.Register(Scene{Name: "spheres", Description: "grid of spheres on a triangle mesh", Build: buildSpheres})
	r.Register(Scene{Name: "capsules", Description: "capsules with angular friction", Build: buildCapsules})

	return r
}

func (r *Registry) Register(s Scene) {
	r.scenes[s.Name] = s
}

func (r *Registry) GetScene(name string) (Scene, error) {
	s, ok := r.scenes[name]
	if !ok {
		return Scene{}, fmt.Errorf("%w: %s", dynamo.ErrUnknownScene, name)
	}
	return s, nil
}

// ListScenes returns scene names in sorted order.
func (r *Registry) ListScenes() []string {
	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Settings returns the default world settings tuned for a scene.
func (r *Registry) Settings(name string) (sim.Settings, error) {
	s, err := r.GetScene(name)
	if err != nil {
		return sim.Settings{}, err
	}
	settings := sim.DefaultSettings()
	if s.Tune != nil {
		s.Tune(&settings)
	}
	return settings, nil
}

// Build creates a world for a scene. The seed only affects scenes with
// randomized placement.
func (r *Registry) Build(name string, settings sim.Settings, seed int64) (*sim.World, error) {
	s, err := r.GetScene(name)
	if err != nil {
		return nil, err
	}
	store := particles.NewStore()
	s.Build(store, rand.New(rand.NewSource(seed)))
	return sim.NewWorld(store, settings)
}

func (r *Registry) DefaultMetrics() []sim.Metric {
	return metrics.All()
}

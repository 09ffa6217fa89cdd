package collision

// Modifier inspects the contacts found this step before they are solved.
// It may disable contacts; disabled contacts are skipped by the solver and
// re-enabled on the next step if they survive.
type Modifier func(set *ModifierSet)

// ModifierSet is the view of the container handed to modifiers.
type ModifierSet struct {
	container *Container
}

func NewModifierSet(c *Container) *ModifierSet {
	return &ModifierSet{container: c}
}

// Handles returns every live contact handle.
func (m *ModifierSet) Handles() []*Handle { return m.container.Handles() }

func (m *ModifierSet) Disable(h *Handle) {
	h.Contact().Disabled = true
}

// Apply runs each modifier in order.
func (m *ModifierSet) Apply(mods ...Modifier) {
	for _, mod := range mods {
		mod(m)
	}
}

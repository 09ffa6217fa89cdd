package collision

// LifespanCounter is the current value of the step counter used to stamp
// contacts.
func (c *Container) LifespanCounter() int { return c.lifespanCounter }

// Stamp marks contact as touched in the current window.
func (c *Container) Stamp(contact *Contact) {
	contact.Timestamp = c.lifespanCounter
}

// UpdatePositionBasedState advances the lifespan counter and prunes
// contacts that fell out of the window. It runs once per step before the
// narrow phase and returns the number of contacts removed.
func (c *Container) UpdatePositionBasedState(dt float64) int {
	c.checkMutable()
	c.lifespanCounter++
	return c.Reset()
}

// Reset drops stale contacts. With persistence enabled a contact survives
// while it was stamped within the last Lifespan steps and both particles
// still collide; disabled flags set by modifiers are cleared on survivors.
// Without persistence every contact is removed.
func (c *Container) Reset() int {
	c.checkMutable()

	if !c.settings.Persistence {
		n := c.NumConstraints()
		c.Clear()
		return n
	}

	removed := 0
	for k := Kind(0); k < numKinds; k++ {
		for i := len(c.arrays[k]) - 1; i >= 0; i-- {
			contact := &c.arrays[k][i]
			if c.stale(contact) {
				c.removeAt(k, i)
				removed++
				continue
			}
			contact.Disabled = false
		}
	}
	return removed
}

func (c *Container) stale(contact *Contact) bool {
	if c.lifespanCounter-contact.Timestamp > c.settings.Lifespan {
		return true
	}
	return !contact.Particles[0].CollisionsEnabled() || !contact.Particles[1].CollisionsEnabled()
}

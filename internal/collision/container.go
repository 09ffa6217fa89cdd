package collision

import (
	"fmt"
	"sync/atomic"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/particles"
)

// Handle is a stable reference to a contact. It follows its contact
// through swap-removal and becomes dead when the contact is removed.
type Handle struct {
	container *Container
	kind      Kind
	index     int
	serial    uint64
	live      bool
}

func (h *Handle) Kind() Kind { return h.kind }
func (h *Handle) Index() int { return h.index }
func (h *Handle) Live() bool { return h.live }
func (h *Handle) ID() uint64 { return h.serial }

// Contact dereferences the handle. The pointer is valid until the next
// container mutation.
func (h *Handle) Contact() *Contact {
	if !h.live {
		panic(fmt.Errorf("%w: handle %d", dynamo.ErrStaleHandle, h.serial))
	}
	c := &h.container.arrays[h.kind][h.index]
	if c.serial != h.serial {
		panic(fmt.Errorf("%w: handle %d resolves to contact %d", dynamo.ErrStaleHandle, h.serial, c.serial))
	}
	return c
}

type pairKey struct {
	lo, hi particles.ID
}

func makePairKey(a, b particles.ID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

type shapeKey struct {
	pair             pairKey
	shapeLo, shapeHi int
}

func makeShapeKey(a, b particles.ID, shapeA, shapeB int) shapeKey {
	if b < a {
		return shapeKey{pair: pairKey{lo: b, hi: a}, shapeLo: shapeB, shapeHi: shapeA}
	}
	return shapeKey{pair: pairKey{lo: a, hi: b}, shapeLo: shapeA, shapeHi: shapeB}
}

// Container is the single owner of live contacts. Each Kind has its own
// dense array; handles[k][i] is the handle of arrays[k][i] and every
// handle's index points back at its slot.
type Container struct {
	settings Settings

	arrays    [numKinds][]Contact
	handles   [numKinds][]*Handle
	points    map[pairKey]*Handle
	manifolds map[shapeKey]*Handle

	lifespanCounter int
	nextSerial      uint64
	locked          atomic.Int32
}

func NewContainer(settings Settings) *Container {
	return &Container{
		settings:   settings,
		points:     make(map[pairKey]*Handle),
		manifolds:  make(map[shapeKey]*Handle),
		nextSerial: 1,
	}
}

func (c *Container) Settings() Settings { return c.settings }

func (c *Container) checkMutable() {
	if c.locked.Load() > 0 {
		panic(dynamo.ErrContainerLocked)
	}
}

func (c *Container) lock()   { c.locked.Add(1) }
func (c *Container) unlock() { c.locked.Add(-1) }

// AddConstraint stores a new contact of the given kind between a and b and
// returns its handle, or nil when handles are disabled. Adding a second
// point contact for the same particle pair, or a second manifold for the
// same shape pair, panics.
func (c *Container) AddConstraint(kind Kind, a, b particles.Handle, geom Geometry) *Handle {
	c.checkMutable()

	h := &Handle{container: c, kind: kind, serial: c.nextSerial, live: true}
	switch kind {
	case SinglePoint, SweptPoint:
		key := makePairKey(a.ID(), b.ID())
		if _, dup := c.points[key]; dup {
			panic(fmt.Errorf("%w: %d/%d", dynamo.ErrDuplicatePair, key.lo, key.hi))
		}
		c.points[key] = h
	case MultiPoint:
		key := makeShapeKey(a.ID(), b.ID(), geom.ShapeIndex[0], geom.ShapeIndex[1])
		if _, dup := c.manifolds[key]; dup {
			panic(fmt.Errorf("%w: %d/%d shapes %d/%d", dynamo.ErrDuplicatePair, key.pair.lo, key.pair.hi, key.shapeLo, key.shapeHi))
		}
		c.manifolds[key] = h
	default:
		panic(fmt.Errorf("collision: unknown contact kind %d", kind))
	}
	c.nextSerial++

	contact := Contact{
		Particles: [2]particles.Handle{a, b},
		Geometry:  geom,
		Kind:      kind,
		Timestamp: c.lifespanCounter,
		serial:    h.serial,
	}
	contact.refreshMaterial(c.settings.DefaultFriction)

	h.index = len(c.arrays[kind])
	c.arrays[kind] = append(c.arrays[kind], contact)
	c.handles[kind] = append(c.handles[kind], h)

	if !c.settings.HandlesEnabled {
		return nil
	}
	return h
}

// RemoveConstraint swap-removes the contact behind h and retargets the
// handle of the contact that moved into its slot.
func (c *Container) RemoveConstraint(h *Handle) {
	c.checkMutable()
	if h == nil || !h.live || h.container != c {
		panic(fmt.Errorf("%w: remove of dead or foreign handle", dynamo.ErrStaleHandle))
	}
	c.removeAt(h.kind, h.index)
}

func (c *Container) removeAt(kind Kind, idx int) {
	arr := c.arrays[kind]
	hs := c.handles[kind]
	last := len(arr) - 1

	removed := hs[idx]
	c.forget(&arr[idx])

	if idx != last {
		arr[idx] = arr[last]
		moved := hs[last]
		hs[idx] = moved
		moved.index = idx
	}
	arr[last] = Contact{}
	hs[last] = nil
	c.arrays[kind] = arr[:last]
	c.handles[kind] = hs[:last]

	removed.live = false
	removed.index = -1
}

func (c *Container) forget(contact *Contact) {
	a, b := contact.Particles[0].ID(), contact.Particles[1].ID()
	if contact.Kind == MultiPoint {
		delete(c.manifolds, makeShapeKey(a, b, contact.ShapeIndex[0], contact.ShapeIndex[1]))
		return
	}
	delete(c.points, makePairKey(a, b))
}

// RemoveConstraints removes every contact touching a particle in ids and
// returns how many were removed.
func (c *Container) RemoveConstraints(ids map[particles.ID]struct{}) int {
	c.checkMutable()
	removed := 0
	for k := Kind(0); k < numKinds; k++ {
		for i := len(c.arrays[k]) - 1; i >= 0; i-- {
			contact := &c.arrays[k][i]
			_, a := ids[contact.Particles[0].ID()]
			_, b := ids[contact.Particles[1].ID()]
			if a || b {
				c.removeAt(k, i)
				removed++
			}
		}
	}
	return removed
}

// Clear removes every contact.
func (c *Container) Clear() {
	c.checkMutable()
	for k := Kind(0); k < numKinds; k++ {
		for _, h := range c.handles[k] {
			h.live = false
			h.index = -1
		}
		c.arrays[k] = c.arrays[k][:0]
		c.handles[k] = c.handles[k][:0]
	}
	clear(c.points)
	clear(c.manifolds)
}

func (c *Container) NumConstraints() int {
	n := 0
	for k := Kind(0); k < numKinds; k++ {
		n += len(c.arrays[k])
	}
	return n
}

// NumOfKind returns the number of contacts with representation k.
func (c *Container) NumOfKind(k Kind) int {
	return len(c.arrays[k])
}

func (c *Container) locate(index int) (Kind, int) {
	for k := Kind(0); k < numKinds; k++ {
		if index < len(c.arrays[k]) {
			return k, index
		}
		index -= len(c.arrays[k])
	}
	panic(fmt.Errorf("collision: constraint index out of range"))
}

// GetConstraint returns the contact at a global index. Indices run over
// single, swept and manifold contacts in that order.
func (c *Container) GetConstraint(index int) *Contact {
	k, i := c.locate(index)
	return &c.arrays[k][i]
}

// GetConstraintHandle returns the handle at a global index. It panics when
// handles are disabled.
func (c *Container) GetConstraintHandle(index int) *Handle {
	if !c.settings.HandlesEnabled {
		panic(dynamo.ErrHandlesDisabled)
	}
	k, i := c.locate(index)
	return c.handles[k][i]
}

// Handles returns every live handle in container order. The solver uses
// it even when handles are not handed out.
func (c *Container) Handles() []*Handle {
	out := make([]*Handle, 0, c.NumConstraints())
	for k := Kind(0); k < numKinds; k++ {
		out = append(out, c.handles[k]...)
	}
	return out
}

// FindPoint returns the single or swept contact for a particle pair.
func (c *Container) FindPoint(a, b particles.ID) (*Handle, bool) {
	h, ok := c.points[makePairKey(a, b)]
	return h, ok
}

// FindManifold returns the manifold for a shape pair.
func (c *Container) FindManifold(a, b particles.ID, shapeA, shapeB int) (*Handle, bool) {
	h, ok := c.manifolds[makeShapeKey(a, b, shapeA, shapeB)]
	return h, ok
}

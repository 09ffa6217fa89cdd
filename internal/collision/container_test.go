package collision

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/particles"
)

func expectPanic(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic wrapping %v", target)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("expected panic wrapping %v, got %v", target, r)
		}
	}()
	fn()
}

func TestHandlesSurviveSwapRemove(t *testing.T) {
	store := particles.NewStore()
	bodies := spheresInARow(store, 12)
	c := NewContainer(DefaultSettings())
	rng := rand.New(rand.NewSource(7))

	type entry struct {
		h    *Handle
		a, b particles.ID
	}
	var live []entry
	var dead []*Handle

	for step := 0; step < 400; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			i, j := rng.Intn(len(bodies)), rng.Intn(len(bodies))
			if i == j {
				continue
			}
			if _, dup := c.FindPoint(bodies[i].ID(), bodies[j].ID()); dup {
				continue
			}
			kind := SinglePoint
			if rng.Intn(2) == 0 {
				kind = SweptPoint
			}
			h := c.AddConstraint(kind, bodies[i], bodies[j], sphereGeometry(0.5))
			live = append(live, entry{h: h, a: bodies[i].ID(), b: bodies[j].ID()})
			continue
		}
		k := rng.Intn(len(live))
		c.RemoveConstraint(live[k].h)
		dead = append(dead, live[k].h)
		live = slices.Delete(live, k, k+1)
	}

	if c.NumConstraints() != len(live) {
		t.Fatalf("expected %d constraints, got %d", len(live), c.NumConstraints())
	}
	for _, e := range live {
		contact := e.h.Contact()
		got := []particles.ID{contact.Particles[0].ID(), contact.Particles[1].ID()}
		if diff := cmp.Diff([]particles.ID{e.a, e.b}, got); diff != "" {
			t.Errorf("handle %d resolves to the wrong pair (-want +got):\n%s", e.h.ID(), diff)
		}
	}
	for _, h := range dead {
		if h.Live() {
			t.Fatalf("removed handle %d still live", h.ID())
		}
		expectPanic(t, dynamo.ErrStaleHandle, func() { h.Contact() })
	}

	var want, got []uint64
	for _, e := range live {
		want = append(want, e.h.ID())
	}
	for _, h := range c.Handles() {
		got = append(got, h.ID())
	}
	slices.Sort(want)
	slices.Sort(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("container handles differ (-want +got):\n%s", diff)
	}
}

func TestGlobalIndexOrder(t *testing.T) {
	store := particles.NewStore()
	b := spheresInARow(store, 4)
	c := NewContainer(DefaultSettings())

	m := c.AddConstraint(MultiPoint, b[0], b[1], sphereGeometry(0.5))
	s := c.AddConstraint(SinglePoint, b[1], b[2], sphereGeometry(0.5))
	w := c.AddConstraint(SweptPoint, b[2], b[3], sphereGeometry(0.5))

	want := []*Handle{s, w, m}
	for i, h := range want {
		if got := c.GetConstraintHandle(i); got != h {
			t.Errorf("index %d: expected handle %d, got %d", i, h.ID(), got.ID())
		}
		if c.GetConstraint(i) != h.Contact() {
			t.Errorf("index %d: contact does not match handle", i)
		}
	}
	if c.NumOfKind(MultiPoint) != 1 || c.NumOfKind(SinglePoint) != 1 || c.NumOfKind(SweptPoint) != 1 {
		t.Errorf("unexpected per-kind counts")
	}
}

func TestDuplicatePairPanics(t *testing.T) {
	store := particles.NewStore()
	b := spheresInARow(store, 2)
	c := NewContainer(DefaultSettings())
	c.AddConstraint(SinglePoint, b[0], b[1], sphereGeometry(0.5))

	expectPanic(t, dynamo.ErrDuplicatePair, func() {
		c.AddConstraint(SweptPoint, b[1], b[0], sphereGeometry(0.5))
	})

	// A manifold per shape pair is allowed alongside a point contact.
	c.AddConstraint(MultiPoint, b[0], b[1], sphereGeometry(0.5))
	expectPanic(t, dynamo.ErrDuplicatePair, func() {
		c.AddConstraint(MultiPoint, b[1], b[0], sphereGeometry(0.5))
	})
}

func TestHandlesDisabled(t *testing.T) {
	settings := DefaultSettings()
	settings.HandlesEnabled = false
	store := particles.NewStore()
	b := spheresInARow(store, 2)
	c := NewContainer(settings)

	if h := c.AddConstraint(SinglePoint, b[0], b[1], sphereGeometry(0.5)); h != nil {
		t.Fatalf("expected nil handle, got %d", h.ID())
	}
	if c.NumConstraints() != 1 {
		t.Fatalf("expected the contact to be stored")
	}
	expectPanic(t, dynamo.ErrHandlesDisabled, func() { c.GetConstraintHandle(0) })
	if c.GetConstraint(0).Particles[0] != b[0] {
		t.Errorf("contact lookup by index failed")
	}
}

func TestRemoveConstraintsByParticle(t *testing.T) {
	store := particles.NewStore()
	b := spheresInARow(store, 5)
	c := NewContainer(DefaultSettings())
	for i := 0; i < 4; i++ {
		c.AddConstraint(SinglePoint, b[i], b[i+1], sphereGeometry(0.5))
	}
	c.AddConstraint(MultiPoint, b[2], b[4], sphereGeometry(0.5))

	removed := c.RemoveConstraints(map[particles.ID]struct{}{b[2].ID(): {}})
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	for _, h := range c.Handles() {
		if h.Contact().Touches(b[2].ID()) {
			t.Errorf("contact %d still touches removed particle", h.ID())
		}
	}
	if _, ok := c.FindPoint(b[1].ID(), b[2].ID()); ok {
		t.Errorf("pair index still holds removed contact")
	}
}

func TestMutationWhileLockedPanics(t *testing.T) {
	store := particles.NewStore()
	b := spheresInARow(store, 2)
	c := NewContainer(DefaultSettings())
	c.lock()
	defer c.unlock()
	expectPanic(t, dynamo.ErrContainerLocked, func() {
		c.AddConstraint(SinglePoint, b[0], b[1], sphereGeometry(0.5))
	})
}

package collision

import (
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
)

const dt = 1.0 / 60

var _ = Describe("Solver", func() {
	var (
		store     *particles.Store
		container *Container
		narrow    *NarrowPhase
		settings  SolverSettings
		box       *particles.Rigid
		floor     *particles.Rigid
	)

	setup := func(z float64) *Solver {
		store = particles.NewStore()
		box, floor = boxOnFloor(store, z)
		container = NewContainer(pointSettings())
		narrow = NewNarrowPhase(container, nil)
		Expect(construct(narrow, box, floor)).To(Equal(1))
		return NewSolver(container, narrow, settings)
	}

	BeforeEach(func() {
		settings = DefaultSolverSettings()
		settings.FrictionOverride = Float(0)
	})

	Describe("Apply", func() {
		It("reflects a fast approach with full restitution", func() {
			settings.RestitutionOverride = Float(1)
			s := setup(0.5)
			box.SetP(mgl64.Vec3{0, 0, 0.5 - 100*dt})
			box.SetV(mgl64.Vec3{0, 0, -100})

			again := s.Apply(dt, container.Handles(), 0, settings.Iterations)
			Expect(again).To(BeFalse())
			Expect(box.V().Z()).To(BeNumerically("~", 100, 1e-9))
			Expect(box.W().Len()).To(BeNumerically("<", 1e-9))
		})

		It("does not bounce a resting contact", func() {
			settings.RestitutionOverride = Float(1)
			s := setup(0.5)
			box.SetP(mgl64.Vec3{0, 0, 0.5 - 9.81*dt*dt})
			box.SetV(mgl64.Vec3{0, 0, -9.81 * dt})

			s.Apply(dt, container.Handles(), 0, settings.Iterations)
			Expect(box.V().Z()).To(BeNumerically("~", 0, 1e-9))
			Expect(box.P().Z()).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("ignores separating contacts", func() {
			s := setup(0.5)
			box.SetV(mgl64.Vec3{0, 0, 1})
			Expect(s.Apply(dt, container.Handles(), 0, 1)).To(BeFalse())
			Expect(box.V()).To(Equal(mgl64.Vec3{0, 0, 1}))
			Expect(container.GetConstraint(0).AccumulatedImpulse).To(Equal(mgl64.Vec3{}))
		})

		It("skips disabled contacts", func() {
			s := setup(0.5)
			box.SetV(mgl64.Vec3{0, 0, -1})
			set := NewModifierSet(container)
			set.Apply(func(m *ModifierSet) {
				for _, h := range m.Handles() {
					m.Disable(h)
				}
			})
			s.Apply(dt, container.Handles(), 0, 1)
			Expect(box.V().Z()).To(Equal(-1.0))
		})

		It("sticks a slow sliding contact with friction", func() {
			settings.FrictionOverride = Float(1)
			s := setup(0.5)
			box.SetP(mgl64.Vec3{0, 0, 0.5 - 9.81*dt*dt})
			box.SetV(mgl64.Vec3{0.05, 0, -9.81 * dt})

			s.Apply(dt, container.Handles(), 0, 1)
			r := container.GetConstraint(0).Location.Sub(box.P())
			Expect(box.V().Add(box.W().Cross(r)).Len()).To(BeNumerically("<", 1e-3))
			impulse := container.GetConstraint(0).AccumulatedImpulse
			Expect(impulse.X()).To(BeNumerically("<", 0))
			Expect(impulse.Z()).To(BeNumerically(">", 0))
		})

		It("never adds energy", func() {
			settings.RestitutionOverride = Float(1)
			settings.FrictionOverride = Float(0.8)
			s := setup(0.5)
			box.SetP(mgl64.Vec3{0, 0, 0.45})
			box.SetV(mgl64.Vec3{3, -2, -4})
			box.SetW(mgl64.Vec3{1, 2, 0.5})
			before := store.KineticEnergy()

			for i := 0; i < settings.Iterations; i++ {
				s.Apply(dt, container.Handles(), i, settings.Iterations)
			}
			Expect(store.KineticEnergy()).To(BeNumerically("<=", before+1e-9))
		})
	})

	Describe("ApplyPushOut", func() {
		It("removes penetration in one full-strength pass", func() {
			s := setup(0.45)
			again := s.ApplyPushOut(dt, container.Handles(), nil, 0, 1)
			Expect(again).To(BeTrue())
			Expect(box.P().Z()).To(BeNumerically("~", 0.5, 1e-9))
			Expect(box.Q().W).To(BeNumerically("~", 1, 1e-12))
		})

		It("scales the correction over the iterations", func() {
			s := setup(0.45)
			s.ApplyPushOut(dt, container.Handles(), nil, 0, 4)
			Expect(box.P().Z()).To(BeNumerically("~", 0.45+0.05*0.5, 1e-9))
		})

		It("leaves particles in the static set alone", func() {
			s := setup(0.45)
			static := StaticSet{box.ID(): {}}
			Expect(s.ApplyPushOut(dt, container.Handles(), static, 0, 1)).To(BeFalse())
			Expect(box.P().Z()).To(Equal(0.45))
		})

		It("reports no work once the boxes are separated", func() {
			s := setup(0.45)
			s.ApplyPushOut(dt, container.Handles(), nil, 0, 1)
			box.SetP(box.P().Add(mgl64.Vec3{0, 0, 1e-6}))
			Expect(s.ApplyPushOut(dt, container.Handles(), nil, 0, 1)).To(BeFalse())
		})

		It("removes approach velocity while pushing out", func() {
			s := setup(0.45)
			box.SetV(mgl64.Vec3{0, 0, -2})
			s.ApplyPushOut(dt, container.Handles(), nil, 0, 1)
			Expect(box.V().Z()).To(BeNumerically("~", 0, 1e-9))
		})
	})

	Describe("islands", func() {
		var boxes []*particles.Rigid

		BeforeEach(func() {
			store = particles.NewStore()
			container = NewContainer(pointSettings())
			narrow = NewNarrowPhase(container, nil)
			floor = store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
			boxes = nil
			for i := 0; i < 6; i++ {
				b := store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), 1, mgl64.Vec3{float64(3 * i), 0, 0.45}, mgl64.QuatIdent())
				b.SetV(mgl64.Vec3{0, 0, -1})
				boxes = append(boxes, b)
				Expect(construct(narrow, b, floor)).To(Equal(1))
			}
		})

		It("does not join islands through static bodies", func() {
			islands := BuildIslands(container.Handles())
			Expect(islands).To(HaveLen(len(boxes)))
			for _, island := range islands {
				Expect(island).To(HaveLen(1))
			}
		})

		It("joins bodies that touch each other", func() {
			extra := store.NewDynamic(geometry.NewSphere(0.5), 1, mgl64.Vec3{0.95, 0, 0.45}, mgl64.QuatIdent())
			Expect(construct(narrow, extra, boxes[0])).To(Equal(1))
			Expect(construct(narrow, extra, boxes[1])).To(Equal(0))
			islands := BuildIslands(container.Handles())
			Expect(islands).To(HaveLen(len(boxes)))
			Expect(islands[0]).To(HaveLen(2))
		})

		It("solves islands in parallel with the serial result", func() {
			settings.Workers = 3
			s := NewSolver(container, narrow, settings)
			islands := BuildIslands(container.Handles())

			Expect(s.ApplyParallel(dt, islands, 0, 1)).To(BeFalse())
			Expect(s.ApplyPushOutParallel(dt, islands, nil, 0, 1)).To(BeTrue())
			for _, b := range boxes {
				Expect(b.V().Z()).To(BeNumerically("~", 0, 1e-9))
				Expect(b.P().Z()).To(BeNumerically("~", 0.5, 1e-9))
			}
		})

		It("refuses container mutation while solving", func() {
			s := NewSolver(container, narrow, settings)
			var recovered any
			s.container.lock()
			func() {
				defer func() { recovered = recover() }()
				container.Clear()
			}()
			s.container.unlock()
			Expect(recovered).To(MatchError(dynamo.ErrContainerLocked))
		})
	})
})

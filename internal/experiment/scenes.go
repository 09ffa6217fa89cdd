package experiment

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/material"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

var unitBox = mgl64.Vec3{0.5, 0.5, 0.5}

func ground(store *particles.Store) *particles.Rigid {
	return store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
}

func randomRotation(rng *rand.Rand) mgl64.Quat {
	axis := mgl64.Vec3{rng.Float64() - 0.5, rng.Float64() - 0.5, rng.Float64() - 0.5}
	return mgl64.QuatRotate(rng.Float64()*2*math.Pi, dynamo.SafeNormalize(axis, mgl64.Vec3{0, 0, 1}))
}

func buildRestingBox(store *particles.Store, rng *rand.Rand) {
	ground(store)
	store.NewDynamic(geometry.NewBox(unitBox), 1, mgl64.Vec3{0, 0, 0.5}, mgl64.QuatIdent())
}

func buildBounce(store *particles.Store, rng *rand.Rand) {
	bouncy := material.New(0.2, 0.9)
	ground(store).SetMaterial(bouncy)
	ball := store.NewDynamic(geometry.NewSphere(0.5), 1, mgl64.Vec3{0, 0, 3}, mgl64.QuatIdent())
	ball.SetMaterial(bouncy)
}

func buildStack(store *particles.Store, rng *rand.Rand) {
	ground(store)
	for i := 0; i < 5; i++ {
		jitter := mgl64.Vec3{(rng.Float64() - 0.5) * 0.02, (rng.Float64() - 0.5) * 0.02, 0}
		store.NewDynamic(geometry.NewBox(unitBox), 1, mgl64.Vec3{0, 0, 0.5 + float64(i)}.Add(jitter), mgl64.QuatIdent())
	}
}

func buildPile(store *particles.Store, rng *rand.Rand) {
	ground(store)
	shapes := []func() geometry.Shape{
		func() geometry.Shape { return geometry.NewSphere(0.3 + 0.2*rng.Float64()) },
		func() geometry.Shape { return geometry.NewBox(mgl64.Vec3{0.3, 0.4, 0.25}) },
		func() geometry.Shape { return geometry.NewCapsule(0.4, 0.2) },
		func() geometry.Shape { return geometry.NewPrism(6, 0.4, 0.25) },
		func() geometry.Shape {
			return geometry.NewLevelSetFromShape(geometry.NewBox(mgl64.Vec3{0.3, 0.3, 0.3}), 0.1, 2)
		},
	}
	for i := 0; i < 20; i++ {
		x := mgl64.Vec3{(rng.Float64() - 0.5) * 3, (rng.Float64() - 0.5) * 3, 1 + float64(i)*0.6}
		store.NewDynamic(shapes[i%len(shapes)](), 1, x, randomRotation(rng))
	}
}

func buildHeightField(store *particles.Store, rng *rand.Rand) {
	const n, cell = 41, 0.25
	terrain := geometry.NewHeightFieldFunc(n, n, cell, func(x, y float64) float64 {
		return 0.3 * math.Sin(x) * math.Cos(y)
	})
	half := 0.5 * float64(n-1) * cell
	store.NewStatic(terrain, mgl64.Vec3{-half, -half, 0}, mgl64.QuatIdent())
	for i := 0; i < 8; i++ {
		x := mgl64.Vec3{(rng.Float64() - 0.5) * 6, (rng.Float64() - 0.5) * 6, 2 + float64(i)*0.5}
		if i%2 == 0 {
			store.NewDynamic(geometry.NewSphere(0.3), 1, x, mgl64.QuatIdent())
		} else {
			store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.25, 0.25, 0.25}), 1, x, randomRotation(rng))
		}
	}
}

func buildSpheres(store *particles.Store, rng *rand.Rand) {
	store.NewStatic(geometry.NewGroundMesh(8, 12), mgl64.Vec3{}, mgl64.QuatIdent())
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			x := mgl64.Vec3{float64(i) - 1.5, float64(j) - 1.5, 0.5 + rng.Float64()}
			store.NewDynamic(geometry.NewSphere(0.4), 1, x, mgl64.QuatIdent())
		}
	}
}

func buildCapsules(store *particles.Store, rng *rand.Rand) {
	ground(store)
	for i := 0; i < 6; i++ {
		x := mgl64.Vec3{(rng.Float64() - 0.5) * 2, (rng.Float64() - 0.5) * 2, 1 + float64(i)*0.8}
		c := store.NewDynamic(geometry.NewCapsule(0.5, 0.2), 1, x, randomRotation(rng))
		c.SetMaterial(&material.Material{Friction: 0.6, StaticFriction: 0.8, AngularFriction: 0.1})
	}
}

// tuneBounce keeps every bounce resolved by a single point.
func tuneBounce(s *sim.Settings) {
	s.Collision.UseManifolds = false
}

func tuneStack(s *sim.Settings) {
	s.Solver.Iterations = 16
	s.Solver.PushOutIterations = 8
}

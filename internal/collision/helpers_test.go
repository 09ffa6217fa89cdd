package collision

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
)

func sphereGeometry(r float64) Geometry {
	s := geometry.NewSphere(r)
	return Geometry{
		Shapes: [2]geometry.Shape{s, s},
		Locals: [2]dynamo.Transform{dynamo.Identity(), dynamo.Identity()},
	}
}

func spheresInARow(store *particles.Store, n int) []*particles.Rigid {
	out := make([]*particles.Rigid, n)
	for i := range out {
		out[i] = store.NewDynamic(geometry.NewSphere(0.5), 1, mgl64.Vec3{float64(i), 0, 0}, mgl64.QuatIdent())
	}
	return out
}

// boxOnFloor returns a unit box resting on a static ground plane at z=0.
func boxOnFloor(store *particles.Store, z float64) (*particles.Rigid, *particles.Rigid) {
	box := store.NewDynamic(geometry.NewBox(mgl64.Vec3{0.5, 0.5, 0.5}), 1, mgl64.Vec3{0, 0, z}, mgl64.QuatIdent())
	floor := store.NewStatic(geometry.NewPlane(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1}), mgl64.Vec3{}, mgl64.QuatIdent())
	return box, floor
}

func pointSettings() Settings {
	s := DefaultSettings()
	s.UseManifolds = false
	s.CCD.Enabled = false
	return s
}

func construct(n *NarrowPhase, a, b *particles.Rigid) int {
	return n.ConstructConstraints(a, b, 0, 0, a.Transform(), b.Transform(), n.CullDistance())
}

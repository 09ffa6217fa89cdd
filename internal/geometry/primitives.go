package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func NewSphere(radius float64) *Sphere {
	return &Sphere{Radius: radius}
}

func (s *Sphere) Kind() Kind { return KindSphere }

func (s *Sphere) Bounds() AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

func (s *Sphere) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	d := p.Sub(s.Center)
	return d.Len() - s.Radius, dynamo.SafeNormalize(d, up)
}

func (s *Sphere) SamplePoints() []mgl64.Vec3 {
	r := s.Radius
	c := s.Center
	return []mgl64.Vec3{
		c.Add(mgl64.Vec3{r, 0, 0}), c.Add(mgl64.Vec3{-r, 0, 0}),
		c.Add(mgl64.Vec3{0, r, 0}), c.Add(mgl64.Vec3{0, -r, 0}),
		c.Add(mgl64.Vec3{0, 0, r}), c.Add(mgl64.Vec3{0, 0, -r}),
	}
}

type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewBox returns a box centred on the origin.
func NewBox(halfExtents mgl64.Vec3) *Box {
	return &Box{Min: halfExtents.Mul(-1), Max: halfExtents}
}

func (b *Box) Kind() Kind   { return KindBox }
func (b *Box) Bounds() AABB { return AABB{Min: b.Min, Max: b.Max} }

func (b *Box) HalfExtents() mgl64.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

func (b *Box) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	center := b.Min.Add(b.Max).Mul(0.5)
	half := b.HalfExtents()
	local := p.Sub(center)

	var q, outside mgl64.Vec3
	for i := 0; i < 3; i++ {
		q[i] = math.Abs(local[i]) - half[i]
		if q[i] > 0 {
			outside[i] = math.Copysign(q[i], local[i])
		}
	}

	if outsideLen := outside.Len(); outsideLen > 0 {
		return outsideLen, outside.Mul(1 / outsideLen)
	}

	axis := 0
	for i := 1; i < 3; i++ {
		if q[i] > q[axis] {
			axis = i
		}
	}
	var n mgl64.Vec3
	n[axis] = math.Copysign(1, local[axis])
	return q[axis], n
}

// SamplePoints returns the 8 corners followed by the 6 face centres.
func (b *Box) SamplePoints() []mgl64.Vec3 {
	corners := b.Bounds().Corners()
	pts := make([]mgl64.Vec3, 0, 14)
	pts = append(pts, corners[:]...)

	center := b.Min.Add(b.Max).Mul(0.5)
	for axis := 0; axis < 3; axis++ {
		lo, hi := center, center
		lo[axis] = b.Min[axis]
		hi[axis] = b.Max[axis]
		pts = append(pts, lo, hi)
	}
	return pts
}

// Capsule is a segment swept by a sphere.
type Capsule struct {
	A      mgl64.Vec3
	B      mgl64.Vec3
	Radius float64
}

// NewCapsule returns a Z-aligned capsule centred on the origin.
func NewCapsule(halfHeight, radius float64) *Capsule {
	return &Capsule{
		A:      mgl64.Vec3{0, 0, -halfHeight},
		B:      mgl64.Vec3{0, 0, halfHeight},
		Radius: radius,
	}
}

func (c *Capsule) Kind() Kind { return KindCapsule }

func (c *Capsule) Bounds() AABB {
	return EmptyAABB().Grow(c.A).Grow(c.B).Thicken(c.Radius)
}

func (c *Capsule) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	closest := ClosestPointOnSegment(p, c.A, c.B)
	d := p.Sub(closest)
	return d.Len() - c.Radius, dynamo.SafeNormalize(d, up)
}

// Spheres returns the centres of the spheres used to approximate the
// capsule as a contact source: both ends and the midpoint.
func (c *Capsule) Spheres() []mgl64.Vec3 {
	return []mgl64.Vec3{c.A, c.A.Add(c.B).Mul(0.5), c.B}
}

func (c *Capsule) SamplePoints() []mgl64.Vec3 {
	axis := dynamo.SafeNormalize(c.B.Sub(c.A), up)
	pts := []mgl64.Vec3{c.A.Sub(axis.Mul(c.Radius)), c.B.Add(axis.Mul(c.Radius))}
	side := dynamo.SafeNormalize(axis.Cross(mgl64.Vec3{1, 0, 0}), mgl64.Vec3{0, 1, 0})
	if side.LenSqr() < 0.5 {
		side = dynamo.SafeNormalize(axis.Cross(mgl64.Vec3{0, 1, 0}), mgl64.Vec3{1, 0, 0})
	}
	other := axis.Cross(side)
	for _, center := range c.Spheres() {
		pts = append(pts,
			center.Add(side.Mul(c.Radius)), center.Sub(side.Mul(c.Radius)),
			center.Add(other.Mul(c.Radius)), center.Sub(other.Mul(c.Radius)),
		)
	}
	return pts
}

// Plane is the half-space below a surface; points on the Normal side are
// outside.
type Plane struct {
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

func NewPlane(point, normal mgl64.Vec3) *Plane {
	return &Plane{Point: point, Normal: dynamo.SafeNormalize(normal, up)}
}

func (p *Plane) Kind() Kind { return KindPlane }

const planeExtent = 1e6

func (p *Plane) Bounds() AABB {
	e := mgl64.Vec3{planeExtent, planeExtent, planeExtent}
	return AABB{Min: p.Point.Sub(e), Max: p.Point.Add(e)}
}

func (p *Plane) PhiWithNormal(x mgl64.Vec3) (float64, mgl64.Vec3) {
	return x.Sub(p.Point).Dot(p.Normal), p.Normal
}

func (p *Plane) SamplePoints() []mgl64.Vec3 { return nil }

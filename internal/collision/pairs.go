package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
)

// Points of B tested against A carry this offset in their feature id.
const reverseFeature = 1 << 20

// deepestTolerance groups points whose depth differs by less than this.
const deepestTolerance = 1e-4

// deepest picks the minimum-phi point. Points equally deep within
// deepestTolerance are averaged, so a box lying flat reports the centre of
// its face rather than an arbitrary corner.
func deepest(pts []ContactPoint) (ContactPoint, bool) {
	best, ok := deepestIndex(pts)
	if !ok {
		return ContactPoint{}, false
	}

	minPhi := pts[best].Phi
	var loc, normal mgl64.Vec3
	count := 0
	for _, p := range pts {
		if p.Phi-minPhi < deepestTolerance {
			loc = loc.Add(p.Location)
			normal = normal.Add(p.Normal)
			count++
		}
	}

	out := pts[best]
	if count > 1 {
		out.Location = loc.Mul(1 / float64(count))
		out.Normal = dynamo.SafeNormalize(normal, pts[best].Normal)
	}
	return out, true
}

func validPoint(p ContactPoint) bool {
	return dynamo.ValidFloat(p.Phi) && dynamo.ValidVec(p.Location) && dynamo.ValidVec(p.Normal) &&
		p.Normal.LenSqr() > 0.5
}

// sphereSource tests spheres of the given radius centred at local points of
// A against B.
func sphereSource(centers []mgl64.Vec3, radius float64, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	for i, c := range centers {
		world := ta.TransformPosition(c)
		phi, n := b.PhiWithNormal(tb.InverseTransformPosition(world))
		phi -= radius
		if !(phi < cull) {
			continue
		}
		normal := tb.TransformVector(n)
		out = append(out, ContactPoint{
			Location: world.Sub(normal.Mul(radius)),
			Normal:   normal,
			Phi:      phi,
			Feature:  i,
		})
	}
	return out
}

func spherePoints(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	s := a.(*geometry.Sphere)
	return sphereSource([]mgl64.Vec3{s.Center}, s.Radius, b, ta, tb, cull, out)
}

func capsulePoints(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	c := a.(*geometry.Capsule)
	return sphereSource(c.Spheres(), c.Radius, b, ta, tb, cull, out)
}

// sampleSource tests the sample points of a against the distance field of
// b. With reverse set, a and b have already been exchanged by the caller
// and the result is expressed from the original A's point of view.
func sampleSource(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, reverse bool, out []ContactPoint) []ContactPoint {
	for i, s := range a.SamplePoints() {
		world := ta.TransformPosition(s)
		phi, n := b.PhiWithNormal(tb.InverseTransformPosition(world))
		if !(phi < cull) {
			continue
		}
		normal := tb.TransformVector(n)
		p := ContactPoint{Location: world, Normal: normal, Phi: phi, Feature: i}
		if reverse {
			p.Normal = normal.Mul(-1)
			p.Location = world.Sub(normal.Mul(phi))
			p.Feature += reverseFeature
		}
		out = append(out, p)
	}
	return out
}

func samplePoints(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	return sampleSource(a, b, ta, tb, cull, false, out)
}

func mutualPoints(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	out = sampleSource(a, b, ta, tb, cull, false, out)
	return sampleSource(b, a, tb, ta, cull, true, out)
}

// boxBoxPoints samples both boxes against each other. When two boxes
// overlap with no sample inside the other, the inscribed sphere of A is
// used instead.
func boxBoxPoints(a, b geometry.Shape, ta, tb dynamo.Transform, cull float64, out []ContactPoint) []ContactPoint {
	start := len(out)
	out = mutualPoints(a, b, ta, tb, cull, out)
	if len(out) > start {
		return out
	}

	box := a.(*geometry.Box)
	center := box.Min.Add(box.Max).Mul(0.5)
	centerPhi, _ := b.PhiWithNormal(tb.InverseTransformPosition(ta.TransformPosition(center)))
	if centerPhi >= 0 {
		return out
	}
	radius := dynamo.MinComponent(box.HalfExtents())
	return sphereSource([]mgl64.Vec3{center}, radius, b, ta, tb, math.Max(cull, 0), out)
}

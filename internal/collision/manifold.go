package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

// coincidentDistance merges manifold points closer than this.
const coincidentDistance = 1e-5

// cleanPoints drops non-finite points and collapses coincident ones,
// keeping the deeper of each coincident pair. It returns the cleaned
// slice and the number of points dropped.
func cleanPoints(pts []ContactPoint) ([]ContactPoint, int) {
	out := pts[:0]
	dropped := 0
	for _, p := range pts {
		if !validPoint(p) {
			dropped++
			continue
		}
		merged := false
		for i := range out {
			if out[i].Location.Sub(p.Location).LenSqr() < coincidentDistance*coincidentDistance {
				if p.Phi < out[i].Phi {
					out[i] = p
				}
				merged = true
				dropped++
				break
			}
		}
		if !merged {
			out = append(out, p)
		}
	}
	return out, dropped
}

func tangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	t1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal[0]) > 0.9 {
		t1 = mgl64.Vec3{0, 1, 0}
	}
	t1 = t1.Sub(normal.Mul(t1.Dot(normal))).Normalize()
	t2 := normal.Cross(t1).Normalize()
	return t1, t2
}

// reducePoints keeps at most MaxManifoldPoints: the deepest point, the
// extremes along two tangent directions, then whichever remaining points
// lie farthest from those already chosen. The result preserves input
// order so feature ids map to stable slots.
func reducePoints(pts []ContactPoint) []ContactPoint {
	if len(pts) <= MaxManifoldPoints {
		return pts
	}

	best, _ := deepestIndex(pts)
	t1, t2 := tangentBasis(pts[best].Normal)

	chosen := map[int]bool{best: true}
	for _, axis := range []mgl64.Vec3{t1, t2} {
		lo, hi := 0, 0
		for i, p := range pts {
			d := p.Location.Dot(axis)
			if d < pts[lo].Location.Dot(axis) {
				lo = i
			}
			if d > pts[hi].Location.Dot(axis) {
				hi = i
			}
		}
		for _, i := range []int{lo, hi} {
			if len(chosen) < MaxManifoldPoints {
				chosen[i] = true
			}
		}
	}

	for len(chosen) < MaxManifoldPoints {
		far, farDist := -1, -1.0
		for i, p := range pts {
			if chosen[i] {
				continue
			}
			nearest := math.Inf(1)
			for j := range chosen {
				nearest = math.Min(nearest, p.Location.Sub(pts[j].Location).LenSqr())
			}
			if nearest > farDist {
				far, farDist = i, nearest
			}
		}
		if far < 0 {
			break
		}
		chosen[far] = true
	}

	out := make([]ContactPoint, 0, MaxManifoldPoints)
	for i, p := range pts {
		if chosen[i] {
			out = append(out, p)
		}
	}
	return out
}

func deepestIndex(pts []ContactPoint) (int, bool) {
	if len(pts) == 0 {
		return -1, false
	}
	best := 0
	for i := range pts {
		if pts[i].Phi < pts[best].Phi {
			best = i
		}
	}
	return best, true
}

// anchor stores a point in both shape frames.
func anchor(p ContactPoint, ta, tb dynamo.Transform) ManifoldPoint {
	onB := p.Location.Sub(p.Normal.Mul(p.Phi))
	return ManifoldPoint{
		ContactPoint: p,
		LocalA:       ta.InverseTransformPosition(p.Location),
		LocalB:       tb.InverseTransformPosition(onB),
		LocalNormalB: tb.InverseTransformVector(p.Normal),
	}
}

// refreshPoint recomputes a point's world location, normal and separation
// from its anchors.
func refreshPoint(mp *ManifoldPoint, ta, tb dynamo.Transform) {
	wa := ta.TransformPosition(mp.LocalA)
	wb := tb.TransformPosition(mp.LocalB)
	n := tb.TransformVector(mp.LocalNormalB)
	mp.Location = wa
	mp.Normal = n
	mp.Phi = wa.Sub(wb).Dot(n)
}

// setPoints replaces the manifold with pts. A new point inherits the
// accumulated impulse of an old point with the same feature id that is
// within tol of it.
func (c *Contact) setPoints(pts []ContactPoint, ta, tb dynamo.Transform, tol float64) {
	prev := c.Points
	prevN := c.NumPoints

	c.NumPoints = 0
	for _, p := range pts {
		mp := anchor(p, ta, tb)
		for i := 0; i < prevN; i++ {
			old := prev[i]
			if old.Feature == p.Feature && old.Location.Sub(p.Location).Len() <= tol {
				mp.AccumulatedImpulse = old.AccumulatedImpulse
				break
			}
		}
		c.Points[c.NumPoints] = mp
		c.NumPoints++
	}
	c.summarize()
}

// refreshPoints moves every manifold point with its shapes.
func (c *Contact) refreshPoints(ta, tb dynamo.Transform) {
	for i := 0; i < c.NumPoints; i++ {
		refreshPoint(&c.Points[i], ta, tb)
	}
	c.summarize()
}

// withinManifoldTolerance reports whether the relative pose of the two
// shapes moved less than the tolerances since the manifold was built.
func withinManifoldTolerance(ref, now dynamo.Transform, posTol, rotTol float64) bool {
	if now.Translation.Sub(ref.Translation).Len() > posTol {
		return false
	}
	delta := now.Rotation.Mul(ref.Rotation.Conjugate())
	w := math.Min(1, math.Abs(delta.W))
	return 2*math.Acos(w) <= rotTol
}

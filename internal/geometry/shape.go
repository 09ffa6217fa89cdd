// Package geometry implements the collision shapes used by the narrow phase.
//
// Every shape answers two questions in its own local frame: the signed
// distance (and outward normal) of a point, and a set of surface sample
// points. Contact generation is built from those two queries.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

type Kind uint8

const (
	KindSphere Kind = iota
	KindBox
	KindCapsule
	KindPlane
	KindConvex
	KindTriangleMesh
	KindHeightField
	KindLevelSet

	NumKinds
)

var kindNames = [NumKinds]string{
	"sphere", "box", "capsule", "plane", "convex", "trimesh", "heightfield", "levelset",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return "unknown"
}

// Kinds lists every shape kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, NumKinds)
	for k := Kind(0); k < NumKinds; k++ {
		out = append(out, k)
	}
	return out
}

type Shape interface {
	Kind() Kind
	// Bounds is the local-space bounding box.
	Bounds() AABB
	// PhiWithNormal returns the signed distance of local point p (negative
	// inside) and the outward surface normal nearest p.
	PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3)
	// SamplePoints returns local-space surface points used as contact
	// candidates. The index of a point is its feature id.
	SamplePoints() []mgl64.Vec3
}

// Bounded reports whether s has finite extent.
func Bounded(s Shape) bool {
	return s.Kind() != KindPlane
}

var up = mgl64.Vec3{0, 0, 1}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func NewAABB(min, max mgl64.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b AABB) Extents() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

func (b AABB) MinExtent() float64 {
	return dynamo.MinComponent(b.Extents())
}

func (b AABB) Grow(p mgl64.Vec3) AABB {
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

func (b AABB) Union(o AABB) AABB {
	return b.Grow(o.Min).Grow(o.Max)
}

func (b AABB) Thicken(d float64) AABB {
	t := mgl64.Vec3{d, d, d}
	return AABB{Min: b.Min.Sub(t), Max: b.Max.Add(t)}
}

func (b AABB) Overlaps(o AABB) bool {
	for i := 0; i < 3; i++ {
		if b.Min[i] > o.Max[i] || o.Min[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b AABB) Contains(p mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b AABB) Corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		for axis := 0; axis < 3; axis++ {
			if i&(1<<axis) != 0 {
				out[i][axis] = b.Max[axis]
			} else {
				out[i][axis] = b.Min[axis]
			}
		}
	}
	return out
}

// Transformed returns the world box enclosing b under t.
func (b AABB) Transformed(t dynamo.Transform) AABB {
	out := EmptyAABB()
	for _, c := range b.Corners() {
		out = out.Grow(t.TransformPosition(c))
	}
	return out
}

// WorldBounds is the world box of s placed at t.
func WorldBounds(s Shape, t dynamo.Transform) AABB {
	return s.Bounds().Transformed(t)
}

// ClosestPointOnSegment returns the point of [a, b] nearest p.
func ClosestPointOnSegment(p, a, b mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	denom := ab.LenSqr()
	if denom < dynamo.SmallNumber {
		return a
	}
	t := p.Sub(a).Dot(ab) / denom
	t = math.Max(0, math.Min(1, t))
	return a.Add(ab.Mul(t))
}

// ClosestPointOnTriangle returns the point of triangle abc nearest p.
func ClosestPointOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		return a.Add(ab.Mul(d1 / (d1 - d3)))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		return a.Add(ac.Mul(d2 / (d2 - d6)))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

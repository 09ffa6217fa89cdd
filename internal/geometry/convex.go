package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

// Face is an outward plane n.x = d of a convex hull.
type Face struct {
	Normal mgl64.Vec3
	D      float64
}

// Convex is a convex polytope given by its vertices and face planes.
// Distances outside the hull are the largest face distance, which
// underestimates near edges and corners.
type Convex struct {
	Vertices []mgl64.Vec3
	Faces    []Face
	bounds   AABB
}

func NewConvex(vertices []mgl64.Vec3, faces []Face) *Convex {
	b := EmptyAABB()
	for _, v := range vertices {
		b = b.Grow(v)
	}
	return &Convex{Vertices: vertices, Faces: faces, bounds: b}
}

// NewPrism builds a Z-aligned prism with a regular polygon cross-section.
func NewPrism(sides int, radius, halfHeight float64) *Convex {
	if sides < 3 {
		sides = 3
	}
	verts := make([]mgl64.Vec3, 0, 2*sides)
	for _, z := range []float64{-halfHeight, halfHeight} {
		for i := 0; i < sides; i++ {
			a := 2 * math.Pi * float64(i) / float64(sides)
			verts = append(verts, mgl64.Vec3{radius * math.Cos(a), radius * math.Sin(a), z})
		}
	}

	faces := []Face{
		{Normal: mgl64.Vec3{0, 0, 1}, D: halfHeight},
		{Normal: mgl64.Vec3{0, 0, -1}, D: halfHeight},
	}
	apothem := radius * math.Cos(math.Pi/float64(sides))
	for i := 0; i < sides; i++ {
		a := 2*math.Pi*float64(i)/float64(sides) + math.Pi/float64(sides)
		faces = append(faces, Face{Normal: mgl64.Vec3{math.Cos(a), math.Sin(a), 0}, D: apothem})
	}
	return NewConvex(verts, faces)
}

func (c *Convex) Kind() Kind   { return KindConvex }
func (c *Convex) Bounds() AABB { return c.bounds }

func (c *Convex) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	best := math.Inf(-1)
	normal := up
	for _, f := range c.Faces {
		d := f.Normal.Dot(p) - f.D
		if d > best {
			best = d
			normal = f.Normal
		}
	}
	return best, dynamo.SafeNormalize(normal, up)
}

func (c *Convex) SamplePoints() []mgl64.Vec3 { return c.Vertices }

// TriangleMesh is an indexed triangle soup. The sign of the distance comes
// from the face normal of the nearest triangle.
type TriangleMesh struct {
	Vertices  []mgl64.Vec3
	Triangles [][3]int
	bounds    AABB
}

func NewTriangleMesh(vertices []mgl64.Vec3, triangles [][3]int) *TriangleMesh {
	b := EmptyAABB()
	for _, v := range vertices {
		b = b.Grow(v)
	}
	return &TriangleMesh{Vertices: vertices, Triangles: triangles, bounds: b}
}

// NewGroundMesh builds a flat square mesh of n x n quads at z = 0.
func NewGroundMesh(n int, size float64) *TriangleMesh {
	if n < 1 {
		n = 1
	}
	step := size / float64(n)
	half := size / 2
	verts := make([]mgl64.Vec3, 0, (n+1)*(n+1))
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			verts = append(verts, mgl64.Vec3{float64(i)*step - half, float64(j)*step - half, 0})
		}
	}
	tris := make([][3]int, 0, 2*n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			v0 := j*(n+1) + i
			v1 := v0 + 1
			v2 := v0 + n + 1
			v3 := v2 + 1
			tris = append(tris, [3]int{v0, v1, v3}, [3]int{v0, v3, v2})
		}
	}
	return NewTriangleMesh(verts, tris)
}

func (m *TriangleMesh) Kind() Kind   { return KindTriangleMesh }
func (m *TriangleMesh) Bounds() AABB { return m.bounds }

func (m *TriangleMesh) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	bestDist := math.Inf(1)
	var bestPoint, bestFace mgl64.Vec3
	for _, tri := range m.Triangles {
		a, b, c := m.Vertices[tri[0]], m.Vertices[tri[1]], m.Vertices[tri[2]]
		q := ClosestPointOnTriangle(p, a, b, c)
		d := p.Sub(q).LenSqr()
		if d < bestDist {
			bestDist = d
			bestPoint = q
			bestFace = b.Sub(a).Cross(c.Sub(a))
		}
	}
	if math.IsInf(bestDist, 1) {
		return math.Inf(1), up
	}

	face := dynamo.SafeNormalize(bestFace, up)
	delta := p.Sub(bestPoint)
	dist := math.Sqrt(bestDist)
	sign := 1.0
	if delta.Dot(face) < 0 {
		sign = -1
	}
	if dist < dynamo.SmallNumber {
		return 0, face
	}
	return sign * dist, delta.Mul(sign / dist)
}

func (m *TriangleMesh) SamplePoints() []mgl64.Vec3 { return m.Vertices }

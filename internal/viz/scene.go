package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
	"github.com/san-kum/contactsim/internal/geometry"
	"github.com/san-kum/contactsim/internal/particles"
	"github.com/san-kum/contactsim/internal/sim"
)

// View is a side projection of the world onto a canvas. The vertical axis
// is always world Z; Axis picks world X (0) or Y (1) as horizontal.
type View struct {
	Axis   int
	Center mgl64.Vec3
	// Scale is pixels per world unit.
	Scale float64
}

// FitView frames every bounded body of w on c.
func FitView(w *sim.World, c *Canvas, axis int) View {
	lo := mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := lo.Mul(-1)
	found := false
	for _, b := range w.Particles().All() {
		for _, s := range b.Shapes() {
			if !geometry.Bounded(s.Shape) {
				continue
			}
			box := s.Shape.Bounds()
			tf := b.Transform().Mul(s.Local)
			for _, corner := range corners(box) {
				p := tf.TransformPosition(corner)
				for i := 0; i < 3; i++ {
					lo[i] = math.Min(lo[i], p[i])
					hi[i] = math.Max(hi[i], p[i])
				}
			}
			found = true
		}
	}
	if !found {
		return View{Axis: axis, Scale: 10}
	}
	// Keep the ground in frame.
	lo[2] = math.Min(lo[2], 0)

	spanH := math.Max(hi[axis]-lo[axis], 1)
	spanV := math.Max(hi[2]-lo[2], 1)
	scale := 0.9 * math.Min(float64(c.PixelWidth())/spanH, float64(c.PixelHeight())/spanV)
	return View{Axis: axis, Center: lo.Add(hi).Mul(0.5), Scale: scale}
}

// Project maps a world point to canvas pixels.
func (v View) Project(c *Canvas, p mgl64.Vec3) Point {
	return Point{
		X: float64(c.PixelWidth())/2 + (p[v.Axis]-v.Center[v.Axis])*v.Scale,
		Y: float64(c.PixelHeight())/2 - (p[2]-v.Center[2])*v.Scale,
	}
}

// DrawWorld clears c and draws the outline of every shape in w, with a
// small cross at each active contact.
func DrawWorld(c *Canvas, w *sim.World, v View) {
	c.Clear()
	for _, b := range w.Particles().All() {
		drawBody(c, b, v)
	}
	for i := 0; i < w.NumConstraints(); i++ {
		con := w.GetConstraint(i)
		if con.Disabled || con.NumPoints == 0 {
			continue
		}
		for _, pt := range con.ActivePoints() {
			p := v.Project(c, pt.Location)
			x, y := round(p.X), round(p.Y)
			c.DrawLine(x-1, y-1, x+1, y+1)
			c.DrawLine(x-1, y+1, x+1, y-1)
		}
	}
}

func drawBody(c *Canvas, b *particles.Rigid, v View) {
	for _, inst := range b.Shapes() {
		tf := b.Transform().Mul(inst.Local)
		switch s := inst.Shape.(type) {
		case *geometry.Sphere:
			p := v.Project(c, tf.TransformPosition(mgl64.Vec3{}))
			c.DrawCircle(round(p.X), round(p.Y), s.Radius*v.Scale)
		case *geometry.Capsule:
			var pts []Point
			for _, end := range []mgl64.Vec3{s.A, s.B} {
				centre := tf.TransformPosition(end)
				pts = append(pts, ringPoints(c, v, centre, s.Radius)...)
			}
			c.DrawHull(pts)
		case *geometry.Plane:
			drawPlane(c, v, tf, s)
		case *geometry.HeightField:
			drawHeightField(c, v, tf, s)
		case *geometry.Convex:
			c.DrawHull(projectAll(c, v, tf, s.Vertices))
		case *geometry.TriangleMesh:
			c.DrawHull(projectAll(c, v, tf, s.Vertices))
		default:
			c.DrawHull(projectAll(c, v, tf, corners(s.Bounds())))
		}
	}
}

func projectAll(c *Canvas, v View, tf dynamo.Transform, local []mgl64.Vec3) []Point {
	out := make([]Point, len(local))
	for i, p := range local {
		out[i] = v.Project(c, tf.TransformPosition(p))
	}
	return out
}

func ringPoints(c *Canvas, v View, centre mgl64.Vec3, r float64) []Point {
	const n = 16
	p := v.Project(c, centre)
	out := make([]Point, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / n
		out[i] = Point{X: p.X + r*v.Scale*math.Cos(a), Y: p.Y + r*v.Scale*math.Sin(a)}
	}
	return out
}

// drawPlane draws the trace of the plane across the canvas. Planes seen
// edge-on are skipped.
func drawPlane(c *Canvas, v View, tf dynamo.Transform, pl *geometry.Plane) {
	n := tf.TransformVector(pl.Normal)
	if math.Abs(n[2]) < 1e-6 {
		return
	}
	origin := tf.TransformPosition(pl.Point)
	heightAt := func(h float64) float64 {
		// n.(x - origin) = 0 restricted to the view plane.
		return origin[2] - n[v.Axis]*(h-origin[v.Axis])/n[2]
	}
	w := float64(c.PixelWidth())
	h0 := v.Center[v.Axis] - w/2/v.Scale
	h1 := v.Center[v.Axis] + w/2/v.Scale
	var a, b mgl64.Vec3
	a[v.Axis], a[2] = h0, heightAt(h0)
	b[v.Axis], b[2] = h1, heightAt(h1)
	c.DrawPolyline([]Point{v.Project(c, a), v.Project(c, b)})
}

// drawHeightField draws the profile of the middle row (or column) of the
// grid that runs along the view axis.
func drawHeightField(c *Canvas, v View, tf dynamo.Transform, hf *geometry.HeightField) {
	var pts []Point
	if v.Axis == 0 {
		r := hf.Rows / 2
		for col := 0; col < hf.Cols; col++ {
			p := mgl64.Vec3{float64(col) * hf.CellSize, float64(r) * hf.CellSize, hf.Heights[r*hf.Cols+col]}
			pts = append(pts, v.Project(c, tf.TransformPosition(p)))
		}
	} else {
		col := hf.Cols / 2
		for r := 0; r < hf.Rows; r++ {
			p := mgl64.Vec3{float64(col) * hf.CellSize, float64(r) * hf.CellSize, hf.Heights[r*hf.Cols+col]}
			pts = append(pts, v.Project(c, tf.TransformPosition(p)))
		}
	}
	c.DrawPolyline(pts)
}

func corners(b geometry.AABB) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		p := b.Min
		if i&1 != 0 {
			p[0] = b.Max[0]
		}
		if i&2 != 0 {
			p[1] = b.Max[1]
		}
		if i&4 != 0 {
			p[2] = b.Max[2]
		}
		out = append(out, p)
	}
	return out
}

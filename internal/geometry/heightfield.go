package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

// HeightField is a regular grid of heights over the XY plane, starting at
// the local origin. Heights are row-major: Heights[row*Cols+col].
type HeightField struct {
	Heights  []float64
	Rows     int
	Cols     int
	CellSize float64
	bounds   AABB
}

func NewHeightField(rows, cols int, cellSize float64, heights []float64) *HeightField {
	h := &HeightField{Heights: heights, Rows: rows, Cols: cols, CellSize: cellSize}
	b := EmptyAABB()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			b = b.Grow(h.vertex(r, c))
		}
	}
	h.bounds = b
	return h
}

// NewHeightFieldFunc samples f(x, y) on the grid.
func NewHeightFieldFunc(rows, cols int, cellSize float64, f func(x, y float64) float64) *HeightField {
	heights := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			heights[r*cols+c] = f(float64(c)*cellSize, float64(r)*cellSize)
		}
	}
	return NewHeightField(rows, cols, cellSize, heights)
}

func (h *HeightField) Kind() Kind   { return KindHeightField }
func (h *HeightField) Bounds() AABB { return h.bounds }

func (h *HeightField) vertex(r, c int) mgl64.Vec3 {
	return mgl64.Vec3{float64(c) * h.CellSize, float64(r) * h.CellSize, h.Heights[r*h.Cols+c]}
}

func (h *HeightField) at(r, c int) float64 {
	r = clampInt(r, 0, h.Rows-1)
	c = clampInt(c, 0, h.Cols-1)
	return h.Heights[r*h.Cols+c]
}

// HeightAt returns the bilinear height and its gradient at (x, y).
func (h *HeightField) HeightAt(x, y float64) (float64, float64, float64) {
	fx := clampFloat(x/h.CellSize, 0, float64(h.Cols-1))
	fy := clampFloat(y/h.CellSize, 0, float64(h.Rows-1))
	c := int(math.Min(math.Floor(fx), float64(h.Cols-2)))
	r := int(math.Min(math.Floor(fy), float64(h.Rows-2)))
	if c < 0 {
		c = 0
	}
	if r < 0 {
		r = 0
	}
	tx := fx - float64(c)
	ty := fy - float64(r)

	h00 := h.at(r, c)
	h10 := h.at(r, c+1)
	h01 := h.at(r+1, c)
	h11 := h.at(r+1, c+1)

	height := h00*(1-tx)*(1-ty) + h10*tx*(1-ty) + h01*(1-tx)*ty + h11*tx*ty
	dx := ((h10-h00)*(1-ty) + (h11-h01)*ty) / h.CellSize
	dy := ((h01-h00)*(1-tx) + (h11-h10)*tx) / h.CellSize
	return height, dx, dy
}

func (h *HeightField) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	if h.Rows < 2 || h.Cols < 2 {
		return math.Inf(1), up
	}
	height, dx, dy := h.HeightAt(p[0], p[1])
	n := dynamo.SafeNormalize(mgl64.Vec3{-dx, -dy, 1}, up)
	return (p[2] - height) * n[2], n
}

func (h *HeightField) SamplePoints() []mgl64.Vec3 {
	pts := make([]mgl64.Vec3, 0, h.Rows*h.Cols)
	for r := 0; r < h.Rows; r++ {
		for c := 0; c < h.Cols; c++ {
			pts = append(pts, h.vertex(r, c))
		}
	}
	return pts
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

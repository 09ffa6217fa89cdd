package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/contactsim/internal/dynamo"
)

// LevelSet stores signed distances on a regular grid and interpolates them
// trilinearly. Points outside the grid are clamped to it and the clamp
// distance is added.
type LevelSet struct {
	Origin   mgl64.Vec3
	CellSize float64
	Dims     [3]int
	Phi      []float64
	samples  []mgl64.Vec3
}

// NewLevelSetFromShape rasterizes the distance field of src with padding
// cells around its bounds.
func NewLevelSetFromShape(src Shape, cellSize float64, padding int) *LevelSet {
	b := src.Bounds().Thicken(float64(padding) * cellSize)
	ext := b.Extents()
	ls := &LevelSet{Origin: b.Min, CellSize: cellSize}
	for i := 0; i < 3; i++ {
		ls.Dims[i] = int(math.Ceil(ext[i]/cellSize)) + 1
		if ls.Dims[i] < 2 {
			ls.Dims[i] = 2
		}
	}

	ls.Phi = make([]float64, ls.Dims[0]*ls.Dims[1]*ls.Dims[2])
	for k := 0; k < ls.Dims[2]; k++ {
		for j := 0; j < ls.Dims[1]; j++ {
			for i := 0; i < ls.Dims[0]; i++ {
				p := ls.node(i, j, k)
				phi, _ := src.PhiWithNormal(p)
				ls.Phi[ls.index(i, j, k)] = phi
				if math.Abs(phi) <= 0.5*cellSize {
					ls.samples = append(ls.samples, p)
				}
			}
		}
	}
	return ls
}

func (l *LevelSet) Kind() Kind { return KindLevelSet }

func (l *LevelSet) Bounds() AABB {
	hi := l.node(l.Dims[0]-1, l.Dims[1]-1, l.Dims[2]-1)
	return AABB{Min: l.Origin, Max: hi}
}

func (l *LevelSet) node(i, j, k int) mgl64.Vec3 {
	return l.Origin.Add(mgl64.Vec3{float64(i), float64(j), float64(k)}.Mul(l.CellSize))
}

func (l *LevelSet) index(i, j, k int) int {
	return (k*l.Dims[1]+j)*l.Dims[0] + i
}

func (l *LevelSet) value(i, j, k int) float64 {
	i = clampInt(i, 0, l.Dims[0]-1)
	j = clampInt(j, 0, l.Dims[1]-1)
	k = clampInt(k, 0, l.Dims[2]-1)
	return l.Phi[l.index(i, j, k)]
}

func (l *LevelSet) interpolate(p mgl64.Vec3) float64 {
	g := p.Sub(l.Origin).Mul(1 / l.CellSize)
	var cell [3]int
	var t [3]float64
	for a := 0; a < 3; a++ {
		f := clampFloat(g[a], 0, float64(l.Dims[a]-1))
		cell[a] = clampInt(int(math.Floor(f)), 0, l.Dims[a]-2)
		t[a] = f - float64(cell[a])
	}

	i, j, k := cell[0], cell[1], cell[2]
	lerp := func(a, b, s float64) float64 { return a + (b-a)*s }
	c00 := lerp(l.value(i, j, k), l.value(i+1, j, k), t[0])
	c10 := lerp(l.value(i, j+1, k), l.value(i+1, j+1, k), t[0])
	c01 := lerp(l.value(i, j, k+1), l.value(i+1, j, k+1), t[0])
	c11 := lerp(l.value(i, j+1, k+1), l.value(i+1, j+1, k+1), t[0])
	return lerp(lerp(c00, c10, t[1]), lerp(c01, c11, t[1]), t[2])
}

func (l *LevelSet) PhiWithNormal(p mgl64.Vec3) (float64, mgl64.Vec3) {
	b := l.Bounds()
	clamped := p
	for a := 0; a < 3; a++ {
		clamped[a] = clampFloat(p[a], b.Min[a], b.Max[a])
	}
	outside := p.Sub(clamped)
	phi := l.interpolate(clamped)

	h := 0.5 * l.CellSize
	var grad mgl64.Vec3
	for a := 0; a < 3; a++ {
		var d mgl64.Vec3
		d[a] = h
		grad[a] = l.interpolate(clamped.Add(d)) - l.interpolate(clamped.Sub(d))
	}
	n := dynamo.SafeNormalize(grad, up)

	if ol := outside.Len(); ol > 0 {
		return phi + ol, dynamo.SafeNormalize(outside, n)
	}
	return phi, n
}

func (l *LevelSet) SamplePoints() []mgl64.Vec3 { return l.samples }

package dynamo

import (
	"math"
	"sync/atomic"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestTransformRoundTrip(t *testing.T) {
	tr := NewTransform(mgl64.Vec3{1, 2, 3}, mgl64.QuatRotate(math.Pi/3, mgl64.Vec3{0, 0, 1}))
	p := mgl64.Vec3{0.5, -1, 2}

	back := tr.InverseTransformPosition(tr.TransformPosition(p))
	if !back.ApproxEqualThreshold(p, 1e-9) {
		t.Errorf("expected %v, got %v", p, back)
	}

	composed := tr.Inverse().Mul(tr)
	if !composed.Translation.ApproxEqualThreshold(mgl64.Vec3{}, 1e-9) {
		t.Errorf("expected zero translation, got %v", composed.Translation)
	}
}

func TestCrossMatrix(t *testing.T) {
	a := mgl64.Vec3{1, -2, 0.5}
	b := mgl64.Vec3{3, 1, -1}

	got := CrossMatrix(a).Mul3x1(b)
	want := a.Cross(b)
	if !got.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestQuatFromVector(t *testing.T) {
	tests := []struct {
		name string
		v    mgl64.Vec3
		in   mgl64.Vec3
		want mgl64.Vec3
	}{
		{"zero", mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}},
		{"quarter turn z", mgl64.Vec3{0, 0, math.Pi / 2}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatFromVector(tt.v).Rotate(tt.in)
			if !got.ApproxEqualThreshold(tt.want, 1e-9) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAngularVelocityInvertsIntegration(t *testing.T) {
	q0 := mgl64.QuatIdent()
	w := mgl64.Vec3{0, 0, 2}
	dt := 0.001

	q1 := IntegrateRotation(q0, w, dt)
	got := AngularVelocity(q0, q1, dt)
	if math.Abs(got[2]-w[2]) > 1e-3 {
		t.Errorf("expected wz %f, got %f", w[2], got[2])
	}
}

func TestParallelForCoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 7, 100, 1001} {
		var sum atomic.Int64
		ParallelForWorkers(n, 8, 4, func(start, end int) {
			for i := start; i < end; i++ {
				sum.Add(int64(i))
			}
		})

		want := int64(n * (n - 1) / 2)
		if sum.Load() != want {
			t.Errorf("n=%d: expected sum %d, got %d", n, want, sum.Load())
		}
	}
}

func TestValidVec(t *testing.T) {
	if !ValidVec(mgl64.Vec3{1, 2, 3}) {
		t.Error("expected finite vector to be valid")
	}
	if ValidVec(mgl64.Vec3{math.NaN(), 0, 0}) {
		t.Error("expected NaN vector to be invalid")
	}
	if ValidVec(mgl64.Vec3{0, math.Inf(1), 0}) {
		t.Error("expected Inf vector to be invalid")
	}
}

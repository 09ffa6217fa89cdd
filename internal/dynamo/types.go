package dynamo

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SmallNumber is the length below which vectors are treated as zero.
const SmallNumber = 1e-8

// Transform is a rigid transform: rotate, then translate.
type Transform struct {
	Translation mgl64.Vec3
	Rotation    mgl64.Quat
}

func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

func NewTransform(p mgl64.Vec3, q mgl64.Quat) Transform {
	return Transform{Translation: p, Rotation: q}
}

func (t Transform) TransformPosition(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(p).Add(t.Translation)
}

func (t Transform) TransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(v)
}

func (t Transform) InverseTransformPosition(p mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(p.Sub(t.Translation))
}

func (t Transform) InverseTransformVector(v mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Conjugate().Rotate(v)
}

// Mul returns the transform that applies o first, then t.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Translation: t.TransformPosition(o.Translation),
		Rotation:    t.Rotation.Mul(o.Rotation).Normalize(),
	}
}

func (t Transform) Inverse() Transform {
	inv := t.Rotation.Conjugate()
	return Transform{
		Translation: inv.Rotate(t.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// Relative expresses t in the frame of other.
func (t Transform) Relative(other Transform) Transform {
	return other.Inverse().Mul(t)
}

// QuatFromVector returns the rotation by |v| radians about v.
func QuatFromVector(v mgl64.Vec3) mgl64.Quat {
	angle := v.Len()
	if angle < SmallNumber {
		return mgl64.QuatIdent()
	}
	return mgl64.QuatRotate(angle, v.Mul(1/angle))
}

// IntegrateRotation advances q by angular velocity w over dt.
func IntegrateRotation(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	spin := mgl64.Quat{W: 0, V: w}.Mul(q).Scale(0.5 * dt)
	return q.Add(spin).Normalize()
}

// AngularVelocity is the w that rotates from to to over dt.
func AngularVelocity(from, to mgl64.Quat, dt float64) mgl64.Vec3 {
	delta := to.Mul(from.Conjugate())
	if delta.W < 0 {
		delta = delta.Scale(-1)
	}
	return delta.V.Mul(2 / dt)
}

// CrossMatrix returns S such that S*x == v.Cross(x).
func CrossMatrix(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromCols(
		mgl64.Vec3{0, v[2], -v[1]},
		mgl64.Vec3{-v[2], 0, v[0]},
		mgl64.Vec3{v[1], -v[0], 0},
	)
}

// WorldInvInertia rotates a body-space inverse inertia into world space.
func WorldInvInertia(q mgl64.Quat, local mgl64.Mat3) mgl64.Mat3 {
	r := q.Mat4().Mat3()
	return r.Mul3(local).Mul3(r.Transpose())
}

// SafeNormalize returns v/|v|, or fallback when v is too short.
func SafeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < SmallNumber {
		return fallback
	}
	return v.Mul(1 / l)
}

func ValidFloat(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func ValidVec(v mgl64.Vec3) bool {
	return ValidFloat(v[0]) && ValidFloat(v[1]) && ValidFloat(v[2])
}

func ValidQuat(q mgl64.Quat) bool {
	return ValidFloat(q.W) && ValidVec(q.V)
}

func ValidTransform(t Transform) bool {
	return ValidVec(t.Translation) && ValidQuat(t.Rotation)
}

// MinComponent returns the smallest component of v.
func MinComponent(v mgl64.Vec3) float64 {
	return math.Min(v[0], math.Min(v[1], v[2]))
}

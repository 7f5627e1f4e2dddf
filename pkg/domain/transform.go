package domain

import (
	"fmt"
	"math"
)

// Scale bounds applied by the manipulation helpers before a transform reaches
// the store.
const (
	MinScale = 0.1
	MaxScale = 5.0
)

// Vec3 is a three component vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Quat is a rotation quaternion. Stored rotations are unit length.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// UnitTolerance is how far a rotation's norm may drift from 1 and still be
// accepted as a unit quaternion.
const UnitTolerance = 1e-6

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{W: 1}

// Len returns the quaternion norm.
func (q Quat) Len() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns q scaled to unit length. A zero quaternion normalizes to
// the identity.
func (q Quat) Normalized() Quat {
	n := q.Len()
	if n == 0 || math.IsNaN(n) {
		return IdentityQuat
	}
	return Quat{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// Transform is the combined position, rotation and scale of a placed object.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// IdentityTransform places an object at the origin, unrotated, at unit scale.
func IdentityTransform() Transform {
	return Transform{Rotation: IdentityQuat, Scale: Vec3{X: 1, Y: 1, Z: 1}}
}

// Translated returns t moved by delta.
func (t Transform) Translated(delta Vec3) Transform {
	t.Position = t.Position.Add(delta)
	return t
}

// Rotated returns t with the given rotation, normalized.
func (t Transform) Rotated(q Quat) Transform {
	t.Rotation = q.Normalized()
	return t
}

// ScaledBy multiplies the current scale by factor and clamps every component
// into [MinScale, MaxScale].
func (t Transform) ScaledBy(factor float64) Transform {
	t.Scale = Vec3{
		X: ClampScale(t.Scale.X * factor),
		Y: ClampScale(t.Scale.Y * factor),
		Z: ClampScale(t.Scale.Z * factor),
	}
	return t
}

// ClampScale bounds a single scale component.
func ClampScale(v float64) float64 {
	if math.IsNaN(v) {
		return MinScale
	}
	return math.Min(MaxScale, math.Max(MinScale, v))
}

// Validate checks that all components are finite, the rotation is a unit
// quaternion, and scale is positive.
func (t Transform) Validate() error {
	p, r, s := t.Position, t.Rotation, t.Scale
	if !finite(p.X, p.Y, p.Z, r.X, r.Y, r.Z, r.W, s.X, s.Y, s.Z) {
		return fmt.Errorf("transform has non-finite component")
	}
	if n := r.Len(); math.Abs(n-1) > UnitTolerance {
		return fmt.Errorf("transform rotation must be a unit quaternion, got norm %g", n)
	}
	if s.X <= 0 || s.Y <= 0 || s.Z <= 0 {
		return fmt.Errorf("transform scale must be positive, got (%g, %g, %g)", s.X, s.Y, s.Z)
	}
	return nil
}

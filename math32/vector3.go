package math32

import (
	"fmt"
	"math"
)

// Vector3 represents a 3D vector.
type Vector3 struct {
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	Z float32 `json:"z" yaml:"z"`
}

var (
	Zero = Vector3{}
	One  = Vector3{1, 1, 1}
	Up   = Vector3{0, 1, 0}
)

// Add adds two vectors.
func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub subtracts two vectors.
func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Mul multiplies a vector by a scalar.
func (v Vector3) Mul(s float32) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// MulVec multiplies two vectors component-wise.
func (v Vector3) MulVec(other Vector3) Vector3 {
	return Vector3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

// DivVec divides two vectors component-wise, zero components of other yield zero.
func (v Vector3) DivVec(other Vector3) Vector3 {
	div := func(a, b float32) float32 {
		if b == 0 {
			return 0
		}
		return a / b
	}
	return Vector3{div(v.X, other.X), div(v.Y, other.Y), div(v.Z, other.Z)}
}

// Distance calculates the distance between two vectors.
func (v Vector3) Distance(other Vector3) float32 {
	diff := v.Sub(other)
	return float32(math.Sqrt(float64(diff.X*diff.X + diff.Y*diff.Y + diff.Z*diff.Z)))
}

// DistanceSquared calculates the squared distance between two vectors.
func (v Vector3) DistanceSquared(other Vector3) float32 {
	diff := v.Sub(other)
	return diff.X*diff.X + diff.Y*diff.Y + diff.Z*diff.Z
}

// LengthSquared calculates the squared length of a vector.
func (v Vector3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// Length calculates the length of a vector.
func (v Vector3) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z)))
}

// Dot calculates the dot product of two vectors.
func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross calculates the cross product of two vectors.
func (v Vector3) Cross(other Vector3) Vector3 {
	return Vector3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Normalize normalizes a vector.
func (v Vector3) Normalize() Vector3 {
	l := v.Length()
	if l == 0 {
		return Vector3{0, 0, 0}
	}
	return v.Mul(1.0 / l)
}

// ClampLength returns v scaled down to at most maxLength.
func (v Vector3) ClampLength(maxLength float32) Vector3 {
	l := v.Length()
	if l <= maxLength || l == 0 {
		return v
	}
	return v.Mul(maxLength / l)
}

// Lerp interpolates between v and other.
func (v Vector3) Lerp(other Vector3, t float32) Vector3 {
	return v.Add(other.Sub(v).Mul(t))
}

// MinVec returns the component-wise minimum.
func (v Vector3) MinVec(other Vector3) Vector3 {
	return Vector3{Min(v.X, other.X), Min(v.Y, other.Y), Min(v.Z, other.Z)}
}

// MaxVec returns the component-wise maximum.
func (v Vector3) MaxVec(other Vector3) Vector3 {
	return Vector3{Max(v.X, other.X), Max(v.Y, other.Y), Max(v.Z, other.Z)}
}

// IsZero reports whether every component is zero.
func (v Vector3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// ApproxEqual compares two vectors within Epsilon per component.
func (v Vector3) ApproxEqual(other Vector3) bool {
	return ApproxEqual(v.X, other.X) && ApproxEqual(v.Y, other.Y) && ApproxEqual(v.Z, other.Z)
}

// String returns a string representation of the vector.
func (v Vector3) String() string {
	return fmt.Sprintf("[%2f,%2f,%2f]", v.X, v.Y, v.Z)
}

// Get returns the value of the vector at the given index.
func (v Vector3) Get(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	case 2:
		return v.Z
	}
	return 0
}

// ClosestPointOnSegment returns the point on segment ab closest to p and its parameter t.
func ClosestPointOnSegment(p, a, b Vector3) (Vector3, float32) {
	ab := b.Sub(a)
	denom := ab.LengthSquared()
	if denom < Epsilon*Epsilon {
		return a, 0
	}
	t := Clamp01(p.Sub(a).Dot(ab) / denom)
	return a.Add(ab.Mul(t)), t
}

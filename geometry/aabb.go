package geometry

import "github.com/o0olele/regionnav-go/math32"

// AABB is axis-aligned bounding box
type AABB struct {
	Min math32.Vector3 `json:"min"`
	Max math32.Vector3 `json:"max"`
}

// NewAABBFromPoints returns the smallest box containing every point.
func NewAABBFromPoints(points ...math32.Vector3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box.Encapsulate(p)
	}
	return box
}

// Contains checks if the point is inside the AABB
func (aabb *AABB) Contains(point math32.Vector3) bool {
	return point.X >= aabb.Min.X && point.X <= aabb.Max.X &&
		point.Y >= aabb.Min.Y && point.Y <= aabb.Max.Y &&
		point.Z >= aabb.Min.Z && point.Z <= aabb.Max.Z
}

// Center returns the center of the AABB
func (aabb *AABB) Center() math32.Vector3 {
	return math32.Vector3{
		X: (aabb.Min.X + aabb.Max.X) / 2,
		Y: (aabb.Min.Y + aabb.Max.Y) / 2,
		Z: (aabb.Min.Z + aabb.Max.Z) / 2,
	}
}

// Size returns the size of the AABB
func (aabb *AABB) Size() math32.Vector3 {
	return aabb.Max.Sub(aabb.Min)
}

// Intersects checks if the AABB intersects with another AABB
func (aabb *AABB) Intersects(other AABB) bool {
	return aabb.Min.X <= other.Max.X && aabb.Max.X >= other.Min.X &&
		aabb.Min.Y <= other.Max.Y && aabb.Max.Y >= other.Min.Y &&
		aabb.Min.Z <= other.Max.Z && aabb.Max.Z >= other.Min.Z
}

// IsEmpty checks if the AABB is empty (invalid)
func (aabb *AABB) IsEmpty() bool {
	return aabb.Min.X > aabb.Max.X || aabb.Min.Y > aabb.Max.Y || aabb.Min.Z > aabb.Max.Z
}

// Encapsulate grows the AABB to include the point
func (aabb *AABB) Encapsulate(point math32.Vector3) {
	aabb.Min = aabb.Min.MinVec(point)
	aabb.Max = aabb.Max.MaxVec(point)
}

// Expanded returns a copy grown by amount on every side
func (aabb AABB) Expanded(amount float32) AABB {
	delta := math32.Vector3{X: amount, Y: amount, Z: amount}
	return AABB{Min: aabb.Min.Sub(delta), Max: aabb.Max.Add(delta)}
}

// ClosestPoint returns the point inside the AABB nearest to point
func (aabb *AABB) ClosestPoint(point math32.Vector3) math32.Vector3 {
	return math32.Vector3{
		X: math32.Clamp(point.X, aabb.Min.X, aabb.Max.X),
		Y: math32.Clamp(point.Y, aabb.Min.Y, aabb.Max.Y),
		Z: math32.Clamp(point.Z, aabb.Min.Z, aabb.Max.Z),
	}
}

// Corners returns the eight corners of the AABB
func (aabb *AABB) Corners() [8]math32.Vector3 {
	var corners [8]math32.Vector3
	for i := 0; i < 8; i++ {
		c := aabb.Min
		if i&1 != 0 {
			c.X = aabb.Max.X
		}
		if i&2 != 0 {
			c.Y = aabb.Max.Y
		}
		if i&4 != 0 {
			c.Z = aabb.Max.Z
		}
		corners[i] = c
	}
	return corners
}

// TransformBounds returns the world-space AABB enclosing a local AABB moved by t
func TransformBounds(local AABB, t math32.Transform) AABB {
	corners := local.Corners()
	for i := range corners {
		corners[i] = t.TransformPoint(corners[i])
	}
	return NewAABBFromPoints(corners[:]...)
}

package geometry

import (
	"github.com/o0olele/regionnav-go/math32"
)

// Capsule is the volume swept by a sphere of Radius moving from Start to End.
type Capsule struct {
	Start  math32.Vector3 `json:"start"`
	End    math32.Vector3 `json:"end"`
	Radius float32        `json:"radius"`
}

// GetBounds returns the bounding box of the capsule
func (c *Capsule) GetBounds() AABB {
	return AABB{
		Min: c.Start.MinVec(c.End),
		Max: c.Start.MaxVec(c.End),
	}.Expanded(c.Radius)
}

// ContainsPoint checks if the point is inside the capsule
func (c *Capsule) ContainsPoint(point math32.Vector3) bool {
	return PointToSegmentDistance(point, c.Start, c.End) <= c.Radius
}

// IntersectsTriangle reports whether the capsule touches the triangle, that is
// whether the axis segment comes within Radius of it.
func (c *Capsule) IntersectsTriangle(tri *Triangle) bool {
	if _, crossed := SegmentTriangle(c.Start, c.End, tri); crossed {
		return true
	}
	r2 := c.Radius * c.Radius

	// closest approach is at a segment endpoint or between the axis and an edge
	if tri.ClosestPoint(c.Start).DistanceSquared(c.Start) <= r2 {
		return true
	}
	if tri.ClosestPoint(c.End).DistanceSquared(c.End) <= r2 {
		return true
	}
	edges := [3][2]math32.Vector3{{tri.A, tri.B}, {tri.B, tri.C}, {tri.C, tri.A}}
	for _, e := range edges {
		p, q := ClosestPointsSegments(c.Start, c.End, e[0], e[1])
		if p.DistanceSquared(q) <= r2 {
			return true
		}
	}
	return false
}

// PointToSegmentDistance returns the distance from point to segment ab.
func PointToSegmentDistance(point, a, b math32.Vector3) float32 {
	ab := b.Sub(a)
	lengthSq := ab.LengthSquared()
	if lengthSq == 0 {
		return point.Distance(a)
	}
	t := math32.Clamp01(point.Sub(a).Dot(ab) / lengthSq)
	return point.Distance(a.Add(ab.Mul(t)))
}

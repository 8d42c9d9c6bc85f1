package geometry

import (
	"github.com/o0olele/regionnav-go/math32"
)

// Triangle is a triangle geometry
type Triangle struct {
	A math32.Vector3 `json:"a"`
	B math32.Vector3 `json:"b"`
	C math32.Vector3 `json:"c"`
}

// GetBounds returns the bounding box of the triangle
func (t *Triangle) GetBounds() AABB {
	return NewAABBFromPoints(t.A, t.B, t.C)
}

// GetNormal returns the normal of the triangle
func (t *Triangle) GetNormal() math32.Vector3 {
	edge1 := t.B.Sub(t.A)
	edge2 := t.C.Sub(t.A)
	return edge1.Cross(edge2).Normalize()
}

// Centroid returns the average of the three vertices
func (t *Triangle) Centroid() math32.Vector3 {
	return t.A.Add(t.B).Add(t.C).Mul(1.0 / 3.0)
}

// ClosestPoint returns the point on the triangle nearest to p (Voronoi region test)
func (t *Triangle) ClosestPoint(p math32.Vector3) math32.Vector3 {
	a, b, c := t.A, t.B, t.C
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)

	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w))
	}

	// inside the face
	denom := 1.0 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w))
}

package geometry

import "github.com/o0olele/regionnav-go/math32"

// ClosestPointsSegments returns the closest pair of points between segments p1q1 and p2q2.
// The first result lies on p1q1, the second on p2q2.
func ClosestPointsSegments(p1, q1, p2, q2 math32.Vector3) (math32.Vector3, math32.Vector3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	const eps = 1e-8
	var s, t float32
	switch {
	case a <= eps && e <= eps:
		return p1, p2
	case a <= eps:
		s = 0
		t = math32.Clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= eps {
			t = 0
			s = math32.Clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = math32.Clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = math32.Clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = math32.Clamp01((b - c) / a)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// SegmentTriangle returns where segment pq crosses the triangle, if it does.
func SegmentTriangle(p, q math32.Vector3, tri *Triangle) (math32.Vector3, bool) {
	dir := q.Sub(p)
	length := dir.Length()
	if length < math32.Epsilon {
		return p, false
	}
	dir = dir.Mul(1 / length)
	hit, t := RayTriangle(p, dir, tri)
	if !hit || t > length {
		return p, false
	}
	return p.Add(dir.Mul(t)), true
}

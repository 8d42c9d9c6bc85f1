package geometry

import "github.com/o0olele/regionnav-go/math32"

// RayTriangle returns whether the ray hits the triangle and the hit distance
// along dir. Hits at or behind the origin are ignored.
func RayTriangle(origin, dir math32.Vector3, tri *Triangle) (bool, float32) {
	const eps = 1e-6
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)

	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < eps {
		return false, 0 // parallel to the plane
	}
	inv := 1 / det

	s := origin.Sub(tri.A)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return false, 0
	}
	q := s.Cross(e1)
	w := dir.Dot(q) * inv
	if w < 0 || u+w > 1 {
		return false, 0
	}

	t := e2.Dot(q) * inv
	return t > eps, t
}

// RayAABB clips the ray against the box slabs and returns the entry and exit
// distances. The entry distance is clamped to 0 when the origin is inside.
func RayAABB(origin, dir math32.Vector3, box AABB) (float32, float32, bool) {
	const eps = 1e-6
	enter := float32(-math32.MaxFloat32)
	exit := float32(math32.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		o, d := origin.Get(axis), dir.Get(axis)
		lo, hi := box.Min.Get(axis), box.Max.Get(axis)
		if math32.Abs(d) < eps {
			if o < lo || o > hi {
				return 0, 0, false
			}
			continue
		}
		t0, t1 := (lo-o)/d, (hi-o)/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		enter = math32.Max(enter, t0)
		exit = math32.Min(exit, t1)
		if enter > exit {
			return 0, 0, false
		}
	}

	if exit < 0 {
		return 0, 0, false
	}
	return math32.Max(enter, 0), exit, true
}

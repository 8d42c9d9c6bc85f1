package search

import (
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
)

// tighten pulls internal crossings towards the straight line between their
// neighbours, keeping each crossing on its link's boundary. A move is kept
// only when it does not lengthen the path.
func tighten(waypoints []Waypoint, portals []portal, iterations int) {
	for iter := 0; iter < iterations; iter++ {
		moved := false
		for i := 1; i+1 < len(waypoints); i++ {
			p := &portals[i]
			if p.link == nil {
				continue
			}
			a := waypoints[i-1].Position
			b := waypoints[i+1].Position
			current := waypoints[i].Position

			candidate, ok := closestOnBoundary(p, a, b)
			if !ok {
				continue
			}
			before := a.Distance(current) + current.Distance(b)
			after := a.Distance(candidate) + candidate.Distance(b)
			if after <= before && !candidate.ApproxEqual(current) {
				waypoints[i].Position = candidate
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

// closestOnBoundary returns the point of the portal boundary giving the
// shortest a -> point -> b detour.
func closestOnBoundary(p *portal, a, b math32.Vector3) (math32.Vector3, bool) {
	ds := p.area.Dataset
	link := p.link
	world := func(idx int32) math32.Vector3 {
		return p.area.LocalToWorld(ds.Vertices[idx])
	}

	var best math32.Vector3
	bestLen := float32(math32.MaxFloat32)
	found := false
	consider := func(c math32.Vector3) {
		if l := a.Distance(c) + c.Distance(b); l < bestLen {
			best, bestLen, found = c, l, true
		}
	}

	for i := link.Triangles.Start; i < link.Triangles.End(); i++ {
		t := ds.Triangles[i]
		tri := geometry.Triangle{A: world(t[0]), B: world(t[1]), C: world(t[2])}
		if hit, ok := geometry.SegmentTriangle(a, b, &tri); ok {
			// the straight line already passes through the portal
			return hit, true
		}
		// near-miss or grazing: clamp the plane crossing into the triangle
		onLine, _ := math32.ClosestPointOnSegment(tri.Centroid(), a, b)
		n := tri.GetNormal()
		if denom := n.Dot(b.Sub(a)); math32.Abs(denom) > math32.Epsilon {
			onLine = a.Lerp(b, math32.Clamp01(n.Dot(tri.A.Sub(a))/denom))
		}
		consider(tri.ClosestPoint(onLine))
	}
	for i := link.Edges.Start; i < link.Edges.End(); i++ {
		e := ds.Edges[i]
		_, onEdge := geometry.ClosestPointsSegments(a, b, world(e[0]), world(e[1]))
		consider(onEdge)
	}
	if link.Triangles.Empty() && link.Edges.Empty() {
		for i := link.Vertices.Start; i < link.Vertices.End(); i++ {
			consider(world(i))
		}
	}
	return best, found
}

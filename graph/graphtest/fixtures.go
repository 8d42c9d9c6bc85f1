// Package graphtest builds small datasets for tests and examples.
package graphtest

import (
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/math32"
)

// Corridor returns a dataset of count regions laid out along +X, each a cell
// of the given size starting at the local origin. Volume cells are cubes that
// share a square portal; surface cells are flat squares at y = 0 that share
// an edge portal.
func Corridor(kind graph.AreaKind, count int, size float32) *graph.Dataset {
	ds := &graph.Dataset{Version: 1, Kind: kind}
	height := size
	if kind == graph.KindSurface {
		height = 0
	}

	for i := 0; i < count; i++ {
		x0, x1 := float32(i)*size, float32(i+1)*size
		bounds := geometry.AABB{
			Min: math32.Vector3{X: x0, Y: 0, Z: 0},
			Max: math32.Vector3{X: x1, Y: height, Z: size},
		}
		start := int32(len(ds.Vertices))
		corners := bounds.Corners()
		ds.Vertices = append(ds.Vertices, corners[:]...)
		ds.Regions = append(ds.Regions, graph.Region{
			ID:               int32(i),
			Bounds:           bounds,
			BoundaryVertices: graph.Range{Start: start, Count: int32(len(corners))},
		})
	}

	// portal k sits between region k and k+1
	type portal struct{ vertices, edges, triangles graph.Range }
	portals := make([]portal, 0, max(count-1, 0))
	for k := 0; k+1 < count; k++ {
		x := float32(k+1) * size
		var p portal
		v := int32(len(ds.Vertices))
		e := int32(len(ds.Edges))
		if kind == graph.KindSurface {
			ds.Vertices = append(ds.Vertices,
				math32.Vector3{X: x, Y: 0, Z: 0},
				math32.Vector3{X: x, Y: 0, Z: size},
			)
			ds.Edges = append(ds.Edges, [2]int32{v, v + 1})
			p.vertices = graph.Range{Start: v, Count: 2}
			p.edges = graph.Range{Start: e, Count: 1}
		} else {
			ds.Vertices = append(ds.Vertices,
				math32.Vector3{X: x, Y: 0, Z: 0},
				math32.Vector3{X: x, Y: size, Z: 0},
				math32.Vector3{X: x, Y: size, Z: size},
				math32.Vector3{X: x, Y: 0, Z: size},
			)
			ds.Edges = append(ds.Edges,
				[2]int32{v, v + 1}, [2]int32{v + 1, v + 2},
				[2]int32{v + 2, v + 3}, [2]int32{v + 3, v},
			)
			t := int32(len(ds.Triangles))
			ds.Triangles = append(ds.Triangles,
				[3]int32{v, v + 1, v + 2},
				[3]int32{v, v + 2, v + 3},
			)
			p.vertices = graph.Range{Start: v, Count: 4}
			p.edges = graph.Range{Start: e, Count: 4}
			p.triangles = graph.Range{Start: t, Count: 2}
		}
		portals = append(portals, p)
	}

	for i := range ds.Regions {
		start := int32(len(ds.InternalLinks))
		if i > 0 {
			p := portals[i-1]
			ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{
				ToRegion: int32(i - 1), Vertices: p.vertices, Edges: p.edges, Triangles: p.triangles,
			})
		}
		if i+1 < count {
			p := portals[i]
			ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{
				ToRegion: int32(i + 1), Vertices: p.vertices, Edges: p.edges, Triangles: p.triangles,
			})
		}
		ds.Regions[i].InternalLinks = graph.Range{Start: start, Count: int32(len(ds.InternalLinks)) - start}
	}
	return ds
}

// Grid returns a dataset of w*d volume cells tiled on the XZ plane, cell (x, z)
// having region id z*w+x. Neighbouring cells are linked through their shared face.
func Grid(w, d int, size float32) *graph.Dataset {
	ds := &graph.Dataset{Version: 1, Kind: graph.KindVolume}
	id := func(x, z int) int32 { return int32(z*w + x) }

	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			bounds := geometry.AABB{
				Min: math32.Vector3{X: float32(x) * size, Y: 0, Z: float32(z) * size},
				Max: math32.Vector3{X: float32(x+1) * size, Y: size, Z: float32(z+1) * size},
			}
			start := int32(len(ds.Vertices))
			corners := bounds.Corners()
			ds.Vertices = append(ds.Vertices, corners[:]...)
			ds.Regions = append(ds.Regions, graph.Region{
				ID:               id(x, z),
				Bounds:           bounds,
				BoundaryVertices: graph.Range{Start: start, Count: 8},
			})
		}
	}

	face := func(a, b math32.Vector3) graph.Range {
		v := int32(len(ds.Vertices))
		ds.Vertices = append(ds.Vertices, a, b)
		e := int32(len(ds.Edges))
		ds.Edges = append(ds.Edges, [2]int32{v, v + 1})
		return graph.Range{Start: e, Count: 1}
	}

	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			start := int32(len(ds.InternalLinks))
			cx0, cx1 := float32(x)*size, float32(x+1)*size
			cz0, cz1 := float32(z)*size, float32(z+1)*size
			mid := size / 2
			if x > 0 {
				ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{ToRegion: id(x-1, z),
					Edges: face(math32.Vector3{X: cx0, Y: mid, Z: cz0}, math32.Vector3{X: cx0, Y: mid, Z: cz1})})
			}
			if x+1 < w {
				ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{ToRegion: id(x+1, z),
					Edges: face(math32.Vector3{X: cx1, Y: mid, Z: cz0}, math32.Vector3{X: cx1, Y: mid, Z: cz1})})
			}
			if z > 0 {
				ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{ToRegion: id(x, z-1),
					Edges: face(math32.Vector3{X: cx0, Y: mid, Z: cz0}, math32.Vector3{X: cx1, Y: mid, Z: cz0})})
			}
			if z+1 < d {
				ds.InternalLinks = append(ds.InternalLinks, graph.InternalLink{ToRegion: id(x, z+1),
					Edges: face(math32.Vector3{X: cx0, Y: mid, Z: cz1}, math32.Vector3{X: cx1, Y: mid, Z: cz1})})
			}
			ds.Regions[id(x, z)].InternalLinks = graph.Range{Start: start, Count: int32(len(ds.InternalLinks)) - start}
		}
	}
	return ds
}

// At returns a transform placing an area at position with identity rotation.
func At(x, y, z float32) math32.Transform {
	return math32.NewTransform(math32.Vector3{X: x, Y: y, Z: z}, math32.IdentityQuaternion)
}

// ExternalRanges returns one range per region where only region from owns n links.
func ExternalRanges(regions int, from int32, n int32) []graph.Range {
	ranges := make([]graph.Range, regions)
	ranges[from] = graph.Range{Start: 0, Count: n}
	return ranges
}

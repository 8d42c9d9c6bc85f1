package graph

import (
	"errors"
	"fmt"

	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
)

// ErrInvalidDataset is wrapped by every Validate failure.
var ErrInvalidDataset = errors.New("invalid dataset")

// Dataset is the baked, versioned navigation data of one area.
// All positions are in the area's local space. Regions share the vertex,
// edge and triangle buffers through ranges.
type Dataset struct {
	Version uint32   `json:"version"`
	Kind    AreaKind `json:"kind"`

	Regions []Region `json:"regions"`

	// shared boundary buffers
	Vertices  []math32.Vector3 `json:"vertices"`
	Edges     [][2]int32       `json:"edges"`
	Triangles [][3]int32       `json:"triangles"`

	InternalLinks []InternalLink `json:"internal_links"`
	ExternalLinks []ExternalLink `json:"external_links"`
}

// LocalBounds returns the union of every region's bounds.
func (ds *Dataset) LocalBounds() geometry.AABB {
	if len(ds.Regions) == 0 {
		return geometry.AABB{}
	}
	bounds := ds.Regions[0].Bounds
	for i := 1; i < len(ds.Regions); i++ {
		bounds.Encapsulate(ds.Regions[i].Bounds.Min)
		bounds.Encapsulate(ds.Regions[i].Bounds.Max)
	}
	return bounds
}

// Region returns the region with the given id, or nil.
func (ds *Dataset) Region(id int32) *Region {
	if id < 0 || int(id) >= len(ds.Regions) {
		return nil
	}
	return &ds.Regions[id]
}

// RegionInternalLinks returns the internal links leaving a region.
func (ds *Dataset) RegionInternalLinks(r *Region) []InternalLink {
	if r.InternalLinks.Empty() {
		return nil
	}
	return ds.InternalLinks[r.InternalLinks.Start:r.InternalLinks.End()]
}

// RegionExternalLinks returns the external links leaving a region.
func (ds *Dataset) RegionExternalLinks(r *Region) []ExternalLink {
	if r.ExternalLinks.Empty() {
		return nil
	}
	return ds.ExternalLinks[r.ExternalLinks.Start:r.ExternalLinks.End()]
}

// BoundaryCentroid returns the average of a link's boundary vertices in local space.
func (ds *Dataset) BoundaryCentroid(link *InternalLink) math32.Vector3 {
	var sum math32.Vector3
	var count int
	add := func(idx int32) {
		sum = sum.Add(ds.Vertices[idx])
		count++
	}
	for i := link.Vertices.Start; i < link.Vertices.End(); i++ {
		add(i)
	}
	if count == 0 {
		for i := link.Edges.Start; i < link.Edges.End(); i++ {
			add(ds.Edges[i][0])
			add(ds.Edges[i][1])
		}
		for i := link.Triangles.Start; i < link.Triangles.End(); i++ {
			add(ds.Triangles[i][0])
			add(ds.Triangles[i][1])
			add(ds.Triangles[i][2])
		}
	}
	if count == 0 {
		return sum
	}
	return sum.Mul(1 / float32(count))
}

// Validate checks referential integrity of the dataset.
func (ds *Dataset) Validate() error {
	if !ds.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidDataset, ds.Kind)
	}

	// region ids are dense
	for i, region := range ds.Regions {
		if region.ID != int32(i) {
			return fmt.Errorf("%w: region ID mismatch at index %d: got %d", ErrInvalidDataset, i, region.ID)
		}
		if !region.BoundaryVertices.within(len(ds.Vertices)) {
			return fmt.Errorf("%w: region %d boundary range out of bounds", ErrInvalidDataset, i)
		}
		if !region.InternalLinks.within(len(ds.InternalLinks)) {
			return fmt.Errorf("%w: region %d internal link range out of bounds", ErrInvalidDataset, i)
		}
		if !region.ExternalLinks.within(len(ds.ExternalLinks)) {
			return fmt.Errorf("%w: region %d external link range out of bounds", ErrInvalidDataset, i)
		}
	}

	for i := range ds.Regions {
		for j := i + 1; j < len(ds.Regions); j++ {
			if ds.Regions[i].InternalLinks.Overlaps(ds.Regions[j].InternalLinks) {
				return fmt.Errorf("%w: regions %d and %d share internal links", ErrInvalidDataset, i, j)
			}
			if ds.Regions[i].ExternalLinks.Overlaps(ds.Regions[j].ExternalLinks) {
				return fmt.Errorf("%w: regions %d and %d share external links", ErrInvalidDataset, i, j)
			}
		}
	}

	vertexCount := int32(len(ds.Vertices))
	for i, edge := range ds.Edges {
		if edge[0] < 0 || edge[0] >= vertexCount || edge[1] < 0 || edge[1] >= vertexCount {
			return fmt.Errorf("%w: edge %d has invalid vertex index", ErrInvalidDataset, i)
		}
	}
	for i, tri := range ds.Triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= vertexCount {
				return fmt.Errorf("%w: triangle %d has invalid vertex index", ErrInvalidDataset, i)
			}
		}
	}

	for i, link := range ds.InternalLinks {
		if link.ToRegion < 0 || int(link.ToRegion) >= len(ds.Regions) {
			return fmt.Errorf("%w: internal link %d targets missing region %d", ErrInvalidDataset, i, link.ToRegion)
		}
		if !link.Vertices.within(len(ds.Vertices)) ||
			!link.Edges.within(len(ds.Edges)) ||
			!link.Triangles.within(len(ds.Triangles)) {
			return fmt.Errorf("%w: internal link %d boundary range out of bounds", ErrInvalidDataset, i)
		}
		if link.Vertices.Empty() && link.Edges.Empty() && link.Triangles.Empty() {
			return fmt.Errorf("%w: internal link %d has no boundary geometry", ErrInvalidDataset, i)
		}
	}

	// external link targets live in other areas and are resolved at search time
	for i, link := range ds.ExternalLinks {
		if !link.ToKind.Valid() {
			return fmt.Errorf("%w: external link %d has unknown target kind", ErrInvalidDataset, i)
		}
	}

	return nil
}

// Clone returns a deep copy of the dataset.
func (ds *Dataset) Clone() *Dataset {
	if ds == nil {
		return nil
	}
	return &Dataset{
		Version:       ds.Version,
		Kind:          ds.Kind,
		Regions:       append([]Region(nil), ds.Regions...),
		Vertices:      append([]math32.Vector3(nil), ds.Vertices...),
		Edges:         append([][2]int32(nil), ds.Edges...),
		Triangles:     append([][3]int32(nil), ds.Triangles...),
		InternalLinks: append([]InternalLink(nil), ds.InternalLinks...),
		ExternalLinks: append([]ExternalLink(nil), ds.ExternalLinks...),
	}
}

// GetDataSize estimates the in-memory size of the dataset in bytes.
func (ds *Dataset) GetDataSize() int {
	size := 8
	size += len(ds.Regions) * (4 + 4*6 + 8*3)
	size += len(ds.Vertices) * 4 * 3
	size += len(ds.Edges) * 4 * 2
	size += len(ds.Triangles) * 4 * 3
	size += len(ds.InternalLinks) * (4 + 8*3)
	size += len(ds.ExternalLinks) * (8 + 1 + 4 + 4*6 + 16 + 8)
	return size
}

package graph

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
)

// AreaKind distinguishes volume areas from surface areas.
type AreaKind uint8

const (
	KindVolume AreaKind = iota
	KindSurface

	kindCount = 2
)

// String returns the kind name.
func (k AreaKind) String() string {
	switch k {
	case KindVolume:
		return "volume"
	case KindSurface:
		return "surface"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseAreaKind parses a kind name as printed by String.
func ParseAreaKind(name string) (AreaKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "volume":
		return KindVolume, nil
	case "surface":
		return KindSurface, nil
	default:
		return 0, fmt.Errorf("unknown area kind %q", name)
	}
}

// Valid reports whether k is a known kind.
func (k AreaKind) Valid() bool {
	return k < kindCount
}

// Mask returns the single-bit mask of k.
func (k AreaKind) Mask() AreaKindMask {
	return AreaKindMask(1) << k
}

// AreaKindMask is a set of area kinds.
type AreaKindMask uint8

const (
	MaskNone    AreaKindMask = 0
	MaskVolume               = AreaKindMask(1) << KindVolume
	MaskSurface              = AreaKindMask(1) << KindSurface
	MaskAll                  = MaskVolume | MaskSurface
)

// Has reports whether kind is in the mask.
func (m AreaKindMask) Has(kind AreaKind) bool {
	return m&kind.Mask() != 0
}

// Layers

// LayerNone marks an area that ignores layer masks.
const LayerNone int32 = -1

// MaxLayer is the highest addressable layer.
const MaxLayer int32 = 31

// LayerMask is a set of layers 0..31.
type LayerMask uint32

// AllLayers passes every layer.
const AllLayers LayerMask = 0xFFFFFFFF

// Allows reports whether layer passes the mask. LayerNone passes every mask.
func (m LayerMask) Allows(layer int32) bool {
	if layer == LayerNone {
		return true
	}
	if layer < 0 || layer > MaxLayer {
		return false
	}
	return m&(1<<uint32(layer)) != 0
}

// Range is a [Start, Start+Count) slice of a shared buffer.
type Range struct {
	Start int32 `json:"start"`
	Count int32 `json:"count"`
}

// End returns the exclusive end index.
func (r Range) End() int32 { return r.Start + r.Count }

// Empty reports whether the range holds nothing.
func (r Range) Empty() bool { return r.Count <= 0 }

// Overlaps reports whether two non-empty ranges share an index.
func (r Range) Overlaps(other Range) bool {
	if r.Empty() || other.Empty() {
		return false
	}
	return r.Start < other.End() && other.Start < r.End()
}

// within reports whether the range is valid for a buffer of length n.
func (r Range) within(n int) bool {
	return r.Start >= 0 && r.Count >= 0 && int(r.End()) <= n
}

// Region is a connected sub-partition of an Area.
type Region struct {
	ID     int32         `json:"id"`
	Bounds geometry.AABB `json:"bounds"`
	// BoundaryVertices indexes the dataset's shared vertices outlining the region.
	BoundaryVertices Range `json:"boundary_vertices"`
	InternalLinks    Range `json:"internal_links"`
	ExternalLinks    Range `json:"external_links"`
}

// InternalLink connects two regions of the same area through a shared boundary.
type InternalLink struct {
	ToRegion  int32 `json:"to_region"`
	Vertices  Range `json:"vertices"`
	Edges     Range `json:"edges"`
	Triangles Range `json:"triangles"`
}

// ExternalLink connects a region to a region of another area. Positions are in the owning area's local space.
type ExternalLink struct {
	ToArea       int64          `json:"to_area"`
	ToKind       AreaKind       `json:"to_kind"`
	ToRegion     int32          `json:"to_region"`
	FromPosition math32.Vector3 `json:"from_position"`
	ToPosition   math32.Vector3 `json:"to_position"`
	ToScene      uuid.UUID      `json:"to_scene"`
	// ManualLinkID is the originating manual link, 0 for baked links.
	ManualLinkID int64 `json:"manual_link_id,omitempty"`
}

// ManualLink is an authored shortcut between two points given in the link's own space.
type ManualLink struct {
	ID            int64            `json:"id"`
	Transform     math32.Transform `json:"transform"`
	Start         math32.Vector3   `json:"start"`
	End           math32.Vector3   `json:"end"`
	StartKinds    AreaKindMask     `json:"start_kinds"`
	EndKinds      AreaKindMask     `json:"end_kinds"`
	SampleRadius  float32          `json:"sample_radius"`
	Bidirectional bool             `json:"bidirectional"`
	Enabled       bool             `json:"enabled"`
}

// WorldStart returns the start point in world space.
func (l *ManualLink) WorldStart() math32.Vector3 {
	return l.Transform.TransformPoint(l.Start)
}

// WorldEnd returns the end point in world space.
func (l *ManualLink) WorldEnd() math32.Vector3 {
	return l.Transform.TransformPoint(l.End)
}

package search

import (
	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/math32"
)

// nodeKey identifies a search node: one region of one area.
type nodeKey struct {
	area   int64
	region int32
}

// edgeRef records which link reached a node.
type edgeRef struct {
	external bool
	link     int32 // index into the owning dataset's link buffer
}

// Scratch holds the buffers of one search. It is reused across searches to
// avoid per-request allocation and must not be shared by concurrent searches.
type Scratch struct {
	open   nodeHeap
	inOpen map[int32]*heapNode
	index  map[nodeKey]int32
	closed math32.Bitmap

	// per dense node index
	keys   []nodeKey
	g      []float32
	entry  []math32.Vector3
	parent []int32
	via    []edgeRef

	// path building
	waypoints []Waypoint
	portals   []portal
	kinds     []graph.AreaKind

	expansions int
}

// NewScratch allocates empty search buffers.
func NewScratch() *Scratch {
	return &Scratch{
		inOpen: make(map[int32]*heapNode),
		index:  make(map[nodeKey]int32),
	}
}

// Reset clears the buffers, keeping their capacity.
func (s *Scratch) Reset() {
	s.open.Clear()
	clear(s.inOpen)
	clear(s.index)
	s.closed.Clear()
	s.keys = s.keys[:0]
	s.g = s.g[:0]
	s.entry = s.entry[:0]
	s.parent = s.parent[:0]
	s.via = s.via[:0]
	s.waypoints = s.waypoints[:0]
	s.portals = s.portals[:0]
	s.kinds = s.kinds[:0]
	s.expansions = 0
}

// Expansions returns how many nodes the last search expanded.
func (s *Scratch) Expansions() int {
	return s.expansions
}

// node returns the dense index of k, creating an unvisited node if needed.
func (s *Scratch) node(k nodeKey) int32 {
	if idx, ok := s.index[k]; ok {
		return idx
	}
	idx := int32(len(s.keys))
	s.index[k] = idx
	s.keys = append(s.keys, k)
	s.g = append(s.g, math32.MaxFloat32)
	s.entry = append(s.entry, math32.Vector3{})
	s.parent = append(s.parent, -1)
	s.via = append(s.via, edgeRef{})
	return idx
}

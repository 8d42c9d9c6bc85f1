package graph

import (
	"math"
	"sync/atomic"

	"github.com/o0olele/regionnav-go/math32"
)

// SamplePriority decides which area wins when several lie within the sample radius.
type SamplePriority uint8

const (
	// PriorityNearest picks the closest area regardless of kind.
	PriorityNearest SamplePriority = iota
	// PriorityVolume prefers volume areas, falling back to the nearest surface.
	PriorityVolume
	// PrioritySurface prefers surface areas, falling back to the nearest volume.
	PrioritySurface
)

// SampleResult locates a point on the graph. AreaID <= 0 means nothing was found.
type SampleResult struct {
	AreaID   int64          `json:"area_id"`
	RegionID int32          `json:"region_id"`
	Position math32.Vector3 `json:"position"`
	Up       math32.Vector3 `json:"up"`
	Distance float32        `json:"distance"`
}

// Valid reports whether the sample hit an area.
func (r SampleResult) Valid() bool {
	return r.AreaID > 0
}

// Sampler answers "which area and region contains this point".
type Sampler interface {
	Sample(pos math32.Vector3, radius float32, kinds AreaKindMask, layers LayerMask, priority SamplePriority) SampleResult
}

// quantization step of cached sample queries
const sampleCellSize = 0.01

type sampleKey struct {
	version  uint64
	x, y, z  int32
	radius   uint32
	kinds    AreaKindMask
	layers   LayerMask
	priority SamplePriority
}

// BoundsSampler samples against region bounds of the current snapshot.
// Results are cached per snapshot version, so any mutation invalidates them.
type BoundsSampler struct {
	graph   *RegionGraph
	cache   *math32.Cache[sampleKey, SampleResult]
	version atomic.Uint64 // snapshot version the cache was last filled for
}

// NewBoundsSampler creates a sampler over g. cacheSize <= 0 disables caching.
func NewBoundsSampler(g *RegionGraph, cacheSize int) *BoundsSampler {
	s := &BoundsSampler{graph: g}
	if cacheSize > 0 {
		s.cache = math32.NewCache[sampleKey, SampleResult](cacheSize)
	}
	return s
}

// Sample implements Sampler.
func (s *BoundsSampler) Sample(pos math32.Vector3, radius float32, kinds AreaKindMask, layers LayerMask, priority SamplePriority) SampleResult {
	snap := s.graph.Snapshot()
	if s.cache == nil {
		return SampleSnapshot(snap, pos, radius, kinds, layers, priority)
	}

	key := sampleKey{
		version:  snap.Version(),
		x:        quantize(pos.X),
		y:        quantize(pos.Y),
		z:        quantize(pos.Z),
		radius:   math.Float32bits(radius),
		kinds:    kinds,
		layers:   layers,
		priority: priority,
	}
	// entries of older versions can never hit again
	if prev := s.version.Swap(key.version); prev != key.version {
		s.cache.Purge()
	}
	if res, ok := s.cache.Get(key); ok {
		return res
	}
	res := SampleSnapshot(snap, pos, radius, kinds, layers, priority)
	s.cache.Put(key, res)
	return res
}

// CacheStats returns the sample cache counters.
func (s *BoundsSampler) CacheStats() math32.CacheStats {
	if s.cache == nil {
		return math32.CacheStats{}
	}
	return s.cache.GetStats()
}

func quantize(v float32) int32 {
	return int32(math.Round(float64(v / sampleCellSize)))
}

// SampleSnapshot samples pos against a fixed snapshot without caching.
func SampleSnapshot(snap *Snapshot, pos math32.Vector3, radius float32, kinds AreaKindMask, layers LayerMask, priority SamplePriority) SampleResult {
	var best [kindCount]SampleResult
	var found [kindCount]bool

	for _, area := range snap.Areas() {
		if !kinds.Has(area.Kind) || !layers.Allows(area.Layer) {
			continue
		}
		if bounds := area.Bounds.Expanded(radius); !bounds.Contains(pos) {
			continue
		}
		region, local, dist, ok := area.FindRegion(pos, radius)
		if !ok {
			continue
		}
		// areas are visited by ascending id so ties keep the lowest id
		if found[area.Kind] && dist >= best[area.Kind].Distance {
			continue
		}
		found[area.Kind] = true
		best[area.Kind] = SampleResult{
			AreaID:   area.ID,
			RegionID: region,
			Position: area.LocalToWorld(local),
			Up:       area.Up(),
			Distance: dist,
		}
	}

	switch {
	case priority == PriorityVolume && found[KindVolume]:
		return best[KindVolume]
	case priority == PrioritySurface && found[KindSurface]:
		return best[KindSurface]
	}
	switch {
	case found[KindVolume] && found[KindSurface]:
		if best[KindSurface].Distance < best[KindVolume].Distance {
			return best[KindSurface]
		}
		return best[KindVolume]
	case found[KindVolume]:
		return best[KindVolume]
	case found[KindSurface]:
		return best[KindSurface]
	}
	return SampleResult{RegionID: -1}
}

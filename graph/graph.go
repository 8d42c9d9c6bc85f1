package graph

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/math32"
)

var (
	ErrInvalidAreaID = errors.New("area id must be positive")
	ErrAreaNotFound  = errors.New("area not registered")
	ErrRangeMismatch = errors.New("external link ranges do not match regions")
	ErrInvalidLinkID = errors.New("manual link id must be positive")
	ErrLinkNotFound  = errors.New("manual link not registered")
	ErrNotParked     = errors.New("no parked dataset for area")
)

// RegionGraph holds the current snapshot of registered areas and manual links.
// Writers are serialized and wrapped in the mutation guard; readers take a
// Snapshot and never block.
type RegionGraph struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	guard   *MutationGuard
	logger  logging.Logger

	// datasets kept by Deregister(id, false) for Restore
	parked map[int64]*Area
}

// Option configures a RegionGraph.
type Option func(*RegionGraph)

// WithLogger sets the graph logger.
func WithLogger(logger logging.Logger) Option {
	return func(g *RegionGraph) { g.logger = logging.OrNoOp(logger) }
}

// WithGuard shares an existing mutation guard.
func WithGuard(guard *MutationGuard) Option {
	return func(g *RegionGraph) { g.guard = guard }
}

// NewRegionGraph creates an empty graph.
func NewRegionGraph(opts ...Option) *RegionGraph {
	g := &RegionGraph{
		logger: logging.NoOpLogger{},
		parked: make(map[int64]*Area),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.guard == nil {
		g.guard = NewMutationGuard(g.logger)
	}
	g.current.Store(EmptySnapshot())
	return g
}

// Snapshot returns the current immutable view.
func (g *RegionGraph) Snapshot() *Snapshot {
	return g.current.Load()
}

// Guard returns the mutation guard.
func (g *RegionGraph) Guard() *MutationGuard {
	return g.guard
}

// Batch runs fn inside a single mutation scope so listeners see one begin/end pair.
func (g *RegionGraph) Batch(fn func() error) error {
	g.guard.Begin()
	defer g.guard.End()
	return fn()
}

func (g *RegionGraph) mutate(fn func(next *Snapshot) error) error {
	g.guard.Begin()
	defer g.guard.End()

	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.current.Load().clone()
	if err := fn(next); err != nil {
		return err
	}
	g.current.Store(next)
	return nil
}

// Register adds or replaces an area.
func (g *RegionGraph) Register(id int64, ds *Dataset, transform math32.Transform, layer int32, scene uuid.UUID) error {
	if id <= 0 {
		return ErrInvalidAreaID
	}
	if ds == nil {
		return fmt.Errorf("register area %d: %w: nil dataset", id, ErrInvalidDataset)
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("register area %d: %w", id, err)
	}
	if layer != LayerNone && (layer < 0 || layer > MaxLayer) {
		return fmt.Errorf("register area %d: layer %d out of range", id, layer)
	}

	return g.mutate(func(next *Snapshot) error {
		_, replaced := next.areas[id]
		next.areas[id] = newArea(id, ds, transform, layer, scene)
		delete(g.parked, id)
		g.logger.Debug("area registered", "area", id, "kind", ds.Kind.String(), "regions", len(ds.Regions), "replaced", replaced)
		return nil
	})
}

// Deregister removes an area. With freeData false the dataset is parked and
// can be brought back with Restore.
func (g *RegionGraph) Deregister(id int64, freeData bool) bool {
	removed := false
	_ = g.mutate(func(next *Snapshot) error {
		area, ok := next.areas[id]
		if !ok {
			return nil
		}
		delete(next.areas, id)
		if freeData {
			delete(g.parked, id)
		} else {
			g.parked[id] = area
		}
		removed = true
		g.logger.Debug("area deregistered", "area", id, "free_data", freeData)
		return nil
	})
	return removed
}

// Restore re-registers an area parked by Deregister(id, false).
func (g *RegionGraph) Restore(id int64) error {
	return g.mutate(func(next *Snapshot) error {
		area, ok := g.parked[id]
		if !ok {
			return fmt.Errorf("restore area %d: %w", id, ErrNotParked)
		}
		delete(g.parked, id)
		next.areas[id] = area
		return nil
	})
}

// UpdateTransform moves an area, rebuilding its world bounds.
func (g *RegionGraph) UpdateTransform(id int64, transform math32.Transform) error {
	return g.mutate(func(next *Snapshot) error {
		area, ok := next.areas[id]
		if !ok {
			return fmt.Errorf("update transform of area %d: %w", id, ErrAreaNotFound)
		}
		next.areas[id] = area.withTransform(transform)
		return nil
	})
}

// UpdateExternalLinks replaces every region's external links. ranges[i] is
// region i's slice of links. Manual links whose start lies in a region of the
// area (or whose end does, for bidirectional links) are appended to it.
// Links into scenes that are not loaded are dropped unless keepUnloadedSceneLinks.
func (g *RegionGraph) UpdateExternalLinks(id int64, links []ExternalLink, ranges []Range, manual []ManualLink, keepUnloadedSceneLinks bool) error {
	return g.mutate(func(next *Snapshot) error {
		area, ok := next.areas[id]
		if !ok {
			return fmt.Errorf("update external links of area %d: %w", id, ErrAreaNotFound)
		}
		ds := area.Dataset
		if len(ranges) != len(ds.Regions) {
			return fmt.Errorf("update external links of area %d: %w: %d ranges for %d regions", id, ErrRangeMismatch, len(ranges), len(ds.Regions))
		}

		perRegion := make([][]ExternalLink, len(ds.Regions))
		for i, r := range ranges {
			if !r.within(len(links)) {
				return fmt.Errorf("update external links of area %d: %w: range %d out of bounds", id, ErrRangeMismatch, i)
			}
			for _, link := range links[r.Start:r.End()] {
				if !keepUnloadedSceneLinks && !next.SceneLoaded(link.ToScene) {
					continue
				}
				perRegion[i] = append(perRegion[i], link)
			}
		}

		for i := range manual {
			m := &manual[i]
			g.appendManualLink(next, area, m, m.WorldStart(), m.WorldEnd(), m.StartKinds, m.EndKinds, perRegion)
			if m.Bidirectional {
				g.appendManualLink(next, area, m, m.WorldEnd(), m.WorldStart(), m.EndKinds, m.StartKinds, perRegion)
			}
		}

		updated := ds.Clone()
		updated.ExternalLinks = updated.ExternalLinks[:0]
		for i := range updated.Regions {
			start := int32(len(updated.ExternalLinks))
			updated.ExternalLinks = append(updated.ExternalLinks, perRegion[i]...)
			updated.Regions[i].ExternalLinks = Range{Start: start, Count: int32(len(perRegion[i]))}
		}
		if err := updated.Validate(); err != nil {
			return fmt.Errorf("update external links of area %d: %w", id, err)
		}
		next.areas[id] = area.withDataset(updated)
		return nil
	})
}

// appendManualLink materializes one direction of a manual link leaving area.
func (g *RegionGraph) appendManualLink(next *Snapshot, area *Area, m *ManualLink, from, to math32.Vector3, fromKinds, toKinds AreaKindMask, perRegion [][]ExternalLink) {
	if !fromKinds.Has(area.Kind) {
		return
	}
	fromRegion, fromLocal, _, ok := area.FindRegion(from, m.SampleRadius)
	if !ok {
		return
	}

	var target *Area
	var targetRegion int32
	var best float32
	for _, candidate := range next.areas {
		if candidate.ID == area.ID || !toKinds.Has(candidate.Kind) {
			continue
		}
		region, _, dist, found := candidate.FindRegion(to, m.SampleRadius)
		if !found {
			continue
		}
		// nearest wins, lowest id breaks ties so map order does not matter
		if target == nil || dist < best || (dist == best && candidate.ID < target.ID) {
			target, targetRegion, best = candidate, region, dist
		}
	}
	if target == nil {
		g.logger.Debug("manual link has no target area", "link", m.ID, "area", area.ID)
		return
	}

	perRegion[fromRegion] = append(perRegion[fromRegion], ExternalLink{
		ToArea:       target.ID,
		ToKind:       target.Kind,
		ToRegion:     targetRegion,
		FromPosition: fromLocal,
		ToPosition:   area.WorldToLocal(to),
		ToScene:      target.Scene,
		ManualLinkID: m.ID,
	})
}

// AddManualLink registers (or replaces) a manual link.
func (g *RegionGraph) AddManualLink(link ManualLink) error {
	if link.ID <= 0 {
		return ErrInvalidLinkID
	}
	return g.mutate(func(next *Snapshot) error {
		l := link
		next.manualLinks[link.ID] = &l
		if link.Enabled {
			delete(next.disabledLinks, link.ID)
		} else {
			next.disabledLinks[link.ID] = struct{}{}
		}
		return nil
	})
}

// RemoveManualLink unregisters a manual link. External links built from it become unusable.
func (g *RegionGraph) RemoveManualLink(id int64) bool {
	removed := false
	_ = g.mutate(func(next *Snapshot) error {
		if _, ok := next.manualLinks[id]; ok {
			delete(next.manualLinks, id)
			delete(next.disabledLinks, id)
			removed = true
		}
		return nil
	})
	return removed
}

// SetManualLinkEnabled toggles a registered manual link.
func (g *RegionGraph) SetManualLinkEnabled(id int64, enabled bool) error {
	return g.mutate(func(next *Snapshot) error {
		link, ok := next.manualLinks[id]
		if !ok {
			return fmt.Errorf("toggle manual link %d: %w", id, ErrLinkNotFound)
		}
		updated := *link
		updated.Enabled = enabled
		next.manualLinks[id] = &updated
		if enabled {
			delete(next.disabledLinks, id)
		} else {
			next.disabledLinks[id] = struct{}{}
		}
		return nil
	})
}

// SetSceneLoaded marks a scene loaded or unloaded. External links into
// unloaded scenes are skipped by the search.
func (g *RegionGraph) SetSceneLoaded(scene uuid.UUID, loaded bool) {
	_ = g.mutate(func(next *Snapshot) error {
		if loaded {
			next.loadedScenes[scene] = struct{}{}
		} else {
			delete(next.loadedScenes, scene)
		}
		return nil
	})
}

// Teardown drops every area, link and parked dataset.
func (g *RegionGraph) Teardown() {
	_ = g.mutate(func(next *Snapshot) error {
		clear(next.areas)
		clear(next.manualLinks)
		clear(next.disabledLinks)
		clear(next.loadedScenes)
		clear(g.parked)
		return nil
	})
}

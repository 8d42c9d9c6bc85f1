package graph

import (
	"sort"

	"github.com/google/uuid"
)

// Snapshot is an immutable view of the graph. Background searches hold on to
// one while the graph moves on; nothing in a published Snapshot is mutated.
type Snapshot struct {
	version       uint64
	areas         map[int64]*Area
	manualLinks   map[int64]*ManualLink
	disabledLinks map[int64]struct{}
	loadedScenes  map[uuid.UUID]struct{}
}

var emptySnapshot = &Snapshot{
	areas:         map[int64]*Area{},
	manualLinks:   map[int64]*ManualLink{},
	disabledLinks: map[int64]struct{}{},
	loadedScenes:  map[uuid.UUID]struct{}{},
}

// EmptySnapshot returns the shared snapshot with no areas.
func EmptySnapshot() *Snapshot {
	return emptySnapshot
}

// Version increases with every published mutation.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Area returns the area registered under id, or nil.
func (s *Snapshot) Area(id int64) *Area {
	return s.areas[id]
}

// AreaCount returns the number of registered areas.
func (s *Snapshot) AreaCount() int {
	return len(s.areas)
}

// Areas returns the registered areas sorted by id.
func (s *Snapshot) Areas() []*Area {
	areas := make([]*Area, 0, len(s.areas))
	for _, a := range s.areas {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })
	return areas
}

// ManualLink returns the manual link registered under id, or nil.
func (s *Snapshot) ManualLink(id int64) *ManualLink {
	return s.manualLinks[id]
}

// ManualLinks returns the registered manual links sorted by id.
func (s *Snapshot) ManualLinks() []*ManualLink {
	links := make([]*ManualLink, 0, len(s.manualLinks))
	for _, l := range s.manualLinks {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return links
}

// ManualLinkEnabled reports whether a manual link may be traversed.
// Links that were never registered are treated as disabled.
func (s *Snapshot) ManualLinkEnabled(id int64) bool {
	if _, ok := s.manualLinks[id]; !ok {
		return false
	}
	_, disabled := s.disabledLinks[id]
	return !disabled
}

// SceneLoaded reports whether a scene is loaded. The nil scene is always loaded.
func (s *Snapshot) SceneLoaded(scene uuid.UUID) bool {
	if scene == uuid.Nil {
		return true
	}
	_, ok := s.loadedScenes[scene]
	return ok
}

// clone makes a shallow copy for copy-on-write mutation. Areas and links are shared.
func (s *Snapshot) clone() *Snapshot {
	next := &Snapshot{
		version:       s.version + 1,
		areas:         make(map[int64]*Area, len(s.areas)),
		manualLinks:   make(map[int64]*ManualLink, len(s.manualLinks)),
		disabledLinks: make(map[int64]struct{}, len(s.disabledLinks)),
		loadedScenes:  make(map[uuid.UUID]struct{}, len(s.loadedScenes)),
	}
	for k, v := range s.areas {
		next.areas[k] = v
	}
	for k, v := range s.manualLinks {
		next.manualLinks[k] = v
	}
	for k := range s.disabledLinks {
		next.disabledLinks[k] = struct{}{}
	}
	for k := range s.loadedScenes {
		next.loadedScenes[k] = struct{}{}
	}
	return next
}

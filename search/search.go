// Package search finds paths across the region graph.
//
// Regions are graph nodes, internal and external links are edges. A node is
// entered at a concrete world position (the query start, a link crossing or a
// link landing point) and edge costs are measured from that position, so the
// search runs over crossing points rather than region centres.
package search

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/math32"
)

var (
	// ErrMalformedRequest is returned before searching when a sample cannot start or end a path.
	ErrMalformedRequest = errors.New("malformed path request")
	// ErrStaleArea is returned when a sample's area is no longer registered.
	ErrStaleArea = errors.New("area no longer registered")
)

const (
	maxIterations = 1 << 16
	// goalID is the virtual node reached from the end region at the end position.
	goalID int32 = -2
	// tolerance for treating the query position as the sampled position
	movedEpsilon = 1e-3
)

// Validate checks that start and end can be used against snap.
func Validate(snap *graph.Snapshot, start, end graph.SampleResult, params *Params) error {
	for _, sample := range [2]graph.SampleResult{start, end} {
		if !sample.Valid() {
			return fmt.Errorf("%w: area id %d", ErrMalformedRequest, sample.AreaID)
		}
		area := snap.Area(sample.AreaID)
		if area == nil {
			return fmt.Errorf("%w: area %d", ErrStaleArea, sample.AreaID)
		}
		if !params.AreaTypes.Has(area.Kind) {
			return fmt.Errorf("%w: area %d kind %s excluded by mask", ErrMalformedRequest, area.ID, area.Kind)
		}
		if !params.Layers.Allows(area.Layer) {
			return fmt.Errorf("%w: area %d layer %d excluded by mask", ErrMalformedRequest, area.ID, area.Layer)
		}
		if area.Region(sample.RegionID) == nil {
			return fmt.Errorf("%w: area %d has no region %d", ErrStaleArea, area.ID, sample.RegionID)
		}
	}
	return nil
}

// Find searches snap for a path from start to end. startPos and endPos are the
// original query positions; when sampling moved them they become Outside
// waypoints. A nil result with a nil error means no path exists.
func Find(snap *graph.Snapshot, start, end graph.SampleResult, startPos, endPos math32.Vector3, params Params, scratch *Scratch) ([]Waypoint, error) {
	if err := Validate(snap, start, end, &params); err != nil {
		return nil, err
	}
	if scratch == nil {
		scratch = NewScratch()
	}
	scratch.Reset()

	f := finder{snap: snap, params: &params, s: scratch, end: end}
	goal, ok := f.run(start)
	if !ok {
		return nil, nil
	}

	f.build(goal, start, end, startPos, endPos)
	tighten(scratch.waypoints, scratch.portals, params.TighteningIterations)
	accumulate(scratch.waypoints)

	out := make([]Waypoint, len(scratch.waypoints))
	copy(out, scratch.waypoints)
	return out, nil
}

type finder struct {
	snap   *graph.Snapshot
	params *Params
	s      *Scratch
	end    graph.SampleResult

	heuristicScale float32
	goalG          float32
	goalNode       *heapNode
	goalParent     int32
}

func (f *finder) heuristic(p math32.Vector3) float32 {
	return p.Distance(f.end.Position) * f.heuristicScale
}

// run executes A* and returns the node the goal was reached from.
func (f *finder) run(start graph.SampleResult) (int32, bool) {
	s := f.s
	f.heuristicScale = f.params.minMultiplier()
	f.goalG = math32.MaxFloat32
	f.goalParent = -1

	startID := s.node(nodeKey{area: start.AreaID, region: start.RegionID})
	s.g[startID] = 0
	s.entry[startID] = start.Position
	f.push(startID, f.heuristic(start.Position))

	endKey := nodeKey{area: f.end.AreaID, region: f.end.RegionID}
	for s.open.Len() > 0 && s.expansions < maxIterations {
		current := heap.Pop(&s.open).(*heapNode)
		id := current.nodeID
		heapNodePool.Put(current)

		if id == goalID {
			f.goalNode = nil
			return f.goalParent, true
		}
		delete(s.inOpen, id)
		s.closed.Set(uint32(id))
		s.expansions++

		key := s.keys[id]
		area := f.snap.Area(key.area)
		if area == nil {
			// dangling link target
			continue
		}
		region := area.Region(key.region)
		if region == nil {
			continue
		}

		if key == endKey {
			cost := s.g[id] + s.entry[id].Distance(f.end.Position)*f.params.costMultiplier(area.Kind)
			f.relaxGoal(id, cost)
		}
		f.expandInternal(id, area, region)
		f.expandExternal(id, area, region)
	}
	return -1, false
}

func (f *finder) expandInternal(id int32, area *graph.Area, region *graph.Region) {
	s := f.s
	ds := area.Dataset
	mult := f.params.costMultiplier(area.Kind)
	for li := region.InternalLinks.Start; li < region.InternalLinks.End(); li++ {
		link := &ds.InternalLinks[li]
		crossing := area.LocalToWorld(ds.BoundaryCentroid(link))
		cost := s.g[id] + s.entry[id].Distance(crossing)*mult
		f.relax(id, nodeKey{area: area.ID, region: link.ToRegion}, crossing, cost, edgeRef{link: li})
	}
}

func (f *finder) expandExternal(id int32, area *graph.Area, region *graph.Region) {
	s := f.s
	ds := area.Dataset
	mult := f.params.costMultiplier(area.Kind)
	for li := region.ExternalLinks.Start; li < region.ExternalLinks.End(); li++ {
		link := &ds.ExternalLinks[li]
		if !f.usable(link) {
			continue
		}
		from := area.LocalToWorld(link.FromPosition)
		to := area.LocalToWorld(link.ToPosition)
		cost := s.g[id] +
			s.entry[id].Distance(from)*mult +
			from.Distance(to)*mult +
			f.params.kindChangeCost(area.Kind, link.ToKind)
		f.relax(id, nodeKey{area: link.ToArea, region: link.ToRegion}, to, cost, edgeRef{external: true, link: li})
	}
}

// usable filters external links by target state and the request masks.
func (f *finder) usable(link *graph.ExternalLink) bool {
	target := f.snap.Area(link.ToArea)
	if target == nil || target.Kind != link.ToKind || target.Region(link.ToRegion) == nil {
		return false
	}
	if !f.params.AreaTypes.Has(target.Kind) || !f.params.Layers.Allows(target.Layer) {
		return false
	}
	if !f.snap.SceneLoaded(link.ToScene) {
		return false
	}
	if link.ManualLinkID != 0 && !f.snap.ManualLinkEnabled(link.ManualLinkID) {
		return false
	}
	return true
}

func (f *finder) relax(from int32, key nodeKey, entry math32.Vector3, cost float32, via edgeRef) {
	s := f.s
	to := s.node(key)
	if s.closed.Contains(uint32(to)) || cost >= s.g[to] {
		return
	}
	s.g[to] = cost
	s.entry[to] = entry
	s.parent[to] = from
	s.via[to] = via

	fScore := cost + f.heuristic(entry)
	if node, ok := s.inOpen[to]; ok {
		node.fScore = fScore
		heap.Fix(&s.open, node.index)
		return
	}
	f.push(to, fScore)
}

func (f *finder) relaxGoal(from int32, cost float32) {
	if cost >= f.goalG {
		return
	}
	f.goalG = cost
	f.goalParent = from
	if f.goalNode != nil {
		f.goalNode.fScore = cost
		heap.Fix(&f.s.open, f.goalNode.index)
		return
	}
	f.goalNode = newHeapNode(goalID, cost)
	heap.Push(&f.s.open, f.goalNode)
}

func (f *finder) push(id int32, fScore float32) {
	node := newHeapNode(id, fScore)
	heap.Push(&f.s.open, node)
	f.s.inOpen[id] = node
}

// portal is the boundary of the internal link a waypoint crosses.
type portal struct {
	area *graph.Area
	link *graph.InternalLink
}

// build turns the parent chain ending at last into typed waypoints.
func (f *finder) build(last int32, start, end graph.SampleResult, startPos, endPos math32.Vector3) {
	s := f.s

	// collect nodes start -> end
	chain := make([]int32, 0, 16)
	for id := last; id >= 0; id = s.parent[id] {
		chain = append(chain, id)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	startArea := f.snap.Area(start.AreaID)
	if startPos.Distance(start.Position) > movedEpsilon {
		f.add(Waypoint{Position: startPos, Up: start.Up, RegionID: -1}, nil, 0)
	}
	f.add(Waypoint{Position: start.Position, Up: start.Up, AreaID: start.AreaID, RegionID: start.RegionID}, nil, startArea.Kind)

	for _, id := range chain[1:] {
		parent := s.parent[id]
		fromKey, toKey := s.keys[parent], s.keys[id]
		from := f.snap.Area(fromKey.area)
		via := s.via[id]
		if !via.external {
			link := &from.Dataset.InternalLinks[via.link]
			f.add(Waypoint{
				Position: s.entry[id],
				Up:       from.Up(),
				AreaID:   from.ID,
				RegionID: toKey.region,
			}, &portal{area: from, link: link}, from.Kind)
			continue
		}
		link := &from.Dataset.ExternalLinks[via.link]
		to := f.snap.Area(toKey.area)
		f.add(Waypoint{
			Position: from.LocalToWorld(link.FromPosition),
			Up:       from.Up(),
			AreaID:   from.ID,
			RegionID: fromKey.region,
		}, nil, from.Kind)
		f.add(Waypoint{
			Position: s.entry[id],
			Up:       to.Up(),
			AreaID:   to.ID,
			RegionID: toKey.region,
		}, nil, to.Kind)
	}

	endArea := f.snap.Area(end.AreaID)
	f.add(Waypoint{Position: end.Position, Up: end.Up, AreaID: end.AreaID, RegionID: end.RegionID}, nil, endArea.Kind)
	if endPos.Distance(end.Position) > movedEpsilon {
		f.add(Waypoint{Position: endPos, Up: end.Up, RegionID: -1}, nil, 0)
	}

	assignTypes(s.waypoints, s.kinds)
}

func (f *finder) add(w Waypoint, p *portal, kind graph.AreaKind) {
	s := f.s
	s.waypoints = append(s.waypoints, w)
	if p != nil {
		s.portals = append(s.portals, *p)
	} else {
		s.portals = append(s.portals, portal{})
	}
	s.kinds = append(s.kinds, kind)
}

// assignTypes tags waypoints from area transitions: Enter when the previous
// waypoint is in another area, Exit when the next one is, Inside otherwise.
func assignTypes(waypoints []Waypoint, kinds []graph.AreaKind) {
	for i := range waypoints {
		w := &waypoints[i]
		switch {
		case w.AreaID <= 0:
			w.Type = Outside
		case i > 0 && waypoints[i-1].AreaID != w.AreaID:
			w.Type = enterType(kinds[i])
		case i+1 < len(waypoints) && waypoints[i+1].AreaID != w.AreaID:
			w.Type = exitType(kinds[i])
		default:
			w.Type = insideType(kinds[i])
		}
	}
}

// accumulate fills cumulative distances.
func accumulate(waypoints []Waypoint) {
	var total float32
	for i := range waypoints {
		if i > 0 {
			total += waypoints[i].Position.Distance(waypoints[i-1].Position)
		}
		waypoints[i].Distance = total
	}
}

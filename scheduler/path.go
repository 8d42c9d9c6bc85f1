package scheduler

import "github.com/o0olele/regionnav-go/search"

// Path is a completed search result. It is immutable and pooled: whoever
// holds it last calls Dispose.
type Path struct {
	requestID int64
	waypoints []search.Waypoint
	owner     *Scheduler
}

// RequestID returns the id of the request that produced the path, or
// InvalidRequestID for FindPathImmediate results.
func (p *Path) RequestID() int64 {
	return p.requestID
}

// Waypoints returns the waypoint list. Callers must not modify it.
func (p *Path) Waypoints() []search.Waypoint {
	return p.waypoints
}

// Len returns the number of waypoints.
func (p *Path) Len() int {
	return len(p.waypoints)
}

// Waypoint returns waypoint i.
func (p *Path) Waypoint(i int) *search.Waypoint {
	return &p.waypoints[i]
}

// Length returns the total path length.
func (p *Path) Length() float32 {
	return search.Length(p.waypoints)
}

// Dispose returns the path to its pool. Disposing twice is logged and ignored.
func (p *Path) Dispose() {
	if p == nil || p.owner == nil {
		return
	}
	p.owner.paths.Release(p)
}

func resetPath(p *Path) {
	p.requestID = InvalidRequestID
	clear(p.waypoints)
	p.waypoints = p.waypoints[:0]
}

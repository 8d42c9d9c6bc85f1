package agent

import (
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/search"
)

// Tick moves the waypoint cursor for the agent at position. The cursor
// advances past every waypoint the agent has reached or can skip; when none
// is and the target is out of sight, it may jump back to an earlier visible
// waypoint. Reaching the last waypoint drops the path but keeps pending
// requests.
func (f *Follower) Tick(position math32.Vector3) {
	if f.path == nil {
		return
	}
	n := f.path.Len()
	start := f.index

	for f.index < n-1 && f.canAdvance(position, f.index) {
		f.index++
	}
	if f.index != start {
		f.notifyIndex(start)
	} else if f.cfg.CheckBacktrack {
		f.tryBacktrack(position)
	}

	last := f.path.Waypoint(n - 1)
	if f.index == n-1 && f.within(position, last.Position) {
		f.arrived = f.hasDestination && f.within(position, f.destination)
		f.setPath(nil)
	}
}

func (f *Follower) notifyIndex(from int) {
	if f.events.OnIndexChanged != nil {
		f.events.OnIndexChanged(from, f.index)
	}
}

func (f *Follower) within(a, b math32.Vector3) bool {
	return a.Distance(b) <= f.cfg.AcceptanceRadius
}

func (f *Follower) approveAdvance(current, next *search.Waypoint) bool {
	return f.advance == nil || f.advance(current, next)
}

// canAdvance reports whether the target waypoint i is done with: either
// reached, or the one after it shares its kind and is directly reachable.
func (f *Follower) canAdvance(position math32.Vector3, i int) bool {
	target := f.path.Waypoint(i)
	next := f.path.Waypoint(i + 1)
	if f.within(position, target.Position) && f.approveAdvance(target, next) {
		return true
	}
	if f.caster == nil || !target.SameKind(next) {
		return false
	}
	if f.caster.Cast(position, next.Position, f.cfg.SweepRadius, f.cfg.StaticOnlySweep) {
		return false
	}
	return f.approveAdvance(target, next)
}

// tryBacktrack moves the cursor back at most once per tick, to the nearest
// earlier same-kind waypoint with a clear sweep.
func (f *Follower) tryBacktrack(position math32.Vector3) {
	if f.caster == nil || f.index == 0 {
		return
	}
	target := f.path.Waypoint(f.index)
	if f.within(position, target.Position) {
		return
	}
	if !f.caster.Cast(position, target.Position, f.cfg.SweepRadius, f.cfg.StaticOnlySweep) {
		// target still in sight
		return
	}
	for j := f.index - 1; j >= 0; j-- {
		candidate := f.path.Waypoint(j)
		if !candidate.SameKind(target) {
			continue
		}
		if f.caster.Cast(position, candidate.Position, f.cfg.SweepRadius, f.cfg.StaticOnlySweep) {
			continue
		}
		if f.backtrack != nil && !f.backtrack(target, candidate) {
			continue
		}
		f.setIndex(j)
		return
	}
}

// RemainingDistanceToNextWaypoint returns the distance to the target waypoint.
func (f *Follower) RemainingDistanceToNextWaypoint(position math32.Vector3) float32 {
	if f.path == nil {
		return 0
	}
	return position.Distance(f.path.Waypoint(f.index).Position)
}

// RemainingDistance returns the distance left along the path.
func (f *Follower) RemainingDistance(position math32.Vector3) float32 {
	if f.path == nil {
		return 0
	}
	target := f.path.Waypoint(f.index)
	last := f.path.Waypoint(f.path.Len() - 1)
	return position.Distance(target.Position) + last.Distance - target.Distance
}

// DesiredVelocity returns the velocity towards the target waypoint. Within
// the stopping distance of the path end the speed drops to what the agent
// can still brake from.
func (f *Follower) DesiredVelocity(position math32.Vector3, maxSpeed float32) math32.Vector3 {
	if f.path == nil || maxSpeed <= 0 {
		return math32.Vector3{}
	}
	if f.hasDestination && f.within(position, f.destination) {
		return math32.Vector3{}
	}
	dir := f.path.Waypoint(f.index).Position.Sub(position)
	if dir.LengthSquared() < math32.Epsilon*math32.Epsilon {
		return math32.Vector3{}
	}

	speed := maxSpeed
	if a := f.cfg.AccelerationEstimate; a > 0 {
		stopping := maxSpeed * maxSpeed / (2 * a)
		if remaining := f.RemainingDistance(position); remaining < stopping {
			speed = math32.Sqrt(2 * a * remaining)
		}
	}
	return dir.Normalize().Mul(speed)
}

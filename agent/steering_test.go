package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/agent"
	"github.com/o0olele/regionnav-go/geometry"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/scheduler"
	"github.com/o0olele/regionnav-go/search"
)

// limitCaster blocks every sweep ending beyond x = limit.
type limitCaster struct{ limit float32 }

func (c *limitCaster) Cast(_, to math32.Vector3, _ float32, _ bool) bool {
	return to.X > c.limit
}

// followCorridor returns a follower holding the straight corridor path from
// x = 0.5 to x = 3.5, whose waypoints sit at x = 0.5, 1, 2, 3 and 3.5.
func followCorridor(t *testing.T, opts ...agent.Option) (*agent.Follower, *manualRequester) {
	t.Helper()
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)
	f, err := agent.New(agentConfig(true), req, w.sampler, opts...)
	require.NoError(t, err)

	f.SetDestination(vec(3.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	req.deliver(1)
	require.NotNil(t, f.Path())
	require.Equal(t, 5, f.Path().Len())
	return f, req
}

func TestTick_AdvanceWithoutCaster(t *testing.T) {
	var moves [][2]int
	f, _ := followCorridor(t, agent.WithEvents(agent.Events{
		OnIndexChanged: func(from, to int) { moves = append(moves, [2]int{from, to}) },
	}))

	f.Tick(vec(0.5, 0.5, 0.5))
	assert.Equal(t, 1, f.Index(), "start waypoint reached")

	f.Tick(vec(0.7, 0.5, 0.5))
	assert.Equal(t, 1, f.Index())

	f.Tick(vec(1.05, 0.5, 0.5))
	assert.Equal(t, 2, f.Index())
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, moves)
}

func TestTick_SkipsVisibleWaypoints(t *testing.T) {
	caster := &limitCaster{limit: 2.5}
	f, _ := followCorridor(t, agent.WithCaster(caster))

	f.Tick(vec(0.5, 0.5, 0.5))
	assert.Equal(t, 2, f.Index(), "waypoint at x=1 skipped, x=3 not visible")

	caster.limit = 10
	f.Tick(vec(1.5, 0.5, 0.5))
	assert.Equal(t, 4, f.Index())
	assert.NotNil(t, f.Path())
}

func TestTick_AdvancePredicate(t *testing.T) {
	f, _ := followCorridor(t,
		agent.WithCaster(geometry.NewObstacleSet()),
		agent.WithAdvancePredicate(func(current, next *search.Waypoint) bool {
			return next.Position.X < 2.5
		}),
	)
	f.Tick(vec(0.5, 0.5, 0.5))
	assert.Equal(t, 2, f.Index())
}

func TestTick_ObstacleBlocksSkip(t *testing.T) {
	wall := geometry.Obstacle{
		Bounds: geometry.AABB{Min: vec(1.4, 0, 0), Max: vec(1.6, 1, 1)},
		Static: true,
	}
	f, _ := followCorridor(t, agent.WithCaster(geometry.NewObstacleSet(wall)))

	f.Tick(vec(0.5, 0.5, 0.5))
	assert.Equal(t, 1, f.Index(), "sweep to x=2 hits the wall")
}

func TestTick_Backtrack(t *testing.T) {
	caster := &limitCaster{limit: 1.5}
	f, _ := followCorridor(t, agent.WithCaster(caster))

	f.Tick(vec(0.5, 0.5, 0.5))
	require.Equal(t, 1, f.Index())
	caster.limit = 2.5
	f.Tick(vec(1, 0.5, 0.5))
	require.Equal(t, 2, f.Index())

	// pushed back: the target at x=2 is hidden, x=1 is visible
	caster.limit = 1.1
	f.Tick(vec(1.2, 0.5, 0.5))
	assert.Equal(t, 1, f.Index())

	// target visible again: no further backtracking
	f.Tick(vec(0.8, 0.5, 0.5))
	assert.Equal(t, 1, f.Index())
}

func TestTick_BacktrackPredicateRejects(t *testing.T) {
	caster := &limitCaster{limit: 2.5}
	var asked []float32
	f, _ := followCorridor(t,
		agent.WithCaster(caster),
		agent.WithBacktrackPredicate(func(current, candidate *search.Waypoint) bool {
			asked = append(asked, candidate.Position.X)
			return false
		}),
	)
	f.Tick(vec(0.5, 0.5, 0.5))
	require.Equal(t, 2, f.Index())

	caster.limit = 1.1
	f.Tick(vec(1.2, 0.5, 0.5))
	assert.Equal(t, 2, f.Index())
	assert.InDeltaSlice(t, []float32{1, 0.5}, asked, 1e-4)
}

func TestTick_EndKeepsPending(t *testing.T) {
	f, req := followCorridor(t, agent.WithCaster(geometry.NewObstacleSet()))

	// a newer request is still outstanding when the path ends
	_, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	require.Equal(t, []int64{2}, f.PendingRequestIDs())

	f.Tick(vec(3.5, 0.5, 0.5))
	assert.Nil(t, f.Path())
	assert.True(t, f.Arrived())
	assert.Equal(t, agent.StatePending, f.State())
	assert.Equal(t, []int64{2}, f.PendingRequestIDs())
	assert.Empty(t, req.cancelled)
}

func TestRemainingDistanceAndVelocity(t *testing.T) {
	f, _ := followCorridor(t)
	assert.Equal(t, math32.Vector3{}, f.DesiredVelocity(vec(0.5, 0.5, 0.5), 0), "zero speed")

	f.Tick(vec(0.5, 0.5, 0.5))
	require.Equal(t, 1, f.Index())

	pos := vec(0.5, 0.5, 0.5)
	assert.InDelta(t, 0.5, f.RemainingDistanceToNextWaypoint(pos), 1e-4)
	assert.InDelta(t, 3, f.RemainingDistance(pos), 1e-3)

	v := f.DesiredVelocity(pos, 2)
	assert.InDelta(t, 2, v.X, 1e-4, "full speed outside the stopping distance")
	assert.InDelta(t, 0, v.Y, 1e-4)

	for _, p := range []math32.Vector3{vec(1, 0.5, 0.5), vec(2, 0.5, 0.5), vec(3, 0.5, 0.5)} {
		f.Tick(p)
	}
	require.Equal(t, 4, f.Index())

	// 0.2 left, stopping distance at 2 m/s and 8 m/s^2 is 0.25
	near := vec(3.3, 0.5, 0.5)
	v = f.DesiredVelocity(near, 2)
	assert.InDelta(t, math32.Sqrt(2*8*0.2), v.X, 1e-3)

	f.Stop()
	assert.Equal(t, math32.Vector3{}, f.DesiredVelocity(near, 2))
	assert.Zero(t, f.RemainingDistance(near))
	assert.Equal(t, agent.StateNoPath, f.State())
}

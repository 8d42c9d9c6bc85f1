package agent_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o0olele/regionnav-go/agent"
	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/graph/graphtest"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/scheduler"
	"github.com/o0olele/regionnav-go/search"
)

func vec(x, y, z float32) math32.Vector3 {
	return math32.Vector3{X: x, Y: y, Z: z}
}

type call struct {
	start, end       graph.SampleResult
	startPos, endPos math32.Vector3
	params           search.Params
	cb               scheduler.Callback
}

// manualRequester holds requests until the test delivers them, computing the
// path with a real scheduler at delivery time.
type manualRequester struct {
	t         *testing.T
	sched     *scheduler.Scheduler
	next      int64
	calls     map[int64]call
	submitted []int64
	cancelled []int64
}

func newManualRequester(t *testing.T, s *scheduler.Scheduler) *manualRequester {
	return &manualRequester{t: t, sched: s, next: 1, calls: make(map[int64]call)}
}

func (m *manualRequester) FindPath(start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params, cb scheduler.Callback) (int64, error) {
	id := m.next
	m.next++
	m.calls[id] = call{start, end, startPos, endPos, params, cb}
	m.submitted = append(m.submitted, id)
	return id, nil
}

func (m *manualRequester) Cancel(id int64, _ bool) bool {
	if _, ok := m.calls[id]; !ok {
		return false
	}
	delete(m.calls, id)
	m.cancelled = append(m.cancelled, id)
	return true
}

func (m *manualRequester) deliver(id int64) {
	m.t.Helper()
	c, ok := m.calls[id]
	require.True(m.t, ok, "request %d not outstanding", id)
	delete(m.calls, id)
	path, err := m.sched.FindPathImmediate(c.start, c.end, c.startPos, c.endPos, c.params)
	require.NoError(m.t, err)
	c.cb(id, path)
}

type world struct {
	graph   *graph.RegionGraph
	sched   *scheduler.Scheduler
	sampler *graph.BoundsSampler
}

// newWorld registers a 4-cell volume corridor spanning x in [0, 4].
func newWorld(t *testing.T, mode scheduler.Mode) *world {
	t.Helper()
	g := graph.NewRegionGraph()
	require.NoError(t, g.Register(1, graphtest.Corridor(graph.KindVolume, 4, 1), math32.IdentityTransform, 0, uuid.Nil))
	cfg := scheduler.DefaultConfig()
	cfg.Mode = mode
	cfg.PoolSize = 4
	s, err := scheduler.New(g, cfg)
	require.NoError(t, err)
	s.Start()
	t.Cleanup(s.Teardown)
	return &world{graph: g, sched: s, sampler: graph.NewBoundsSampler(g, 64)}
}

func agentConfig(keepPath bool) agent.Config {
	cfg := agent.DefaultConfig()
	cfg.AcceptanceRadius = 0.1
	cfg.SampleRadius = 0.25
	cfg.KeepPathWhileCalculating = keepPath
	cfg.SweepRadius = 0
	return cfg
}

func TestUpdatePath_ArrivesWithoutRequest(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)
	cfg := agentConfig(true)
	cfg.AcceptanceRadius = 1
	f, err := agent.New(cfg, req, w.sampler)
	require.NoError(t, err)

	f.SetDestination(vec(1, 0.5, 0.5))
	res, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, agent.ResultArrived, res)
	assert.True(t, f.Arrived())
	assert.Empty(t, req.submitted, "no request when already at the destination")
	assert.Equal(t, agent.StateNoPath, f.State())
}

func TestUpdatePath_Failures(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)

	var failures []int64
	f, err := agent.New(agentConfig(true), req, w.sampler, agent.WithEvents(agent.Events{
		OnPathFailed: func(id int64) { failures = append(failures, id) },
	}))
	require.NoError(t, err)

	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	assert.ErrorIs(t, err, agent.ErrNoDestination)

	f.SetDestination(vec(50, 0.5, 0.5)) // off the graph
	res, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, agent.ResultFailed, res)
	assert.Equal(t, []int64{scheduler.InvalidRequestID}, failures)
	assert.Empty(t, req.submitted)

	f.Close()
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	assert.ErrorIs(t, err, agent.ErrClosed)
}

func TestAntiStarvation_KeepsOldestPending(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)
	f, err := agent.New(agentConfig(true), req, w.sampler)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		f.SetDestination(vec(2+float32(i)*0.25, 0.5, 0.5))
		res, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
		require.NoError(t, err)
		require.Equal(t, agent.ResultRequested, res)

		pending := f.PendingRequestIDs()
		assert.LessOrEqual(t, len(pending), 2)
		assert.Equal(t, int64(1), pending[0], "oldest pending request is never dropped")
		assert.Equal(t, req.submitted[len(req.submitted)-1], pending[len(pending)-1])
	}
	assert.Equal(t, []int64{2, 3, 4, 5}, req.cancelled)
	assert.NotContains(t, req.cancelled, int64(1))
	assert.Equal(t, agent.StatePending, f.State())
}

func TestAntiStarvation_WithoutKeepPath(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)
	f, err := agent.New(agentConfig(false), req, w.sampler)
	require.NoError(t, err)

	f.SetDestination(vec(3.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	req.deliver(1)
	require.Equal(t, agent.StateActive, f.State())

	f.SetDestination(vec(2.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Nil(t, f.Path(), "current path dropped while recalculating")
	assert.Equal(t, []int64{2}, f.PendingRequestIDs())

	for _, x := range []float32{2, 1.5, 3} {
		f.SetDestination(vec(x, 0.5, 0.5))
		res, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
		require.NoError(t, err)
		assert.Equal(t, agent.ResultRequested, res)
		assert.Equal(t, []int64{2}, f.PendingRequestIDs(), "oldest pending request survives")
	}
	assert.Equal(t, []int64{1, 2}, req.submitted, "no request while one is outstanding")
	assert.Empty(t, req.cancelled)

	req.deliver(2)
	require.Equal(t, agent.StateActive, f.State())
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, f.PendingRequestIDs())
	assert.Nil(t, f.Path())
}

func TestPathReady_CancelsOlderPending(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	req := newManualRequester(t, w.sched)

	var ready, changed int
	f, err := agent.New(agentConfig(true), req, w.sampler, agent.WithEvents(agent.Events{
		OnPathReady:   func(*scheduler.Path) { ready++ },
		OnPathChanged: func(*scheduler.Path) { changed++ },
	}))
	require.NoError(t, err)

	f.SetDestination(vec(3.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, f.PendingRequestIDs())

	req.deliver(2)
	assert.Equal(t, []int64{1}, req.cancelled)
	assert.Empty(t, f.PendingRequestIDs())
	assert.Equal(t, agent.StateActive, f.State())
	assert.Zero(t, f.Index())
	assert.Equal(t, 1, ready)
	assert.Equal(t, 1, changed)
}

func TestScheduler_DeliversInOrder(t *testing.T) {
	w := newWorld(t, scheduler.ModeDeferred)
	f, err := agent.New(agentConfig(true), w.sched, w.sampler)
	require.NoError(t, err)

	f.SetDestination(vec(3.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	f.SetDestination(vec(2.5, 0.5, 0.5))
	_, err = f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	ids := f.PendingRequestIDs()
	require.Len(t, ids, 2)

	w.sched.Update()
	require.NotNil(t, f.Path())
	assert.Equal(t, ids[1], f.Path().RequestID(), "newest result wins")
	assert.Empty(t, f.PendingRequestIDs())

	f.Close()
	for _, ps := range w.sched.Stats().Pools {
		assert.Zero(t, ps.Live, "pool %s", ps.Name)
		assert.Zero(t, ps.Misuse, "pool %s", ps.Name)
	}
}

func TestImmediateMode_ResultBeforeID(t *testing.T) {
	w := newWorld(t, scheduler.ModeImmediate)
	f, err := agent.New(agentConfig(true), w.sched, w.sampler)
	require.NoError(t, err)

	f.SetDestination(vec(3.5, 0.5, 0.5))
	res, err := f.UpdatePath(vec(0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.Equal(t, agent.ResultRequested, res)
	assert.Equal(t, agent.StateActive, f.State())
	assert.Empty(t, f.PendingRequestIDs())
	assert.InDelta(t, 3, f.Path().Length(), 1e-3)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "pending", agent.StatePending.String())
	assert.Equal(t, "arrived", agent.ResultArrived.String())
	assert.Equal(t, "state(9)", agent.State(9).String())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, agent.DefaultConfig().Validate())

	cfg := agent.DefaultConfig()
	cfg.AcceptanceRadius = 0
	cfg.AreaTypes = 0
	err := cfg.Validate()
	assert.ErrorContains(t, err, "acceptance_radius")
	assert.ErrorContains(t, err, "area_types")

	_, err = agent.New(cfg, nil, nil)
	assert.Error(t, err)
}

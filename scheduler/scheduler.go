// Package scheduler queues path requests and runs them against the region
// graph, either inline, once per tick, or on background goroutines.
//
// The owner of the tick loop calls Update. Callbacks are always invoked on
// the goroutine calling FindPath (immediate mode) or Update, never on a
// search goroutine, and never while the scheduler lock is held, so a callback
// may submit or cancel requests.
package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/search"
)

// InvalidRequestID is returned by FindPath when a request is rejected.
const InvalidRequestID int64 = -1

var (
	ErrNoAreas          = errors.New("no areas registered")
	ErrMalformedRequest = errors.New("malformed path request")
	ErrStopped          = errors.New("scheduler torn down")
)

// Callback receives the result of a request. A nil path means no path was
// found or an area of the request disappeared. The callee owns the path and
// must Dispose it.
type Callback func(id int64, path *Path)

// SearchFunc runs one search. It defaults to search.Find.
type SearchFunc func(snap *graph.Snapshot, start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params, scratch *search.Scratch) ([]search.Waypoint, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scheduler) { s.logger = logging.OrNoOp(logger) }
}

// WithMetrics records scheduler metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSearchFunc replaces the search implementation.
func WithSearchFunc(fn SearchFunc) Option {
	return func(s *Scheduler) { s.searchFn = fn }
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Mode        string      `json:"mode"`
	Started     bool        `json:"started"`
	Tick        uint64      `json:"tick"`
	Queued      int         `json:"queued"`
	InFlight    int         `json:"in_flight"`
	Submitted   uint64      `json:"submitted"`
	Completed   uint64      `json:"completed"`
	Cancelled   uint64      `json:"cancelled"`
	ForcedJoins uint64      `json:"forced_joins"`
	Recoveries  uint64      `json:"recoveries"`
	Pools       []PoolStats `json:"pools"`
}

// Scheduler owns the pending queue and the in-flight searches.
type Scheduler struct {
	mu       sync.Mutex
	graph    *graph.RegionGraph
	cfg      Config
	logger   logging.Logger
	metrics  *Metrics
	searchFn SearchFunc

	nextID   int64
	tick     uint64
	started  bool
	tornDown bool

	queue    []*request
	inFlight []*request
	live     map[int64]*request

	requests  *Pool[request]
	paths     *Pool[Path]
	scratches *Pool[search.Scratch]

	unsubscribe func()

	submitted, completed, cancelled uint64
	forcedJoins, recoveries         uint64
}

// New creates a stopped scheduler over g.
func New(g *graph.RegionGraph, cfg Config, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	s := &Scheduler{
		graph:    g,
		cfg:      cfg,
		logger:   logging.NoOpLogger{},
		searchFn: search.Find,
		nextID:   1,
		live:     make(map[int64]*request),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.requests = NewPool("requests", cfg.PoolSize, func() *request { return &request{} }, (*request).reset, s.logger)
	s.paths = NewPool("paths", cfg.PoolSize, func() *Path { return &Path{owner: s, requestID: InvalidRequestID} }, resetPath, s.logger)
	s.scratches = NewPool("scratch", min(cfg.PoolSize, max(cfg.MaxConcurrent, 1)), search.NewScratch, (*search.Scratch).Reset, s.logger)
	return s, nil
}

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Start enables dispatching and subscribes to the graph's mutation guard.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.tornDown {
		return
	}
	s.started = true
	s.unsubscribe = s.graph.Guard().Subscribe(guardListener{s})
	s.logger.Info("scheduler started", "mode", s.cfg.Mode.String(), "max_concurrent", s.cfg.MaxConcurrent)
}

// Stop joins in-flight searches, puts their requests back at the front of the
// queue and stops dispatching. Nothing is failed; Start resumes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.requeueInFlightLocked()
	s.logger.Info("scheduler stopped", "queued", len(s.queue))
}

// Teardown stops the scheduler and releases every request without invoking
// callbacks. Later submissions fail with ErrStopped.
func (s *Scheduler) Teardown() {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.queue {
		delete(s.live, r.id)
		s.requests.Release(r)
	}
	s.queue = nil
	clear(s.live)
	s.tornDown = true
	s.metrics.setQueue(0, 0)
	s.logger.Info("scheduler torn down")
}

// validate rejects requests that can never run. Callers hold no lock.
func (s *Scheduler) validate(snap *graph.Snapshot, start, end graph.SampleResult, params *search.Params) error {
	if snap.AreaCount() == 0 {
		s.metrics.observeRejected("no_areas")
		return ErrNoAreas
	}
	if err := search.Validate(snap, start, end, params); err != nil {
		s.metrics.observeRejected("malformed")
		return fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}
	return nil
}

func (s *Scheduler) applyConfig(params search.Params) search.Params {
	if s.cfg.TighteningIterations >= 0 {
		params.TighteningIterations = s.cfg.TighteningIterations
	}
	return params
}

// FindPath submits a request. Rejected requests return InvalidRequestID and
// an error, and their callback is never invoked. In immediate mode the
// callback runs before FindPath returns unless the graph is mutating or the
// scheduler is stopped, in which case the request waits in the queue.
func (s *Scheduler) FindPath(start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params, cb Callback) (int64, error) {
	params = s.applyConfig(params)
	snap := s.graph.Snapshot()
	if err := s.validate(snap, start, end, &params); err != nil {
		return InvalidRequestID, err
	}

	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		s.metrics.observeRejected("stopped")
		return InvalidRequestID, ErrStopped
	}
	id := s.nextID
	s.nextID++
	s.submitted++
	s.metrics.observeSubmitted()

	if s.cfg.Mode == ModeImmediate && s.started && !s.graph.Guard().Active() {
		s.mu.Unlock()
		path, result := s.solve(snap, id, start, end, startPos, endPos, params, nil)
		s.mu.Lock()
		s.completed++
		s.mu.Unlock()
		s.metrics.observeCompleted(result)
		deliver(cb, id, path)
		return id, nil
	}

	r := s.requests.Acquire()
	r.id = id
	r.start, r.end = start, end
	r.startPos, r.endPos = startPos, endPos
	r.params = params
	r.callback = cb
	r.createdTick = s.tick
	r.state = stateQueued
	s.queue = append(s.queue, r)
	s.live[id] = r
	s.metrics.setQueue(len(s.queue), len(s.inFlight))
	s.mu.Unlock()
	return id, nil
}

// FindPathImmediate searches synchronously on the caller's goroutine,
// bypassing the queue. It returns nil without error when no path exists.
func (s *Scheduler) FindPathImmediate(start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params) (*Path, error) {
	params = s.applyConfig(params)
	snap := s.graph.Snapshot()
	if err := s.validate(snap, start, end, &params); err != nil {
		return nil, err
	}
	s.mu.Lock()
	tornDown := s.tornDown
	s.mu.Unlock()
	if tornDown {
		return nil, ErrStopped
	}
	path, _ := s.solve(snap, InvalidRequestID, start, end, startPos, endPos, params, nil)
	return path, nil
}

// Cancel withdraws a request. A queued request is dropped outright. A
// background search cannot be interrupted: its callback is detached and the
// request is released once the search returns. A result waiting for delivery
// in the current Update is released immediately. Cancelling an unknown or
// already finished id is a no-op reporting false.
func (s *Scheduler) Cancel(id int64, logIfMissing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live[id]
	if !ok {
		if logIfMissing {
			s.logger.Warn("cancel of unknown path request", "request", id)
		}
		return false
	}
	delete(s.live, id)
	s.cancelled++
	s.metrics.observeCancelled()

	switch r.state {
	case stateQueued:
		if i := slices.Index(s.queue, r); i >= 0 {
			s.queue = slices.Delete(s.queue, i, i+1)
		}
		s.requests.Release(r)
	case stateRunning:
		r.callback = nil
		r.cancelled = true
	case stateReady:
		r.cancelled = true
		if r.result != nil {
			s.paths.Release(r.result)
			r.result = nil
		}
	}
	s.metrics.setQueue(len(s.queue), len(s.inFlight))
	return true
}

// Pending reports whether id is queued, executing or awaiting delivery.
func (s *Scheduler) Pending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live[id]
	return ok
}

// Update runs one scheduling tick: background searches over budget are
// joined, finished results are delivered in request order, then queued
// requests are dispatched unless the graph is mutating.
func (s *Scheduler) Update() {
	s.mu.Lock()
	s.tick++
	var ready []*request

	if len(s.inFlight) > 0 {
		s.joinOverBudgetLocked()
		ready = s.collectFinishedLocked(ready)
	}

	if s.started && !s.graph.Guard().Active() {
		switch s.cfg.Mode {
		case ModeBackground:
			s.dispatchLocked()
		default:
			ready = s.runQueuedLocked(ready)
		}
	}
	s.metrics.setQueue(len(s.queue), len(s.inFlight))
	s.mu.Unlock()

	s.deliverReady(ready)
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Mode:        s.cfg.Mode.String(),
		Started:     s.started,
		Tick:        s.tick,
		Queued:      len(s.queue),
		InFlight:    len(s.inFlight),
		Submitted:   s.submitted,
		Completed:   s.completed,
		Cancelled:   s.cancelled,
		ForcedJoins: s.forcedJoins,
		Recoveries:  s.recoveries,
		Pools:       []PoolStats{s.requests.Stats(), s.paths.Stats(), s.scratches.Stats()},
	}
}

func (s *Scheduler) joinOverBudgetLocked() {
	for _, r := range s.inFlight {
		j := &r.job
		if j.finished() || s.tick-j.startedTick < uint64(s.cfg.MaxTicksBeforeJoin) {
			continue
		}
		begin := time.Now()
		res := j.join()
		s.forcedJoins++
		s.metrics.observeForcedJoin()
		s.logger.Warn("path search exceeded tick budget, joined",
			"request", r.id,
			"ticks", s.tick-j.startedTick,
			"queued_ticks", j.startedTick-r.createdTick,
			"blocked", time.Since(begin),
			"search", res.duration,
		)
	}
}

// collectFinishedLocked moves finished background searches to ready. Results
// are delivered in request order, so a finished search waits behind an
// older one still running.
func (s *Scheduler) collectFinishedLocked(ready []*request) []*request {
	kept := s.inFlight[:0]
	blocked := false
	for _, r := range s.inFlight {
		if blocked || !r.job.finished() {
			blocked = true
			kept = append(kept, r)
			continue
		}
		path, result := s.finishJobLocked(r)
		if r.cancelled {
			if path != nil {
				s.paths.Release(path)
			}
			s.requests.Release(r)
			continue
		}
		r.state = stateReady
		r.result = path
		r.outcome = result
		ready = append(ready, r)
	}
	clear(s.inFlight[len(kept):])
	s.inFlight = kept
	return ready
}

func (s *Scheduler) dispatchLocked() {
	snap := s.graph.Snapshot()
	for len(s.queue) > 0 && len(s.inFlight) < s.cfg.MaxConcurrent {
		r := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]

		r.state = stateRunning
		r.job.start(snap, s.scratches.Acquire(), s.tick, s.searchFn, r)
		s.inFlight = append(s.inFlight, r)
	}
}

// runQueuedLocked solves every queued request inline, in FIFO order.
func (s *Scheduler) runQueuedLocked(ready []*request) []*request {
	if len(s.queue) == 0 {
		return ready
	}
	snap := s.graph.Snapshot()
	queue := s.queue
	s.queue = nil
	for _, r := range queue {
		path, result := s.solve(snap, r.id, r.start, r.end, r.startPos, r.endPos, r.params, nil)
		r.state = stateReady
		r.result = path
		r.outcome = result
		ready = append(ready, r)
	}
	return ready
}

// deliverReady invokes callbacks without holding the lock. A callback may
// cancel a later entry of the same batch.
func (s *Scheduler) deliverReady(ready []*request) {
	for _, r := range ready {
		s.mu.Lock()
		if r.cancelled {
			s.requests.Release(r)
			s.mu.Unlock()
			continue
		}
		id, cb, path, outcome := r.id, r.callback, r.result, r.outcome
		delete(s.live, id)
		s.completed++
		s.requests.Release(r)
		s.mu.Unlock()

		s.metrics.observeCompleted(outcome)
		deliver(cb, id, path)
	}
}

func deliver(cb Callback, id int64, path *Path) {
	if cb == nil {
		path.Dispose()
		return
	}
	cb(id, path)
}

// solve runs a search inline with a pooled scratch buffer.
func (s *Scheduler) solve(snap *graph.Snapshot, id int64, start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params, scratch *search.Scratch) (*Path, string) {
	if scratch == nil {
		scratch = s.scratches.Acquire()
		defer s.scratches.Release(scratch)
	}
	begin := time.Now()
	waypoints, err := s.searchFn(snap, start, end, startPos, endPos, params, scratch)
	s.metrics.observeSearch(time.Since(begin), len(waypoints))
	return s.toPath(id, waypoints, err)
}

func (s *Scheduler) finishJobLocked(r *request) (*Path, string) {
	j := &r.job
	res := j.join()
	s.scratches.Release(j.scratch)
	s.metrics.observeSearch(res.duration, len(res.waypoints))
	path, result := s.toPath(r.id, res.waypoints, res.err)
	j.clear()
	return path, result
}

func (s *Scheduler) toPath(id int64, waypoints []search.Waypoint, err error) (*Path, string) {
	if err != nil {
		// the graph changed between submission and execution
		s.logger.Debug("path request failed at execution", "request", id, "error", err)
		return nil, "stale"
	}
	if len(waypoints) == 0 {
		return nil, "no_path"
	}
	p := s.paths.Acquire()
	p.requestID = id
	p.waypoints = append(p.waypoints[:0], waypoints...)
	return p, "found"
}

// requeueInFlightLocked joins every background search, discards the results
// and puts the requests back at the queue front in their original order.
// Detached (cancelled) requests are released instead.
func (s *Scheduler) requeueInFlightLocked() int {
	if len(s.inFlight) == 0 {
		return 0
	}
	requeue := make([]*request, 0, len(s.inFlight)+len(s.queue))
	for _, r := range s.inFlight {
		r.job.join()
		s.scratches.Release(r.job.scratch)
		r.job.clear()
		if r.cancelled {
			s.requests.Release(r)
			continue
		}
		r.state = stateQueued
		requeue = append(requeue, r)
	}
	clear(s.inFlight)
	s.inFlight = s.inFlight[:0]
	n := len(requeue)
	s.queue = append(requeue, s.queue...)
	s.metrics.setQueue(len(s.queue), 0)
	return n
}

// guardListener keeps the scheduler's reaction to graph mutation off its public API.
type guardListener struct{ s *Scheduler }

func (l guardListener) MutationBegin() {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.requeueInFlightLocked(); n > 0 {
		s.recoveries += uint64(n)
		s.metrics.observeRecovery(n)
		s.logger.Debug("graph mutation, in-flight searches requeued", "count", n)
	}
}

func (l guardListener) MutationEnd() {}

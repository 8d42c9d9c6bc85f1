// Package agent drives one entity along scheduler paths: it requests paths
// for a destination, keeps the number of outstanding requests bounded and
// walks a waypoint cursor as the entity moves.
//
// A Follower is not safe for concurrent use. Drive it from the goroutine that
// calls Scheduler.Update so path callbacks and ticks never overlap.
package agent

import (
	"errors"
	"fmt"
	"slices"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/logging"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/scheduler"
	"github.com/o0olele/regionnav-go/search"
)

var (
	ErrNoDestination = errors.New("no destination set")
	ErrClosed        = errors.New("follower closed")
)

// State is derived from the follower's path and pending requests.
type State uint8

const (
	StateNoPath State = iota
	StatePending
	StateActive
)

func (s State) String() string {
	switch s {
	case StateNoPath:
		return "no_path"
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// UpdateResult is the outcome of UpdatePath.
type UpdateResult uint8

const (
	// ResultRequested means a path request was submitted.
	ResultRequested UpdateResult = iota
	// ResultArrived means the agent is already at the destination.
	ResultArrived
	// ResultFailed means no request could be made.
	ResultFailed
)

func (r UpdateResult) String() string {
	switch r {
	case ResultRequested:
		return "requested"
	case ResultArrived:
		return "arrived"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// PathRequester submits and cancels path requests. *scheduler.Scheduler implements it.
type PathRequester interface {
	FindPath(start, end graph.SampleResult, startPos, endPos math32.Vector3, params search.Params, cb scheduler.Callback) (int64, error)
	Cancel(id int64, logIfMissing bool) bool
}

// Caster sweeps a sphere between two points and reports whether it is
// blocked. *geometry.ObstacleSet implements it.
type Caster interface {
	Cast(from, to math32.Vector3, radius float32, staticOnly bool) bool
}

// AdvancePredicate approves moving the cursor from waypoint current to next.
type AdvancePredicate func(current, next *search.Waypoint) bool

// BacktrackPredicate approves moving the cursor back from current to candidate.
type BacktrackPredicate func(current, candidate *search.Waypoint) bool

// Events are optional notifications, all invoked synchronously.
type Events struct {
	OnPathReady    func(path *scheduler.Path)
	OnPathFailed   func(id int64)
	OnPathChanged  func(path *scheduler.Path)
	OnIndexChanged func(from, to int)
}

// Option configures a Follower.
type Option func(*Follower)

// WithCaster enables sweep checks for waypoint skipping and backtracking.
func WithCaster(c Caster) Option {
	return func(f *Follower) { f.caster = c }
}

// WithAdvancePredicate sets the predicate consulted before advancing.
func WithAdvancePredicate(p AdvancePredicate) Option {
	return func(f *Follower) { f.advance = p }
}

// WithBacktrackPredicate sets the predicate consulted before backtracking.
func WithBacktrackPredicate(p BacktrackPredicate) Option {
	return func(f *Follower) { f.backtrack = p }
}

// WithEvents sets the event handlers.
func WithEvents(e Events) Option {
	return func(f *Follower) { f.events = e }
}

// WithLogger sets the follower logger.
func WithLogger(logger logging.Logger) Option {
	return func(f *Follower) { f.logger = logging.OrNoOp(logger) }
}

// Follower owns at most one active path and a bounded list of pending
// requests for one agent.
type Follower struct {
	cfg       Config
	requester PathRequester
	sampler   graph.Sampler
	caster    Caster
	advance   AdvancePredicate
	backtrack BacktrackPredicate
	events    Events
	logger    logging.Logger

	destination    math32.Vector3
	hasDestination bool

	path    *scheduler.Path
	index   int
	pending []int64 // oldest first
	arrived bool
	closed  bool

	// set while FindPath runs, so a result delivered before the id is known
	// is attributed to the request being submitted
	submitting     bool
	deliveredEarly bool
}

// New creates a follower.
func New(cfg Config, requester PathRequester, sampler graph.Sampler, opts ...Option) (*Follower, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if requester == nil || sampler == nil {
		return nil, errors.New("agent needs a path requester and a sampler")
	}
	f := &Follower{
		cfg:       cfg,
		requester: requester,
		sampler:   sampler,
		logger:    logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SetDestination sets the point UpdatePath requests paths to.
func (f *Follower) SetDestination(pos math32.Vector3) {
	f.destination = pos
	f.hasDestination = true
	f.arrived = false
}

// Destination returns the destination and whether one is set.
func (f *Follower) Destination() (math32.Vector3, bool) {
	return f.destination, f.hasDestination
}

// State returns Active with a path, Pending with outstanding requests and
// NoPath otherwise.
func (f *Follower) State() State {
	switch {
	case f.path != nil:
		return StateActive
	case len(f.pending) > 0:
		return StatePending
	default:
		return StateNoPath
	}
}

// Path returns the active path. It stays owned by the follower.
func (f *Follower) Path() *scheduler.Path {
	return f.path
}

// Index returns the waypoint the agent is heading to.
func (f *Follower) Index() int {
	return f.index
}

// Arrived reports whether the agent reached its destination.
func (f *Follower) Arrived() bool {
	return f.arrived
}

// PendingRequestIDs returns the outstanding request ids, oldest first.
func (f *Follower) PendingRequestIDs() []int64 {
	return slices.Clone(f.pending)
}

// UpdatePath requests a path from position to the destination.
func (f *Follower) UpdatePath(position math32.Vector3) (UpdateResult, error) {
	if f.closed {
		return ResultFailed, ErrClosed
	}
	if !f.hasDestination {
		return ResultFailed, ErrNoDestination
	}
	if position.Distance(f.destination) <= f.cfg.AcceptanceRadius {
		f.Stop()
		f.arrived = true
		return ResultArrived, nil
	}

	start := f.sampler.Sample(position, f.cfg.SampleRadius, f.cfg.AreaTypes, f.cfg.Layers, f.cfg.Priority)
	end := f.sampler.Sample(f.destination, f.cfg.SampleRadius, f.cfg.AreaTypes, f.cfg.Layers, f.cfg.Priority)
	if !start.Valid() || !end.Valid() {
		f.logger.Debug("path endpoints not on the graph", "position", position, "destination", f.destination)
		f.failed(scheduler.InvalidRequestID)
		return ResultFailed, nil
	}

	if !f.makeRoom() {
		f.arrived = false
		return ResultRequested, nil
	}

	f.submitting = true
	f.deliveredEarly = false
	id, err := f.requester.FindPath(start, end, position, f.destination, f.cfg.Params, f.onResult)
	f.submitting = false
	if err != nil {
		f.logger.Warn("path request rejected", "error", err)
		f.failed(scheduler.InvalidRequestID)
		return ResultFailed, err
	}
	if !f.deliveredEarly {
		f.pending = append(f.pending, id)
	}
	f.arrived = false
	return ResultRequested, nil
}

// makeRoom applies the pending cap before a new request is submitted and
// reports whether there is room for it. The oldest pending request always
// survives so a flood of destination changes cannot starve the agent of
// paths. With keep-path the newer ones are cancelled. Without it the current
// path goes and the new request is not submitted while one is outstanding;
// the caller asks again once that result lands.
func (f *Follower) makeRoom() bool {
	if !f.cfg.KeepPathWhileCalculating {
		f.setPath(nil)
		if len(f.pending) > 1 {
			f.cancelPending(f.pending[1:])
			f.pending = f.pending[:1]
		}
		return len(f.pending) == 0
	}
	keep := f.cfg.maxPending() - 1
	if len(f.pending) > keep {
		f.cancelPending(f.pending[keep:])
		f.pending = f.pending[:keep]
	}
	return true
}

func (f *Follower) cancelPending(ids []int64) {
	for _, id := range ids {
		f.requester.Cancel(id, true)
	}
}

func (f *Follower) onResult(id int64, path *scheduler.Path) {
	if f.closed {
		path.Dispose()
		return
	}
	idx := slices.Index(f.pending, id)
	switch {
	case idx >= 0:
	case f.submitting:
		// the request being submitted, newer than everything pending
		f.deliveredEarly = true
		idx = len(f.pending)
	default:
		f.logger.Debug("result for a request no longer pending", "request", id)
		path.Dispose()
		return
	}

	// older requests lost their point
	f.cancelPending(f.pending[:idx])
	if idx < len(f.pending) {
		f.pending = slices.Delete(f.pending, 0, idx+1)
	} else {
		f.pending = f.pending[:0]
	}

	if path == nil || path.Len() == 0 {
		path.Dispose()
		f.failed(id)
		return
	}
	f.setPath(path)
	if f.events.OnPathReady != nil {
		f.events.OnPathReady(path)
	}
}

func (f *Follower) failed(id int64) {
	if f.events.OnPathFailed != nil {
		f.events.OnPathFailed(id)
	}
}

// setPath replaces the active path, disposing the previous one.
func (f *Follower) setPath(path *scheduler.Path) {
	if f.path == nil && path == nil {
		return
	}
	old := f.path
	f.path = path
	if old != nil && old != path {
		old.Dispose()
	}
	f.setIndex(0)
	if f.events.OnPathChanged != nil {
		f.events.OnPathChanged(path)
	}
}

func (f *Follower) setIndex(i int) {
	if i == f.index {
		return
	}
	from := f.index
	f.index = i
	if f.events.OnIndexChanged != nil {
		f.events.OnIndexChanged(from, i)
	}
}

// Stop drops the active path and cancels every pending request.
func (f *Follower) Stop() {
	f.cancelPending(f.pending)
	f.pending = f.pending[:0]
	f.setPath(nil)
}

// Close stops the follower. Results arriving later are disposed.
func (f *Follower) Close() {
	f.Stop()
	f.closed = true
	f.hasDestination = false
}

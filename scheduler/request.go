package scheduler

import (
	"time"

	"github.com/o0olele/regionnav-go/graph"
	"github.com/o0olele/regionnav-go/math32"
	"github.com/o0olele/regionnav-go/search"
)

type requestState uint8

const (
	stateQueued requestState = iota
	stateRunning
	stateReady
)

type request struct {
	id               int64
	start, end       graph.SampleResult
	startPos, endPos math32.Vector3
	params           search.Params
	callback         Callback
	createdTick      uint64

	state     requestState
	cancelled bool
	result    *Path
	outcome   string
	job       job
}

func (r *request) reset() {
	r.id = InvalidRequestID
	r.start, r.end = graph.SampleResult{}, graph.SampleResult{}
	r.startPos, r.endPos = math32.Vector3{}, math32.Vector3{}
	r.params = search.Params{}
	r.callback = nil
	r.createdTick = 0
	r.state = stateQueued
	r.cancelled = false
	r.result = nil
	r.outcome = ""
	r.job.clear()
}

// job is one background search. The goroutine only touches the done channel
// and the result it was started with, never the job itself, so a job can be
// cleared and restarted while an earlier goroutine is still exiting.
type job struct {
	done        chan struct{}
	res         *jobResult
	startedTick uint64
	scratch     *search.Scratch
}

// jobResult is written by the search goroutine and read only after done is closed.
type jobResult struct {
	waypoints []search.Waypoint
	err       error
	duration  time.Duration
}

func (j *job) start(snap *graph.Snapshot, scratch *search.Scratch, tick uint64, fn SearchFunc, r *request) {
	done := make(chan struct{})
	res := &jobResult{}
	j.done, j.res = done, res
	j.startedTick = tick
	j.scratch = scratch

	start, end := r.start, r.end
	startPos, endPos := r.startPos, r.endPos
	params := r.params
	go func() {
		defer close(done)
		begin := time.Now()
		res.waypoints, res.err = fn(snap, start, end, startPos, endPos, params, scratch)
		res.duration = time.Since(begin)
	}()
}

// finished reports whether the search returned. A job never started counts as finished.
func (j *job) finished() bool {
	if j.done == nil {
		return true
	}
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// join waits for the search and returns its result.
func (j *job) join() *jobResult {
	if j.done == nil {
		return &jobResult{}
	}
	<-j.done
	return j.res
}

func (j *job) clear() {
	j.done = nil
	j.res = nil
	j.scratch = nil
	j.startedTick = 0
}

package scheduler

import (
	"sync"

	"github.com/o0olele/regionnav-go/logging"
)

// PoolStats are the counters of one pool.
type PoolStats struct {
	Name     string `json:"name"`
	Created  int    `json:"created"`
	Free     int    `json:"free"`
	Live     int    `json:"live"`
	Misuse   int    `json:"misuse"`
	Acquired uint64 `json:"acquired"`
	Released uint64 `json:"released"`
}

// Pool is a typed free list with a reset hook. Objects are constructed once
// and reset on release. Releasing an object twice, or one the pool never
// handed out, is logged and ignored.
type Pool[T any] struct {
	mu     sync.Mutex
	name   string
	free   []*T
	live   map[*T]struct{}
	newFn  func() *T
	reset  func(*T)
	logger logging.Logger
	stats  PoolStats
}

// NewPool creates a pool holding size prebuilt objects.
func NewPool[T any](name string, size int, newFn func() *T, reset func(*T), logger logging.Logger) *Pool[T] {
	p := &Pool[T]{
		name:   name,
		free:   make([]*T, 0, size),
		live:   make(map[*T]struct{}),
		newFn:  newFn,
		reset:  reset,
		logger: logging.OrNoOp(logger),
	}
	for i := 0; i < size; i++ {
		p.free = append(p.free, newFn())
	}
	p.stats.Created = size
	return p
}

// Acquire returns a reset object.
func (p *Pool[T]) Acquire() *T {
	p.mu.Lock()
	defer p.mu.Unlock()

	var v *T
	if n := len(p.free); n > 0 {
		v = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	} else {
		v = p.newFn()
		p.stats.Created++
	}
	p.live[v] = struct{}{}
	p.stats.Acquired++
	return v
}

// Release resets v and returns it to the pool. It reports false on misuse.
func (p *Pool[T]) Release(v *T) bool {
	if v == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.live[v]; !ok {
		p.stats.Misuse++
		p.logger.Warn("pool release of an object that is not live", "pool", p.name)
		return false
	}
	delete(p.live, v)
	if p.reset != nil {
		p.reset(v)
	}
	p.free = append(p.free, v)
	p.stats.Released++
	return true
}

// Stats returns the pool counters.
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Name = p.name
	s.Free = len(p.free)
	s.Live = len(p.live)
	return s
}

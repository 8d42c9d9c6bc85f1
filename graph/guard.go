package graph

import (
	"sync"

	"github.com/o0olele/regionnav-go/logging"
)

// GuardListener is notified when graph mutation starts and ends.
type GuardListener interface {
	// MutationBegin runs when the guard goes from idle to active, before the mutation.
	MutationBegin()
	// MutationEnd runs when the last nested mutation finishes.
	MutationEnd()
}

// MutationGuard is a reentrant "graph is being mutated" counter.
// Listeners are called synchronously on the goroutine that flips the state.
type MutationGuard struct {
	mu        sync.Mutex
	depth     int
	listeners []GuardListener
	logger    logging.Logger
}

// NewMutationGuard creates an idle guard.
func NewMutationGuard(logger logging.Logger) *MutationGuard {
	return &MutationGuard{logger: logging.OrNoOp(logger)}
}

// Subscribe registers a listener. It returns a func that removes it.
func (g *MutationGuard) Subscribe(l GuardListener) func() {
	g.mu.Lock()
	g.listeners = append(g.listeners, l)
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, existing := range g.listeners {
			if existing == l {
				g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

// Begin enters a mutation scope.
func (g *MutationGuard) Begin() {
	g.mu.Lock()
	g.depth++
	first := g.depth == 1
	listeners := g.snapshotListeners(first)
	g.mu.Unlock()

	for _, l := range listeners {
		l.MutationBegin()
	}
}

// End leaves a mutation scope. Unbalanced calls are logged and ignored.
func (g *MutationGuard) End() {
	g.mu.Lock()
	if g.depth == 0 {
		g.mu.Unlock()
		g.logger.Warn("mutation guard end without begin")
		return
	}
	g.depth--
	last := g.depth == 0
	listeners := g.snapshotListeners(last)
	g.mu.Unlock()

	for _, l := range listeners {
		l.MutationEnd()
	}
}

// Active reports whether a mutation is in progress.
func (g *MutationGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth > 0
}

// Depth returns the nesting depth.
func (g *MutationGuard) Depth() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.depth
}

func (g *MutationGuard) snapshotListeners(notify bool) []GuardListener {
	if !notify || len(g.listeners) == 0 {
		return nil
	}
	return append([]GuardListener(nil), g.listeners...)
}

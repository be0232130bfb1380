package guard

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned for an evaluation that a newer navigation replaced.
var ErrSuperseded = errors.New("navigation superseded")

// Navigator serializes the route transitions of one client. Starting a
// navigation cancels the one in flight, whose decision is discarded.
type Navigator struct {
	guard  *Guard
	routes []Route

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewNavigator creates a Navigator over a route table. A nil table uses DefaultRoutes.
func NewNavigator(g *Guard, routes []Route) *Navigator {
	if routes == nil {
		routes = DefaultRoutes
	}
	return &Navigator{guard: g, routes: routes}
}

// Navigate evaluates the transition to path.
func (n *Navigator) Navigate(ctx context.Context, path string) (Decision, error) {
	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	n.seq++
	seq := n.seq
	n.cancel = cancel
	n.mu.Unlock()
	defer cancel()

	decision := n.guard.Evaluate(ctx, Lookup(n.routes, path))

	n.mu.Lock()
	defer n.mu.Unlock()
	if seq != n.seq {
		return Decision{}, ErrSuperseded
	}
	n.cancel = nil
	return decision, nil
}

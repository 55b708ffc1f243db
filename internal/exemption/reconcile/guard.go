package reconcile

import (
	"context"
	"sync/atomic"
)

type guardKey struct{}

// Guard breaks the cycle "correct live state, recalculate, recalculation
// triggers reconcile, reconcile recalculates again". It travels with one
// call chain's context and is never shared across requests.
type Guard struct {
	active atomic.Bool
}

// WithGuard attaches a fresh guard unless ctx already carries one.
func WithGuard(ctx context.Context) context.Context {
	if guardFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, guardKey{}, &Guard{})
}

// Nested marks ctx as already inside a recalculation, so passes run with it
// correct live state but never recalculate. Used when the host re-enters
// from its own recalculation across a process boundary.
func Nested(ctx context.Context) context.Context {
	g := &Guard{}
	g.active.Store(true)
	return context.WithValue(ctx, guardKey{}, g)
}

// InRecalculation reports whether ctx is inside a guarded recalculation.
func InRecalculation(ctx context.Context) bool {
	g := guardFrom(ctx)
	return g != nil && g.active.Load()
}

func guardFrom(ctx context.Context) *Guard {
	g, _ := ctx.Value(guardKey{}).(*Guard)
	return g
}

func (g *Guard) enter() bool {
	return g.active.CompareAndSwap(false, true)
}

func (g *Guard) exit() {
	g.active.Store(false)
}

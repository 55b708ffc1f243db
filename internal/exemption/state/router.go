package state

import (
	"context"
	"fmt"

	"vatguard/pkg/platform/sentinel"
)

// Router sends each scope to its own backend, so sessions can live in Redis
// while customer and order records go to PostgreSQL.
type Router struct {
	routes map[Scope]Store
}

// NewRouter creates a router with no routes.
func NewRouter() *Router {
	return &Router{routes: make(map[Scope]Store)}
}

// Route binds scope to backend and returns the router for chaining.
func (r *Router) Route(scope Scope, backend Store) *Router {
	r.routes[scope] = backend
	return r
}

func (r *Router) backend(scope Scope) (Store, error) {
	s, ok := r.routes[scope]
	if !ok || s == nil {
		return nil, fmt.Errorf("no backend for %s scope: %w", scope, sentinel.ErrUnavailable)
	}
	return s, nil
}

func (r *Router) Read(ctx context.Context, scope Scope, key Key) (string, bool, error) {
	s, err := r.backend(scope)
	if err != nil {
		return "", false, err
	}
	return s.Read(ctx, scope, key)
}

func (r *Router) Write(ctx context.Context, scope Scope, key Key, value string) error {
	s, err := r.backend(scope)
	if err != nil {
		return err
	}
	return s.Write(ctx, scope, key, value)
}

func (r *Router) Clear(ctx context.Context, scope Scope, owner string) error {
	s, err := r.backend(scope)
	if err != nil {
		return err
	}
	return s.Clear(ctx, scope, owner)
}

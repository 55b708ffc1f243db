// Package state is the only boundary between the exemption engine and
// persistence. It offers get/set over three scopes and no business logic.
//
//   - session: ephemeral, authoritative before an order exists, cleared at session end
//   - customer: durable profile cache used for pre-filling, never authoritative
//   - order: durable, authoritative once an order exists
package state

import (
	"context"
	"fmt"
)

// Scope identifies the owner class of a value.
type Scope string

const (
	ScopeSession  Scope = "session"
	ScopeCustomer Scope = "customer"
	ScopeOrder    Scope = "order"
)

// Valid reports whether s is one of the three known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSession, ScopeCustomer, ScopeOrder:
		return true
	default:
		return false
	}
}

func (s Scope) String() string {
	return string(s)
}

// Key addresses one named value of one owner (session, customer or order id).
type Key struct {
	Owner string
	Name  string
}

func (k Key) String() string {
	return k.Owner + "/" + k.Name
}

// Store reads and writes scoped values. Read returns ok=false for absent
// values. A completed Write is visible to a subsequent Read in the same process.
type Store interface {
	Read(ctx context.Context, scope Scope, key Key) (string, bool, error)
	Write(ctx context.Context, scope Scope, key Key, value string) error
	// Clear removes every value of owner in scope.
	Clear(ctx context.Context, scope Scope, owner string) error
}

func validate(scope Scope, owner string) error {
	if !scope.Valid() {
		return fmt.Errorf("unknown scope %q", scope)
	}
	if owner == "" {
		return fmt.Errorf("%s owner is required", scope)
	}
	return nil
}

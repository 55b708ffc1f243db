package state

import (
	"context"
	"errors"
	"fmt"
)

// Well-known value names shared by every scope.
const (
	NameIdentifier = "vat_number"
	NameExempt     = "vat_exempt"
)

// Flag is the tri-state persisted exemption marker.
type Flag string

const (
	FlagUnset Flag = ""
	FlagYes   Flag = "yes"
	FlagNo    Flag = "no"
)

// FlagOf converts a verdict into its persisted form.
func FlagOf(exempt bool) Flag {
	if exempt {
		return FlagYes
	}
	return FlagNo
}

// Bool reports the flag as a boolean and whether it was explicitly set.
func (f Flag) Bool() (exempt, set bool) {
	switch f {
	case FlagYes:
		return true, true
	case FlagNo:
		return false, true
	default:
		return false, false
	}
}

// Record is the identifier and exemption flag persisted for one owner.
type Record struct {
	Identifier string
	Exempt     Flag
}

// Empty reports whether nothing was persisted for the owner.
func (r Record) Empty() bool {
	return r.Identifier == "" && r.Exempt == FlagUnset
}

// Records loads and saves typed records over a Store.
type Records struct {
	store Store
}

// NewRecords wraps store.
func NewRecords(store Store) *Records {
	return &Records{store: store}
}

// Load reads the record of owner in scope. Absent values yield a zero Record.
func (r *Records) Load(ctx context.Context, scope Scope, owner string) (Record, error) {
	var rec Record
	id, _, err := r.store.Read(ctx, scope, Key{Owner: owner, Name: NameIdentifier})
	if err != nil {
		return Record{}, err
	}
	rec.Identifier = id

	flag, _, err := r.store.Read(ctx, scope, Key{Owner: owner, Name: NameExempt})
	if err != nil {
		return Record{}, err
	}
	switch Flag(flag) {
	case FlagYes, FlagNo:
		rec.Exempt = Flag(flag)
	}
	return rec, nil
}

// LoadIdentifier reads only the identifier. found distinguishes an owner that
// stored an empty identifier (a cleared field) from one that never stored any.
func (r *Records) LoadIdentifier(ctx context.Context, scope Scope, owner string) (identifier string, found bool, err error) {
	return r.store.Read(ctx, scope, Key{Owner: owner, Name: NameIdentifier})
}

// SaveIdentifier writes the identifier value only. An empty identifier is
// stored as such and marks the field as cleared.
func (r *Records) SaveIdentifier(ctx context.Context, scope Scope, owner, identifier string) error {
	return r.store.Write(ctx, scope, Key{Owner: owner, Name: NameIdentifier}, identifier)
}

// SaveFlag writes the exemption flag only.
func (r *Records) SaveFlag(ctx context.Context, scope Scope, owner string, flag Flag) error {
	if flag == FlagUnset {
		return fmt.Errorf("refusing to persist an unset flag for %s %s", scope, owner)
	}
	return r.store.Write(ctx, scope, Key{Owner: owner, Name: NameExempt}, string(flag))
}

// Save writes both values. Both writes are attempted; errors are joined.
func (r *Records) Save(ctx context.Context, scope Scope, owner string, rec Record) error {
	var errs []error
	if rec.Identifier != "" {
		if err := r.SaveIdentifier(ctx, scope, owner, rec.Identifier); err != nil {
			errs = append(errs, err)
		}
	}
	if rec.Exempt != FlagUnset {
		if err := r.SaveFlag(ctx, scope, owner, rec.Exempt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes everything persisted for owner in scope.
func (r *Records) Clear(ctx context.Context, scope Scope, owner string) error {
	return r.store.Clear(ctx, scope, owner)
}

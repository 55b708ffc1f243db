package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vatguard/pkg/requestcontext"
)

// Schema creates the table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS exemption_state (
	scope      TEXT        NOT NULL,
	owner      TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scope, owner, name)
)`

// PostgresStore persists durable scopes (customer profile, order record).
// Writes are visible to every reader as soon as Write returns.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the backing table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate exemption_state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Read(ctx context.Context, scope Scope, key Key) (string, bool, error) {
	if err := validate(scope, key.Owner); err != nil {
		return "", false, err
	}
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM exemption_state WHERE scope = $1 AND owner = $2 AND name = $3`,
		string(scope), key.Owner, key.Name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s %s: %w", scope, key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Write(ctx context.Context, scope Scope, key Key, value string) error {
	if err := validate(scope, key.Owner); err != nil {
		return err
	}
	query := `
		INSERT INTO exemption_state (scope, owner, name, value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope, owner, name) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, string(scope), key.Owner, key.Name, value, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("write %s %s: %w", scope, key, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, scope Scope, owner string) error {
	if err := validate(scope, owner); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM exemption_state WHERE scope = $1 AND owner = $2`, string(scope), owner)
	if err != nil {
		return fmt.Errorf("clear %s %s: %w", scope, owner, err)
	}
	return nil
}

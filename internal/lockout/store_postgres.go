package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore persists failure state in PostgreSQL. This store is pure
// I/O; lock decisions belong to the service. The increment uses a single
// INSERT ... ON CONFLICT ... RETURNING so concurrent attempts serialize on
// the row and cannot race past the counter.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS lockouts (
//	    identity          TEXT PRIMARY KEY,
//	    failure_count     INT NOT NULL,
//	    window_started_at TIMESTAMPTZ NOT NULL,
//	    locked_until      TIMESTAMPTZ
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (*State, error) {
	query := `
		SELECT identity, failure_count, window_started_at, locked_until
		FROM lockouts
		WHERE identity = $1
	`
	state, err := scanState(s.db.QueryRowContext(ctx, query, SanitizeKey(identity)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) Increment(ctx context.Context, identity string, now time.Time, window time.Duration) (*State, error) {
	// Window expiry and the increment happen in one atomic statement.
	query := `
		INSERT INTO lockouts (identity, failure_count, window_started_at, locked_until)
		VALUES ($1, 1, $2, NULL)
		ON CONFLICT (identity) DO UPDATE SET
			failure_count = CASE
				WHEN lockouts.window_started_at < $3 THEN 1
				ELSE lockouts.failure_count + 1
			END,
			window_started_at = CASE
				WHEN lockouts.window_started_at < $3 THEN $2
				ELSE lockouts.window_started_at
			END
		RETURNING identity, failure_count, window_started_at, locked_until
	`
	cutoff := now.Add(-window)
	state, err := scanState(s.db.QueryRowContext(ctx, query, SanitizeKey(identity), now, cutoff))
	if err != nil {
		return nil, fmt.Errorf("increment lockout: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) Lock(ctx context.Context, identity string, until time.Time) error {
	query := `
		INSERT INTO lockouts (identity, failure_count, window_started_at, locked_until)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (identity) DO UPDATE SET
			locked_until = EXCLUDED.locked_until
	`
	if _, err := s.db.ExecContext(ctx, query, SanitizeKey(identity), until); err != nil {
		return fmt.Errorf("lock identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM lockouts WHERE identity = $1`, SanitizeKey(identity)); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*State, error) {
	var state State
	var lockedUntil sql.NullTime
	if err := row.Scan(&state.Identity, &state.FailureCount, &state.WindowStartedAt, &lockedUntil); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		state.LockedUntil = &t
	}
	return &state, nil
}

package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"faceguard/internal/embedding"
	"faceguard/pkg/platform/sentinel"
)

// PostgresStore persists enrollments in PostgreSQL via pgx. This store is
// pure I/O; dimension checks and role defaulting belong to the service.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS enrollments (
//	    identity   TEXT PRIMARY KEY,
//	    embedding  DOUBLE PRECISION[] NOT NULL,
//	    role       TEXT NOT NULL DEFAULT 'user',
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Put(ctx context.Context, record Record) error {
	// Re-enrollment replaces the embedding but keeps the assigned role.
	query := `
		INSERT INTO enrollments (identity, embedding, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identity) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at
	`
	_, err := s.pool.Exec(ctx, query,
		record.Identity, []float64(record.Embedding), record.Role, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("put enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, identity string) (*Record, error) {
	query := `
		SELECT identity, embedding, role, created_at
		FROM enrollments
		WHERE identity = $1
	`
	var record Record
	var vec []float64
	err := s.pool.QueryRow(ctx, query, identity).
		Scan(&record.Identity, &vec, &record.Role, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("enrollment %q: %w", identity, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	record.Embedding = embedding.Vector(vec)
	return &record, nil
}

func (s *PostgresStore) All(ctx context.Context) ([]Record, error) {
	query := `
		SELECT identity, embedding, role, created_at
		FROM enrollments
		ORDER BY identity
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var record Record
		var vec []float64
		if err := rows.Scan(&record.Identity, &vec, &record.Role, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		record.Embedding = embedding.Vector(vec)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetRole(ctx context.Context, identity, role string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrollments SET role = $2 WHERE identity = $1`, identity, role)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("enrollment %q: %w", identity, sentinel.ErrNotFound)
	}
	return nil
}

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PostgresStore persists audit events in PostgreSQL via database/sql.
//
// Schema:
//
//	CREATE TABLE IF NOT EXISTS audit_events (
//	    id         UUID PRIMARY KEY,
//	    ts         TIMESTAMPTZ NOT NULL,
//	    event_type TEXT NOT NULL,
//	    identity   TEXT,
//	    outcome    TEXT NOT NULL,
//	    detail     JSONB
//	);
//	CREATE INDEX IF NOT EXISTS audit_events_identity_ts ON audit_events (identity, ts);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}

	var identity sql.NullString
	if event.Identity != "" {
		identity = sql.NullString{String: event.Identity, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, ts, event_type, identity, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.ID, event.Timestamp, string(event.Type), identity, string(event.Outcome), detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Event, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}

	if filter.Identity != "" {
		add("identity = ", filter.Identity)
	}
	if filter.Type != "" {
		add("event_type = ", string(filter.Type))
	}
	if !filter.Since.IsZero() {
		add("ts >= ", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("ts <= ", filter.Until)
	}

	query := `SELECT id, ts, event_type, identity, outcome, detail FROM audit_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		// Keep the most recent Limit rows while preserving ascending order.
		query = `SELECT * FROM (` + strings.Replace(query, "ORDER BY ts ASC", "ORDER BY ts DESC", 1) +
			` LIMIT $` + strconv.Itoa(len(args)) + `) sub ORDER BY ts ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var event Event
		var identity sql.NullString
		var eventType, outcome string
		var detail []byte
		if err := rows.Scan(&event.ID, &event.Timestamp, &eventType, &identity, &outcome, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Type = EventType(eventType)
		event.Outcome = Outcome(outcome)
		event.Identity = identity.String
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal audit detail: %w", err)
			}
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return out, nil
}

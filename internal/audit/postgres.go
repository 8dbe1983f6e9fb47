package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// MigrationAuditEvents is the DDL for the trail table. Safe to execute
// multiple times.
const MigrationAuditEvents = `
CREATE TABLE IF NOT EXISTS audit_events (
    audit_id     UUID PRIMARY KEY,
    occurred_at  TIMESTAMPTZ NOT NULL,
    action       TEXT NOT NULL,
    actor        TEXT NOT NULL DEFAULT '',
    subject_hash TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    source       TEXT NOT NULL DEFAULT '',
    payload      JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at ON audit_events (occurred_at DESC);
`

// PostgresStore persists the trail in PostgreSQL. Inserts are idempotent on
// audit ID so a replayed broker message cannot duplicate an entry.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects via database/sql, pings, and runs the
// auto-migration.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	if _, err := db.ExecContext(ctx, MigrationAuditEvents); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit_events table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	const query = `
		INSERT INTO audit_events (audit_id, occurred_at, action, actor, subject_hash, status, reason, source, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (audit_id) DO NOTHING`
	_, err = s.db.ExecContext(ctx, query,
		event.AuditID, event.Timestamp, string(event.Action), event.Actor,
		event.SubjectHash, event.Status, event.Reason, event.Source, payload,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT audit_id, occurred_at, action, actor, subject_hash, status, reason, source
		FROM audit_events ORDER BY occurred_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e      Event
			action string
		)
		if err := rows.Scan(&e.AuditID, &e.Timestamp, &action, &e.Actor, &e.SubjectHash, &e.Status, &e.Reason, &e.Source); err != nil {
			return nil, err
		}
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"omnigest/internal/domain"
	"omnigest/pkg/platform/sentinel"
)

// MigrationRecords is the DDL for the records table. Safe to execute multiple
// times; callers run it at startup as an auto-migration step.
const MigrationRecords = `
CREATE TABLE IF NOT EXISTS records (
    notice_id        TEXT PRIMARY KEY,
    patient_name     TEXT NOT NULL DEFAULT '',
    identity_id      TEXT NOT NULL DEFAULT '',
    clinical_payload TEXT NOT NULL DEFAULT '',
    consent_status   TEXT NOT NULL DEFAULT '',
    consent_token    TEXT NOT NULL DEFAULT '',
    notice_date      DATE,
    data_purpose     TEXT NOT NULL DEFAULT '',
    ingest_status    TEXT NOT NULL,
    status_reason    TEXT NOT NULL,
    discovery_status TEXT NOT NULL DEFAULT '',
    flags            JSONB NOT NULL DEFAULT '[]',
    unmapped         JSONB NOT NULL DEFAULT '{}',
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_ingest_status ON records (ingest_status);
`

// PostgresStore is the durable record store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings, and runs the auto-migration.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, MigrationRecords); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate records table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Save(ctx context.Context, rec *domain.CanonicalRecord) error {
	if rec.NoticeID == "" {
		return ErrMissingKey
	}
	flags, err := json.Marshal(rec.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	unmapped, err := json.Marshal(rec.Unmapped)
	if err != nil {
		return fmt.Errorf("marshal unmapped: %w", err)
	}

	const query = `
		INSERT INTO records (
			notice_id, patient_name, identity_id, clinical_payload,
			consent_status, consent_token, notice_date, data_purpose,
			ingest_status, status_reason, discovery_status, flags, unmapped, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
		ON CONFLICT (notice_id) DO UPDATE SET
			patient_name     = EXCLUDED.patient_name,
			identity_id      = EXCLUDED.identity_id,
			clinical_payload = EXCLUDED.clinical_payload,
			consent_status   = EXCLUDED.consent_status,
			consent_token    = EXCLUDED.consent_token,
			notice_date      = EXCLUDED.notice_date,
			data_purpose     = EXCLUDED.data_purpose,
			ingest_status    = EXCLUDED.ingest_status,
			status_reason    = EXCLUDED.status_reason,
			discovery_status = EXCLUDED.discovery_status,
			flags            = EXCLUDED.flags,
			unmapped         = EXCLUDED.unmapped,
			updated_at       = now()`
	_, err = s.pool.Exec(ctx, query,
		rec.NoticeID, rec.PatientName, rec.IdentityID, rec.ClinicalPayload,
		string(rec.ConsentStatus), rec.ConsentToken, rec.NoticeDate, rec.DataPurpose,
		string(rec.IngestStatus), string(rec.StatusReason), string(rec.DiscoveryStatus),
		flags, unmapped,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

const selectColumns = `
	notice_id, patient_name, identity_id, clinical_payload,
	consent_status, consent_token, notice_date, data_purpose,
	ingest_status, status_reason, discovery_status, flags, unmapped`

func (s *PostgresStore) FindByNoticeID(ctx context.Context, noticeID string) (*domain.CanonicalRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM records WHERE notice_id = $1`, noticeID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return rec, err
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM records ORDER BY notice_id`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []*domain.CanonicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HardDelete(ctx context.Context, noticeID string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT ingest_status FROM records WHERE notice_id = $1`, noticeID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup record status: %w", err)
	}
	if domain.IngestStatus(status) != domain.StatusPurged {
		return ErrNotPurged
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM records WHERE notice_id = $1`, noticeID)
	if err != nil {
		return fmt.Errorf("hard delete record: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.CanonicalRecord, error) {
	var (
		rec        domain.CanonicalRecord
		consent    string
		status     string
		reason     string
		discovery  string
		noticeDate *time.Time
		flags      []byte
		unmapped   []byte
	)
	err := row.Scan(
		&rec.NoticeID, &rec.PatientName, &rec.IdentityID, &rec.ClinicalPayload,
		&consent, &rec.ConsentToken, &noticeDate, &rec.DataPurpose,
		&status, &reason, &discovery, &flags, &unmapped,
	)
	if err != nil {
		return nil, err
	}
	rec.ConsentStatus = domain.ConsentStatus(consent)
	rec.IngestStatus = domain.IngestStatus(status)
	rec.StatusReason = domain.StatusReason(reason)
	rec.DiscoveryStatus = domain.DiscoveryStatus(discovery)
	rec.NoticeDate = noticeDate
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &rec.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags: %w", err)
		}
	}
	if len(unmapped) > 0 {
		if err := json.Unmarshal(unmapped, &rec.Unmapped); err != nil {
			return nil, fmt.Errorf("unmarshal unmapped: %w", err)
		}
	}
	return &rec, nil
}

// Package storage persists classified canonical records. Stores are
// interface-driven to keep the pipeline testable and to allow swapping the
// in-memory default for PostgreSQL without rewiring business code.
package storage

import (
	"context"
	"errors"

	"omnigest/internal/domain"
)

// ErrNotPurged guards hard deletion: only records the compliance engine has
// already purged may be physically removed.
var ErrNotPurged = errors.New("record is not purged")

// ErrMissingKey rejects records without a notice identifier, which is the
// storage key.
var ErrMissingKey = errors.New("record has no notice id")

// RecordStore holds canonical records keyed by notice ID. Save upserts;
// re-ingesting the same notice replaces the earlier classification.
type RecordStore interface {
	Save(ctx context.Context, rec *domain.CanonicalRecord) error
	FindByNoticeID(ctx context.Context, noticeID string) (*domain.CanonicalRecord, error)
	List(ctx context.Context) ([]*domain.CanonicalRecord, error)

	// HardDelete physically removes a purged record. It returns
	// sentinel.ErrNotFound for unknown notice IDs and ErrNotPurged when the
	// record's status is anything other than PURGED.
	HardDelete(ctx context.Context, noticeID string) error
}

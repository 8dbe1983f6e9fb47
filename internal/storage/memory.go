package storage

import (
	"context"
	"sort"
	"sync"

	"omnigest/internal/domain"
	"omnigest/pkg/platform/sentinel"
)

// MemoryStore is the default record store. It intentionally favors clarity
// over performance; the postgres store covers durable deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*domain.CanonicalRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*domain.CanonicalRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec *domain.CanonicalRecord) error {
	if rec.NoticeID == "" {
		return ErrMissingKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.NoticeID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) FindByNoticeID(_ context.Context, noticeID string) (*domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[noticeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List returns all records ordered by notice ID so exports are deterministic.
func (s *MemoryStore) List(_ context.Context) ([]*domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.CanonicalRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoticeID < out[j].NoticeID })
	return out, nil
}

func (s *MemoryStore) HardDelete(_ context.Context, noticeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[noticeID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.IngestStatus != domain.StatusPurged {
		return ErrNotPurged
	}
	delete(s.records, noticeID)
	return nil
}

// cloneRecord keeps callers from mutating stored state through shared slices
// and maps.
func cloneRecord(rec *domain.CanonicalRecord) *domain.CanonicalRecord {
	cp := *rec
	if rec.NoticeDate != nil {
		d := *rec.NoticeDate
		cp.NoticeDate = &d
	}
	if rec.Flags != nil {
		cp.Flags = append([]string(nil), rec.Flags...)
	}
	if rec.Unmapped != nil {
		cp.Unmapped = make(map[string]string, len(rec.Unmapped))
		for k, v := range rec.Unmapped {
			cp.Unmapped[k] = v
		}
	}
	return &cp
}

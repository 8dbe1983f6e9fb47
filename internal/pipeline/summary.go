package pipeline

import "omnigest/internal/domain"

// Summary aggregates classification outcomes. Merge is associative and
// commutative, so per-record summaries can be combined in any order the
// worker pool finishes in.
type Summary struct {
	Total             int            `json:"total"`
	Processed         int            `json:"processed"`
	Purged            int            `json:"purged"`
	Quarantined       int            `json:"quarantined"`
	PurgeReasons      map[string]int `json:"purge_reasons,omitempty"`
	QuarantineReasons map[string]int `json:"quarantine_reasons,omitempty"`
}

func NewSummary() Summary {
	return Summary{
		PurgeReasons:      map[string]int{},
		QuarantineReasons: map[string]int{},
	}
}

func summarize(rec *domain.CanonicalRecord) Summary {
	s := NewSummary()
	s.Total = 1
	switch rec.IngestStatus {
	case domain.StatusPurged:
		s.Purged = 1
		s.PurgeReasons[string(rec.StatusReason)] = 1
	case domain.StatusQuarantined:
		s.Quarantined = 1
		s.QuarantineReasons[string(rec.StatusReason)] = 1
	default:
		s.Processed = 1
	}
	return s
}

// Merge folds other into s.
func (s *Summary) Merge(other Summary) {
	s.Total += other.Total
	s.Processed += other.Processed
	s.Purged += other.Purged
	s.Quarantined += other.Quarantined
	for reason, n := range other.PurgeReasons {
		s.PurgeReasons[reason] += n
	}
	for reason, n := range other.QuarantineReasons {
		s.QuarantineReasons[reason] += n
	}
}

// SummarizeStored recomputes a summary from persisted records, backing the
// records/summary endpoint.
func SummarizeStored(records []*domain.CanonicalRecord) Summary {
	total := NewSummary()
	for _, rec := range records {
		total.Merge(summarize(rec))
	}
	return total
}

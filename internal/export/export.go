// Package export renders stored records for download: full CSV/JSON/XLSX
// snapshots for operators, a compliant subset for downstream partners, and a
// FHIR R5 bundle for health-record exchange. Exports are read-only views; the
// compliant variants contain only records that cleared every rule.
package export

import (
	"sort"
	"strings"

	"omnigest/internal/domain"
	"omnigest/internal/normalizer"
)

// statusColumns follow the canonical fields in every tabular export.
var statusColumns = []string{"Ingest_Status", "Status_Reason", "Discovery_Status", "Flags"}

// Compliant filters to records that cleared every rule. Quarantined and
// purged rows never leave the system through a partner export.
func Compliant(records []*domain.CanonicalRecord) []*domain.CanonicalRecord {
	out := make([]*domain.CanonicalRecord, 0, len(records))
	for _, rec := range records {
		if rec.IngestStatus == domain.StatusProcessed {
			out = append(out, rec)
		}
	}
	return out
}

// columns returns the export header: canonical fields, status columns, then
// every unmapped column seen across the batch in sorted order. Unmapped
// columns keep their original names so a re-ingest maps them the same way.
func columns(records []*domain.CanonicalRecord) []string {
	seen := map[string]struct{}{}
	var extras []string
	for _, rec := range records {
		for key := range rec.Unmapped {
			name := strings.TrimPrefix(key, normalizer.UnmappedPrefix)
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				extras = append(extras, name)
			}
		}
	}
	sort.Strings(extras)

	cols := make([]string, 0, len(normalizer.CanonicalFields)+len(statusColumns)+len(extras))
	cols = append(cols, normalizer.CanonicalFields...)
	cols = append(cols, statusColumns...)
	cols = append(cols, extras...)
	return cols
}

// cellValue renders one column of one record. Dates are ISO 8601.
func cellValue(rec *domain.CanonicalRecord, column string) string {
	switch column {
	case normalizer.FieldPatientName:
		return rec.PatientName
	case normalizer.FieldIdentityID:
		return rec.IdentityID
	case normalizer.FieldPayload:
		return rec.ClinicalPayload
	case normalizer.FieldConsentStatus:
		return string(rec.ConsentStatus)
	case normalizer.FieldConsentToken:
		return rec.ConsentToken
	case normalizer.FieldNoticeID:
		return rec.NoticeID
	case normalizer.FieldNoticeDate:
		if rec.NoticeDate == nil {
			return ""
		}
		return rec.NoticeDate.Format("2006-01-02")
	case normalizer.FieldDataPurpose:
		return rec.DataPurpose
	case "Ingest_Status":
		return string(rec.IngestStatus)
	case "Status_Reason":
		return string(rec.StatusReason)
	case "Discovery_Status":
		return string(rec.DiscoveryStatus)
	case "Flags":
		return strings.Join(rec.Flags, ";")
	default:
		return rec.Unmapped[normalizer.UnmappedPrefix+column]
	}
}

// Package domain holds the canonical patient-consent record and the value
// types shared across the ingestion pipeline. It has no dependencies on
// parsers, stores, or transport; rule logic lives in internal/compliance.
package domain

import "time"

// IngestStatus is the compliance classification of a canonical record.
type IngestStatus string

const (
	StatusProcessed   IngestStatus = "PROCESSED"
	StatusQuarantined IngestStatus = "QUARANTINED"
	StatusPurged      IngestStatus = "PURGED"
)

// StatusReason explains a non-PROCESSED classification. Exactly one non-NONE
// reason accompanies every QUARANTINED or PURGED record.
type StatusReason string

const (
	ReasonNone                  StatusReason = "NONE"
	ReasonMissingID             StatusReason = "MISSING_ID"
	ReasonMalformedID           StatusReason = "MALFORMED_ID"
	ReasonConsentRevoked        StatusReason = "CONSENT_REVOKED"
	ReasonNoticeExpired         StatusReason = "NOTICE_EXPIRED"
	ReasonOutdatedNoticeVersion StatusReason = "OUTDATED_NOTICE_VERSION"
	ReasonUnauthorizedPurpose   StatusReason = "UNAUTHORIZED_PURPOSE"
)

// Redaction sentinels. RedactedValue replaces direct identifiers on purge;
// ErasedPayload marks a clinical payload that existed and was erased, which is
// deliberately distinct from an empty payload that never held data.
const (
	RedactedValue = "REDACTED"
	ErasedPayload = "PURGED_DPDP_RULE_8_ERASURE"
)

// Record flags set by the builder for conditions that are not classification
// outcomes but must stay visible to operators.
const (
	FlagNoticeDateMissing = "notice_date_missing"
	FlagSyntheticAutofill = "synthetic_autofill"
	// FlagSyntheticNoticeKey marks a record that arrived without a notice id
	// and was stored under a generated key.
	FlagSyntheticNoticeKey = "synthetic_notice_key"
)

// CanonicalRecord is one row of standardized clinical intake data. It is
// created once by the record builder, classified exactly once by the
// compliance engine, and redacted at most once by the erasure step. After it
// reaches an output sink it is never mutated; re-ingestion creates a new
// record.
type CanonicalRecord struct {
	PatientName     string
	IdentityID      string
	ClinicalPayload string
	ConsentStatus   ConsentStatus
	ConsentToken    string
	NoticeID        string
	NoticeDate      *time.Time
	DataPurpose     string

	IngestStatus    IngestStatus
	StatusReason    StatusReason
	DiscoveryStatus DiscoveryStatus

	// Flags carries non-classification conditions (missing notice date,
	// synthetic autofill values) for operator review.
	Flags []string

	// Unmapped preserves input columns that could not be normalized, keyed
	// as UNMAPPED_<original-name>. Nothing is silently dropped.
	Unmapped map[string]string
}

// HasFlag reports whether the record carries the given builder flag.
func (r *CanonicalRecord) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// AddFlag appends a flag if not already present.
func (r *CanonicalRecord) AddFlag(flag string) {
	if !r.HasFlag(flag) {
		r.Flags = append(r.Flags, flag)
	}
}

// DiscoveryStatus records the outcome of optional identity resolution.
type DiscoveryStatus string

const (
	DiscoveryNone        DiscoveryStatus = ""
	DiscoveryFromCache   DiscoveryStatus = "RECOVERED_FROM_CACHE"
	DiscoveryFromGateway DiscoveryStatus = "LINKED_BY_GATEWAY"
	DiscoveryUnresolved  DiscoveryStatus = "UNRESOLVED"
)

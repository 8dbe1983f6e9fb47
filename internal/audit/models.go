package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action identifies what the pipeline did to a subject's data.
type Action string

const (
	ActionIngested     Action = "RECORD_INGESTED"
	ActionPurged       Action = "RECORD_PURGED"
	ActionQuarantined  Action = "RECORD_QUARANTINED"
	ActionHardDeleted  Action = "RECORD_HARD_DELETED"
	ActionExported     Action = "RECORDS_EXPORTED"
	ActionConfigReload Action = "CONFIG_RELOADED"
)

// Event is one immutable entry in the processing trail. Subjects are always
// recorded as a short hash, never the raw identifier, so the trail itself
// cannot leak what the pipeline just erased.
type Event struct {
	AuditID     uuid.UUID `json:"audit_id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      Action    `json:"action"`
	Actor       string    `json:"actor"`
	SubjectHash string    `json:"subject_hash"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	Source      string    `json:"source,omitempty"`
}

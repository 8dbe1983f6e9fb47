package domain

import "strings"

// ConsentStatus is a domain value describing whether a patient authorized
// data use. Hospital exports spell these inconsistently, so construct via
// ParseConsentStatus at trust boundaries; direct casting bypasses
// normalization.
type ConsentStatus string

const (
	ConsentGranted ConsentStatus = "GRANTED"
	ConsentActive  ConsentStatus = "ACTIVE"
	ConsentPending ConsentStatus = "PENDING"
	ConsentRevoked ConsentStatus = "REVOKED"
	ConsentDeemed  ConsentStatus = "DEEMED"
	ConsentUnknown ConsentStatus = "unknown"
)

// validConsentStatuses is the single source of truth for supported statuses.
var validConsentStatuses = map[ConsentStatus]bool{
	ConsentGranted: true,
	ConsentActive:  true,
	ConsentPending: true,
	ConsentRevoked: true,
	ConsentDeemed:  true,
}

// ParseConsentStatus normalizes external input onto the supported enum.
// Unrecognized or empty values map to ConsentUnknown rather than erroring:
// consent quality is a classification concern, not a parse failure.
func ParseConsentStatus(s string) ConsentStatus {
	c := ConsentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if validConsentStatuses[c] {
		return c
	}
	return ConsentUnknown
}

// IsValid reports whether the status is one of the supported enum values.
func (c ConsentStatus) IsValid() bool {
	return validConsentStatuses[c]
}

// String returns the string representation of the status.
func (c ConsentStatus) String() string {
	return string(c)
}

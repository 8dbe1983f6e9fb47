package export

import (
	"time"

	"omnigest/internal/domain"
)

// FHIR exchange constants for the sandbox health-ID ecosystem.
const (
	identifierSystem     = "https://healthidsbx.abdm.gov.in"
	extensionConsent     = "https://abdm.gov.in/fhir/StructureDefinition/consent-status"
	extensionNoticeID    = "https://abdm.gov.in/fhir/StructureDefinition/notice-id"
	bundleTypeCollection = "collection"
)

// Bundle is a FHIR R5 collection bundle. Resources are generic documents so
// structural verification operates on the same shape partners receive.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	Type         string  `json:"type"`
	Timestamp    string  `json:"timestamp"`
	Entry        []Entry `json:"entry"`
}

type Entry struct {
	FullURL  string         `json:"fullUrl"`
	Resource map[string]any `json:"resource"`
}

// BuildBundle assembles a Patient bundle from processed records. Quarantined
// and purged records are excluded, and every resource passes the structural
// check before entering the bundle.
func BuildBundle(records []*domain.CanonicalRecord, now time.Time) Bundle {
	bundle := Bundle{
		ResourceType: "Bundle",
		Type:         bundleTypeCollection,
		Timestamp:    now.UTC().Format(time.RFC3339),
		Entry:        []Entry{},
	}

	for _, rec := range Compliant(records) {
		resource := map[string]any{
			"resourceType": "Patient",
			"identifier": []map[string]any{
				{"system": identifierSystem, "value": rec.IdentityID},
			},
			"name": []map[string]any{
				{"text": rec.PatientName},
			},
			"extension": []map[string]any{
				{"url": extensionConsent, "valueString": string(rec.ConsentStatus)},
				{"url": extensionNoticeID, "valueString": rec.NoticeID},
			},
		}
		if !VerifyStructure(resource) {
			continue
		}
		bundle.Entry = append(bundle.Entry, Entry{
			FullURL:  "urn:uuid:" + rec.NoticeID,
			Resource: resource,
		})
	}
	return bundle
}

// VerifyStructure checks that a Patient resource nests its name as
// name[0].text per FHIR R5. A flat string name, common in hand-rolled
// exports, fails the check. Non-Patient resources pass through.
func VerifyStructure(resource map[string]any) bool {
	if resource["resourceType"] != "Patient" {
		return true
	}
	names, ok := resource["name"].([]map[string]any)
	if !ok {
		// Decoded JSON arrives as []any.
		raw, ok := resource["name"].([]any)
		if !ok || len(raw) == 0 {
			return false
		}
		first, ok := raw[0].(map[string]any)
		if !ok {
			return false
		}
		_, ok = first["text"]
		return ok
	}
	if len(names) == 0 {
		return false
	}
	_, ok = names[0]["text"]
	return ok
}

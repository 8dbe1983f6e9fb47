package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"omnigest/internal/domain"
)

// FHIR parses FHIR JSON documents, either a Bundle or a single resource. Each
// resource yields one raw record: Patient contributes name and identifier,
// Consent contributes status, and clinical resources become the payload.
type FHIR struct{}

func (FHIR) Format() string { return "fhir" }

func (FHIR) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	var doc map[string]any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return parseFHIRDocument(doc)
}

func parseFHIRDocument(doc map[string]any) ([]*domain.RawRecord, error) {
	var resources []map[string]any
	switch doc["resourceType"] {
	case "Bundle":
		entries, _ := doc["entry"].([]any)
		for _, e := range entries {
			entry, ok := e.(map[string]any)
			if !ok {
				continue
			}
			if res, ok := entry["resource"].(map[string]any); ok {
				resources = append(resources, res)
			}
		}
	case nil:
		return nil, fmt.Errorf("%w: missing resourceType", ErrMalformedInput)
	default:
		resources = []map[string]any{doc}
	}

	var records []*domain.RawRecord
	for _, res := range resources {
		rec := resourceToRecord(res)
		if rec.Len() > 0 {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func resourceToRecord(res map[string]any) *domain.RawRecord {
	rec := domain.NewRawRecord()

	switch res["resourceType"] {
	case "Patient":
		if name := patientName(res); name != "" {
			rec.Set("Patient_Name", name)
		}
		if id := patientIdentifier(res); id != "" {
			rec.Set("ABHA_ID", id)
		}
	case "Consent":
		if status, ok := res["status"].(string); ok && status != "" {
			rec.Set("Consent_Status", status)
		} else {
			rec.Set("Consent_Status", "ACTIVE")
		}
		if patient, ok := res["patient"].(map[string]any); ok {
			if ref, ok := patient["reference"].(string); ok && ref != "" {
				parts := strings.Split(ref, "/")
				rec.Set("Patient_Name", parts[len(parts)-1])
			}
		}
	case "Observation", "DiagnosticReport", "Condition":
		clinical := map[string]any{
			"resource_type": res["resourceType"],
			"status":        res["status"],
		}
		if code, ok := res["code"].(map[string]any); ok {
			if display := firstCodingDisplay(code); display != "" {
				clinical["code"] = display
			}
		}
		payload, _ := json.Marshal(clinical)
		rec.Set("Clinical_Payload", string(payload))
	}

	if date, ok := res["date"].(string); ok && date != "" {
		rec.Set("Notice_Date", date)
	} else if meta, ok := res["meta"].(map[string]any); ok {
		if updated, ok := meta["lastUpdated"].(string); ok && len(updated) >= 10 {
			rec.Set("Notice_Date", updated[:10])
		}
	}
	if id, ok := res["id"].(string); ok && id != "" {
		rec.Set("Notice_ID", id)
	}
	if rec.Len() > 0 {
		if _, ok := rec.Get("Consent_Status"); !ok {
			rec.Set("Consent_Status", "ACTIVE")
		}
	}
	return rec
}

// patientName joins given names and the family name from the first HumanName.
func patientName(res map[string]any) string {
	names, _ := res["name"].([]any)
	if len(names) == 0 {
		return ""
	}
	first, ok := names[0].(map[string]any)
	if !ok {
		return ""
	}
	var parts []string
	if given, ok := first["given"].([]any); ok {
		for _, g := range given {
			if s, ok := g.(string); ok {
				parts = append(parts, s)
			}
		}
	}
	if family, ok := first["family"].(string); ok && family != "" {
		parts = append(parts, family)
	}
	return strings.Join(parts, " ")
}

// patientIdentifier prefers an MR-coded identifier or one whose value looks
// like a health identifier.
func patientIdentifier(res map[string]any) string {
	identifiers, _ := res["identifier"].([]any)
	for _, i := range identifiers {
		ident, ok := i.(map[string]any)
		if !ok {
			continue
		}
		value, _ := ident["value"].(string)
		if value == "" {
			continue
		}
		if typ, ok := ident["type"].(map[string]any); ok {
			if code := firstCodingCode(typ); code == "MR" {
				return value
			}
		}
		if strings.Contains(strings.ToUpper(value), "ABHA") || strings.HasSuffix(value, "@sbx") {
			return value
		}
	}
	// Fall back to the first identifier with a value.
	for _, i := range identifiers {
		if ident, ok := i.(map[string]any); ok {
			if value, _ := ident["value"].(string); value != "" {
				return value
			}
		}
	}
	return ""
}

func firstCodingDisplay(cc map[string]any) string {
	if codings, ok := cc["coding"].([]any); ok && len(codings) > 0 {
		if c, ok := codings[0].(map[string]any); ok {
			if display, ok := c["display"].(string); ok {
				return display
			}
		}
	}
	return ""
}

func firstCodingCode(cc map[string]any) string {
	if codings, ok := cc["coding"].([]any); ok && len(codings) > 0 {
		if c, ok := codings[0].(map[string]any); ok {
			if code, ok := c["code"].(string); ok {
				return code
			}
		}
	}
	return ""
}

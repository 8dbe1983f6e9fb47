// Package record assembles normalized field maps into fixed-shape canonical
// records, applying the fill policy and a last-chance text recovery pass for
// missing identity fields.
package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"omnigest/internal/domain"
	"omnigest/internal/normalizer"
)

// FillPolicy controls how absent canonical fields are handled.
type FillPolicy int

const (
	// FillStrict leaves absent fields empty; the record becomes
	// quarantine-eligible downstream.
	FillStrict FillPolicy = iota
	// FillAutofill synthesizes clearly-marked placeholders. Preview tooling
	// only; it must never drive production consent decisions.
	FillAutofill
)

const autofillPrefix = "AUTO_"

// Config carries the policy values used when autofilling.
type Config struct {
	NoticeYear        int
	DefaultNoticeDate string
}

// Builder is immutable after construction and safe for concurrent use.
type Builder struct {
	cfg Config
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Recovery patterns for identity fields hiding in free-text values. Hospital
// exports often bury the health id inside a remarks column.
var (
	recoveryIDPattern = regexp.MustCompile(
		`\b(\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}|[a-zA-Z0-9.]+@sbx)\b`)
	recoveryNamePattern = regexp.MustCompile(
		`(?:Patient Name|Pt Name|Name of Pt|Patient|Name)[:\s_-]*([A-Z][a-z]+(?:[\s_-][A-Z][a-z]+)*)`)
)

// Build merges a normalized field map into a canonical record. Dates that
// fail to parse are treated as absent and flagged rather than guessed.
func (b *Builder) Build(fields *domain.RawRecord, policy FillPolicy) *domain.CanonicalRecord {
	rec := &domain.CanonicalRecord{
		Unmapped: make(map[string]string),
	}

	get := func(field string) string {
		v, _ := fields.Get(field)
		return strings.TrimSpace(v)
	}

	rec.PatientName = get(normalizer.FieldPatientName)
	rec.IdentityID = get(normalizer.FieldIdentityID)
	rec.ClinicalPayload = get(normalizer.FieldPayload)
	rec.ConsentToken = get(normalizer.FieldConsentToken)
	rec.NoticeID = get(normalizer.FieldNoticeID)
	rec.DataPurpose = get(normalizer.FieldDataPurpose)

	for _, name := range fields.Names() {
		if strings.HasPrefix(name, normalizer.UnmappedPrefix) {
			v, _ := fields.Get(name)
			rec.Unmapped[name] = v
		}
	}

	if policy == FillAutofill {
		b.autofill(rec, get(normalizer.FieldConsentStatus), get(normalizer.FieldNoticeDate))
	}

	b.recoverFromText(rec, fields)

	if rec.ConsentStatus == "" {
		rec.ConsentStatus = domain.ParseConsentStatus(get(normalizer.FieldConsentStatus))
	}
	if rec.NoticeDate == nil {
		if raw := get(normalizer.FieldNoticeDate); raw != "" {
			rec.NoticeDate = parseNoticeDate(raw)
		}
		if rec.NoticeDate == nil {
			rec.AddFlag(domain.FlagNoticeDateMissing)
		}
	}
	return rec
}

// autofill synthesizes placeholders for missing fields. Consent defaults to
// granted, the notice id gets a recognizable synthetic marker, and everything
// else is prefixed so no synthetic value can pass for real data.
func (b *Builder) autofill(rec *domain.CanonicalRecord, rawConsent, rawDate string) {
	filled := false

	if rawConsent == "" {
		rec.ConsentStatus = domain.ConsentGranted
		filled = true
	}
	if rec.NoticeID == "" {
		rec.NoticeID = fmt.Sprintf("N-%d-AUTO-v0.0", b.cfg.NoticeYear)
		filled = true
	}
	if rawDate == "" {
		rec.NoticeDate = parseNoticeDate(b.cfg.DefaultNoticeDate)
		filled = true
	}
	if rec.PatientName == "" {
		rec.PatientName = autofillPrefix + normalizer.FieldPatientName
		filled = true
	}
	// DataPurpose is deliberately not autofilled: an empty purpose reads as
	// unknown downstream, while a synthetic one would trip the
	// unauthorized-purpose rule and purge every preview record.

	if filled {
		rec.AddFlag(domain.FlagSyntheticAutofill)
	}
}

// recoverFromText scans the concatenation of every field value for an
// identifier or a name when the canonical slot is empty or synthetic. This is
// the zero-failure pass: messy files still yield a classifiable record.
func (b *Builder) recoverFromText(rec *domain.CanonicalRecord, fields *domain.RawRecord) {
	var sb strings.Builder
	for _, name := range fields.Names() {
		if v, _ := fields.Get(name); v != "" {
			sb.WriteString(v)
			sb.WriteString(" ")
		}
	}
	text := sb.String()

	if rec.IdentityID == "" {
		if m := recoveryIDPattern.FindString(text); m != "" {
			rec.IdentityID = strings.ReplaceAll(m, " ", "-")
		}
	}

	name := rec.PatientName
	if name == "" || name == "Unknown/Redacted" || name == "Unknown" ||
		strings.Contains(name, autofillPrefix+normalizer.FieldPatientName) {
		if m := recoveryNamePattern.FindStringSubmatch(text); m != nil {
			rec.PatientName = m[1]
		}
	}
}

// noticeDateFormats are tried in order; only the date part is kept.
var noticeDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
}

func parseNoticeDate(raw string) *time.Time {
	for _, layout := range noticeDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			d := t.UTC().Truncate(24 * time.Hour)
			return &d
		}
	}
	return nil
}

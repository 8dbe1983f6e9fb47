package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"omnigest/internal/domain"
)

// PDF extracts one record per document from scanned report text. PDFs rarely
// carry structured consent metadata, so missing fields get the same defaults
// an unstructured report would.
type PDF struct{}

func (PDF) Format() string { return "pdf" }

func (PDF) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	text, err := io.ReadAll(textReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	rec := scanReportText(string(text), "text")
	if _, ok := rec.Get("Notice_ID"); !ok {
		rec.Set("Notice_ID", stem(name))
	}
	if v, _ := rec.Get("Patient_Name"); v == "" {
		rec.Set("Patient_Name", "Unknown/Redacted")
	}
	return []*domain.RawRecord{rec}, nil
}

// scanReportText runs the shared extraction chain over free text and stores
// the capped text under the given payload key.
func scanReportText(text, payloadKey string) *domain.RawRecord {
	rec := domain.NewRawRecord()

	if m := firstMatch(reportNamePatterns, text); m != "" {
		name := strings.TrimSpace(strings.SplitN(m, "\n", 2)[0])
		rec.Set("Patient_Name", name)
	}
	if m := firstMatch(reportIDPatterns, text); m != "" {
		rec.Set("ABHA_ID", strings.TrimSpace(m))
	}
	if m := firstMatch(reportDatePatterns, text); m != "" {
		rec.Set("Notice_Date", normalizeReportDate(m))
	}
	if m := firstMatch(reportNoticePatterns, text); m != "" {
		rec.Set("Notice_ID", strings.TrimSpace(m))
	}
	if m := reportConsentPattern.FindStringSubmatch(text); m != nil {
		rec.Set("Consent_Status", strings.ToUpper(m[1]))
	} else {
		rec.Set("Consent_Status", "ACTIVE")
	}

	payload, _ := json.Marshal(map[string]string{payloadKey: truncate(text, payloadLimit)})
	rec.Set("Clinical_Payload", string(payload))
	return rec
}

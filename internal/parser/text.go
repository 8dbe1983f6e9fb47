package parser

import (
	"fmt"
	"io"

	"omnigest/internal/domain"
)

// Text parses free-form clinical reports using the shared extraction chain.
type Text struct{}

func (Text) Format() string { return "text" }

func (Text) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	rec := scanReportText(string(raw), "report")
	if _, ok := rec.Get("Notice_ID"); !ok {
		rec.Set("Notice_ID", stem(name))
	}
	if v, _ := rec.Get("Patient_Name"); v == "" {
		rec.Set("Patient_Name", "Unknown")
	}
	return []*domain.RawRecord{rec}, nil
}

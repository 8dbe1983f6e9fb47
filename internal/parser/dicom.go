package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"omnigest/internal/domain"
)

// DICOM extracts patient demographics and study metadata from imaging files.
// Pixel data is skipped; only the header tags matter for compliance intake.
type DICOM struct{}

func (DICOM) Format() string { return "dicom" }

func (DICOM) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	rec := domain.NewRawRecord()
	if v := tagString(ds, tag.PatientName); v != "" {
		rec.Set("Patient_Name", v)
	}
	if v := tagString(ds, tag.PatientID); v != "" {
		rec.Set("ABHA_ID", v)
	}
	if v := tagString(ds, tag.StudyDate); v != "" {
		rec.Set("Notice_Date", dashifyCompactDate(v))
	}
	if v := tagString(ds, tag.StudyInstanceUID); v != "" {
		rec.Set("Notice_ID", v)
	} else {
		rec.Set("Notice_ID", stem(name))
	}

	clinical := map[string]string{}
	if v := tagString(ds, tag.StudyDescription); v != "" {
		clinical["study_description"] = v
	}
	if v := tagString(ds, tag.Modality); v != "" {
		clinical["modality"] = v
	}
	if v := tagString(ds, tag.BodyPartExamined); v != "" {
		clinical["body_part"] = v
	}
	if len(clinical) > 0 {
		payload, _ := json.Marshal(clinical)
		rec.Set("Clinical_Payload", string(payload))
	}
	rec.Set("Consent_Status", "ACTIVE")

	return []*domain.RawRecord{rec}, nil
}

// tagString returns the first string value of a tag, or "".
func tagString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem.Value == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// dashifyCompactDate converts the DICOM DA format YYYYMMDD to YYYY-MM-DD.
func dashifyCompactDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:8]
}

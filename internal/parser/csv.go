package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"omnigest/internal/domain"
)

// CSV parses comma-separated files with a header row. Column names pass
// through untouched; the normalizer resolves them to canonical fields.
type CSV struct{}

func (CSV) Format() string { return "csv" }

func (CSV) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Rows with missing trailing cells still map against the header.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRecords
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	var records []*domain.RawRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		rec := domain.NewRawRecord()
		for i, col := range header {
			if i < len(row) {
				rec.Set(col, row[i])
			} else {
				rec.Set(col, "")
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

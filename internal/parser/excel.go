package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"omnigest/internal/domain"
)

// Excel parses XLSX workbooks. Only the first sheet is read; the first row is
// taken as the header.
type Excel struct{}

func (Excel) Format() string { return "xlsx" }

func (Excel) Parse(name string, r io.Reader) ([]*domain.RawRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoRecords
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if len(rows) < 2 {
		return nil, ErrNoRecords
	}

	header := rows[0]
	var records []*domain.RawRecord
	for _, row := range rows[1:] {
		rec := domain.NewRawRecord()
		empty := true
		for i, col := range header {
			if col == "" {
				continue
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if val != "" {
				empty = false
			}
			rec.Set(col, val)
		}
		if !empty {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

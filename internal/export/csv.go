package export

import (
	"encoding/csv"
	"io"

	"omnigest/internal/domain"
)

// WriteCSV renders records as a CSV table with a header row.
func WriteCSV(w io.Writer, records []*domain.CanonicalRecord) error {
	cols := columns(records)
	cw := csv.NewWriter(w)

	if err := cw.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = cellValue(rec, col)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package export

import (
	"encoding/json"
	"io"

	"omnigest/internal/domain"
)

// WriteJSON renders records as a JSON array of flat objects using the same
// column names as the CSV export. Empty cells are omitted.
func WriteJSON(w io.Writer, records []*domain.CanonicalRecord) error {
	cols := columns(records)
	out := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		obj := make(map[string]string, len(cols))
		for _, col := range cols {
			if v := cellValue(rec, col); v != "" {
				obj[col] = v
			}
		}
		out = append(out, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

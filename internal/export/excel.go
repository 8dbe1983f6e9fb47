package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"omnigest/internal/domain"
)

// WriteExcel renders records as a single-sheet workbook.
func WriteExcel(w io.Writer, records []*domain.CanonicalRecord) error {
	cols := columns(records)
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]any, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for i, rec := range records {
		row := make([]any, len(cols))
		for j, col := range cols {
			row[j] = cellValue(rec, col)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

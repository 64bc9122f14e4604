package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"keeptrack/internal/core"
)

const sheetName = "Transactions"

var xlsxHeaders = []string{"Date", "Type", "Category", "Description", "Amount", "Currency"}

// WriteXLSX writes a workbook with a single sheet of records. Amounts are
// numeric cells so spreadsheets can sum them.
func WriteXLSX(w io.Writer, records []core.Transaction, currency string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	for i, header := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}
	for i, t := range records {
		row := i + 2
		values := []any{
			t.Date.String(),
			string(t.Type),
			t.Category,
			t.Description,
			t.Amount.InexactFloat64(),
			currency,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Package export renders a built annual statement as a downloadable
// CSV workbook. Styling lives in renderers (here and the Sheets
// exporter); grid semantics stay with the report package.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"kakebo/internal/report"
)

// WriteCSV streams the statement grid to w, one record per positional
// row. Blank spacer rows are kept so the CSV opens with the same shape
// as the exported workbook sheet.
func WriteCSV(w io.Writer, a *report.Annual) error {
	if a == nil {
		return fmt.Errorf("nothing to export: empty statement")
	}

	cw := csv.NewWriter(w)
	for _, row := range a.Rows() {
		record := row.Cells
		if record == nil {
			record = []string{""}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write statement row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush statement: %w", err)
	}
	return nil
}

// Filename returns the download name for a statement, stamped with the
// statement year.
func Filename(a *report.Annual) string {
	return fmt.Sprintf("年度支出_%d.csv", a.Year)
}

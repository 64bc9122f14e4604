package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"keeptrack/internal/core"
)

const (
	pdfTitle      = "Transactions"
	pdfLineHeight = 6.0
)

// WritePDF renders the document export as an A4 PDF, one Line per record.
// Characters outside the core font encoding are replaced.
func WritePDF(w io.Writer, records []core.Transaction, currency string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(pdfTitle, true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, pdfTitle, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, pdfLineHeight, fmt.Sprintf("%d records", len(records)), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, t := range records {
		pdf.MultiCell(0, pdfLineHeight, tr(Line(t, currency)), "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

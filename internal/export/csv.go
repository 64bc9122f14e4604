package export

import (
	"bufio"
	"io"
	"strings"

	"keeptrack/internal/core"
)

const csvHeader = "Type,Amount,Category,Description,Date"

// WriteCSV writes the header and one row per record. Category and
// description are always quoted, with embedded quotes doubled.
func WriteCSV(w io.Writer, records []core.Transaction) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(csvHeader)
	bw.WriteByte('\n')
	for _, t := range records {
		bw.WriteString(CSVRow(t))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// CSVRow renders a single record without the trailing newline.
func CSVRow(t core.Transaction) string {
	return strings.Join([]string{
		string(t.Type),
		t.Amount.String(),
		quote(t.Category),
		quote(t.Description),
		t.Date.String(),
	}, ",")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

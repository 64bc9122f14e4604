// Package export renders filtered transactions for download.
package export

import (
	"fmt"
	"io"
	"strings"

	"keeptrack/internal/core"
)

type Format string

const (
	CSV  Format = "csv"
	Text Format = "text"
	PDF  Format = "pdf"
	XLSX Format = "xlsx"
)

var formats = map[Format]struct {
	contentType string
	extension   string
}{
	CSV:  {"text/csv; charset=utf-8", "csv"},
	Text: {"text/plain; charset=utf-8", "txt"},
	PDF:  {"application/pdf", "pdf"},
	XLSX: {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
}

// ParseFormat accepts csv, text (or txt), pdf and xlsx.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "txt" {
		f = Text
	}
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("unsupported export format %q", s)
	}
	return f, nil
}

func (f Format) ContentType() string { return formats[f].contentType }

// Filename returns the download name for base in this format.
func (f Format) Filename(base string) string {
	return base + "." + formats[f].extension
}

// Write renders records, already filtered and ordered, in format f.
func Write(w io.Writer, f Format, records []core.Transaction, currency string) error {
	switch f {
	case CSV:
		return WriteCSV(w, records)
	case Text:
		return WriteText(w, records, currency)
	case PDF:
		return WritePDF(w, records, currency)
	case XLSX:
		return WriteXLSX(w, records, currency)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// Line is the one-line document rendering of a record:
// date | TYPE | category | <currency><amount> | description
func Line(t core.Transaction, currency string) string {
	return strings.Join([]string{
		t.Date.String(),
		strings.ToUpper(string(t.Type)),
		t.Category,
		core.FormatMoney(currency, t.Amount),
		t.Description,
	}, " | ")
}

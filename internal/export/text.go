package export

import (
	"bufio"
	"io"

	"keeptrack/internal/core"
)

// WriteText writes one Line per record.
func WriteText(w io.Writer, records []core.Transaction, currency string) error {
	bw := bufio.NewWriter(w)
	for _, t := range records {
		bw.WriteString(Line(t, currency))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

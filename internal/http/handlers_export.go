package http

import (
	"bytes"
	"net/http"
	"strconv"

	"keeptrack/internal/export"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
)

// handleExport renders the filtered records as a download. The document is
// built in memory so a rendering failure still yields a clean error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	format, err := export.ParseFormat(r.PathValue("format"))
	if err != nil {
		writeMessage(w, r, http.StatusNotFound, err.Error())
		return
	}
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, records, store.Currency()); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	name := format.Filename("transactions-" + s.today().String())
	h := w.Header()
	h.Set("Content-Type", format.ContentType())
	h.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Export written",
		log.FieldOperation, log.OpExport,
		"format", string(format),
		log.FieldCount, len(records))
}

package http

import (
	"net/http"

	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
)

func (s *Server) handleGetCurrency(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	writeJSON(w, http.StatusOK, currencyRequest{Currency: store.Currency()})
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	var req currencyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := store.SetCurrency(r.Context(), sanitizeInput(req.Currency)); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, currencyRequest{Currency: store.Currency()})
}

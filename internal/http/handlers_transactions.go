package http

import (
	"net/http"

	"keeptrack/internal/core"
	"keeptrack/internal/filter"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/stats"
)

type transactionList struct {
	Transactions []core.Transaction `json:"transactions"`
	Count        int                `json:"count"`
	Totals       core.Totals        `json:"totals"`
	Currency     string             `json:"currency"`
}

// visible returns the caller's records narrowed by the request's filter query.
func visible(r *http.Request, store *ledger.Store) ([]core.Transaction, error) {
	criteria, err := filter.FromQuery(r.URL.Query())
	if err != nil {
		return nil, malformed("%v", err)
	}
	records := filter.ForOwner(store.Transactions(), store.Owner())
	return filter.Apply(records, criteria), nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionList{
		Transactions: records,
		Count:        len(records),
		Totals:       stats.Totals(records),
		Currency:     store.Currency(),
	})
}

func (s *Server) handleRecentTransactions(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	n, err := queryInt(r, "limit", stats.RecentCount)
	if err != nil {
		writeError(w, r, log.OpList, malformed("%v", err))
		return
	}
	records := stats.Recent(filter.ForOwner(store.Transactions(), store.Owner()), n)
	writeJSON(w, http.StatusOK, transactionList{
		Transactions: records,
		Count:        len(records),
		Totals:       stats.Totals(records),
		Currency:     store.Currency(),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	n, err := req.toNew()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	tx, err := store.Add(r.Context(), n)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created",
		log.FieldTxID, tx.ID,
		log.FieldTxType, tx.Type,
		log.FieldAmount, tx.Amount.String(),
		log.FieldCategory, tx.Category)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+tx.ID).
		Body(tx).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	tx, ok := store.Get(r.PathValue("id"))
	if !ok || !ownedBy(tx, store.Owner()) {
		writeMessage(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	id := r.PathValue("id")
	if current, ok := store.Get(id); ok && !ownedBy(current, store.Owner()) {
		writeMessage(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	tx, found, err := store.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if !found {
		writeMessage(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	id := r.PathValue("id")
	if current, ok := store.Get(id); ok && !ownedBy(current, store.Owner()) {
		writeMessage(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	removed, err := store.Remove(r.Context(), id)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !removed {
		writeMessage(w, r, http.StatusNotFound, "transaction not found")
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// ownedBy reports whether owner may see tx.
func ownedBy(tx core.Transaction, owner string) bool {
	return len(filter.ForOwner([]core.Transaction{tx}, owner)) == 1
}

package http

import (
	"net/http"
	"strings"

	"keeptrack/internal/budget"
	"keeptrack/internal/core"
	"keeptrack/internal/filter"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
)

type budgetList struct {
	Budgets []core.Budget   `json:"budgets"`
	Reports []budget.Report `json:"reports"`
	Alerts  []budget.Report `json:"alerts"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	budgets := store.Budgets()
	reports := budget.Evaluate(budgets, filter.ForOwner(store.Transactions(), store.Owner()))
	alerts := budget.Alerts(reports)
	budget.LogAlerts(r.Context(), log.FromContext(r.Context()), alerts)
	writeJSON(w, http.StatusOK, budgetList{
		Budgets: budgets,
		Reports: reports,
		Alerts:  alerts,
	})
}

// handleUpsertBudget sets the limit of a category and period, creating the
// budget when none exists yet. The period defaults to monthly.
func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	var req budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	amount, err := req.Amount.decimal()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	period := core.Period(strings.ToLower(sanitizeInput(req.Period)))
	if period == "" {
		period = core.PeriodMonthly
	}
	b, err := store.UpsertBudget(r.Context(), sanitizeInput(req.Category), period, amount)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	removed, err := store.RemoveBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !removed {
		writeMessage(w, r, http.StatusNotFound, "budget not found")
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

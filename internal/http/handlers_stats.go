package http

import (
	"fmt"
	"net/http"
	"strings"

	"keeptrack/internal/budget"
	"keeptrack/internal/core"
	"keeptrack/internal/filter"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/stats"
)

// dashboardKey changes whenever the owner's ledger or the calendar day does.
func dashboardKey(owner string, version uint64, today core.Date) string {
	return fmt.Sprintf("%s:%d:%s", owner, version, today)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	ctx := r.Context()
	today := s.today()
	key := dashboardKey(store.Owner(), store.Version(), today)
	if d, ok := s.dashboardCache.Get(key); ok {
		log.FromContext(ctx).DebugContext(ctx, "Dashboard cache hit", log.FieldKey, key)
		budget.LogAlerts(ctx, log.FromContext(ctx), d.Alerts)
		writeJSON(w, http.StatusOK, dashboardResponse{Dashboard: d, Currency: store.Currency()})
		return
	}

	snap := store.Snapshot()
	d := stats.BuildDashboard(filter.ForOwner(snap.Transactions, store.Owner()), snap.Budgets, today)
	budget.LogAlerts(ctx, log.FromContext(ctx), d.Alerts)
	s.dashboardCache.Set(dashboardKey(store.Owner(), snap.Version, today), d)
	writeJSON(w, http.StatusOK, dashboardResponse{Dashboard: d, Currency: snap.Currency})
}

type dashboardResponse struct {
	stats.Dashboard
	Currency string `json:"currency"`
}

// handleTotals returns overall totals, or those of one day (day=) or one
// month (year= and month=).
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	q := r.URL.Query()
	switch {
	case q.Get("day") != "":
		d, err := core.ParseDate(q.Get("day"))
		if err != nil {
			writeError(w, r, log.OpRead, malformed("day: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, stats.TotalsForDate(records, d))
	case q.Get("year") != "" || q.Get("month") != "":
		today := s.today()
		year, err := queryInt(r, "year", today.Year())
		if err != nil {
			writeError(w, r, log.OpRead, malformed("%v", err))
			return
		}
		month, err := queryInt(r, "month", int(today.Month()))
		if err != nil || month > 12 {
			writeError(w, r, log.OpRead, malformed("month must be between 1 and 12"))
			return
		}
		writeJSON(w, http.StatusOK, stats.TotalsForMonth(records, year, month))
	default:
		writeJSON(w, http.StatusOK, stats.Totals(records))
	}
}

func (s *Server) handleMonthlySeries(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": stats.MonthlySeries(records)})
}

func (s *Server) handleBalanceSeries(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": stats.CumulativeBalanceSeries(records)})
}

// handleBreakdown sums amounts per category for kind=expense (default) or
// kind=income.
func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request, store *ledger.Store) {
	kind := core.Expense
	if v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind"))); v != "" {
		kind = core.TxType(v)
		if err := kind.Validate(); err != nil {
			writeError(w, r, log.OpRead, malformed("kind: %v", err))
			return
		}
	}
	records, err := visible(r, store)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"type":       kind,
		"categories": stats.CategoryBreakdown(records, kind),
	})
}

// handleCategories lists the suggested categories per type.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if v := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))); v != "" {
		t := core.TxType(v)
		if err := t.Validate(); err != nil {
			writeError(w, r, log.OpRead, malformed("type: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{string(t): core.Categories(t)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		string(core.Income):  core.Categories(core.Income),
		string(core.Expense): core.Categories(core.Expense),
	})
}

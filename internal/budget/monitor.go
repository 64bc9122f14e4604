// Package budget compares per-category expense totals against budget limits.
package budget

import (
	"context"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
	"keeptrack/internal/log"
)

// Status classifies how much of a budget has been used.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusExceeded Status = "exceeded"
)

// WarningRatio is the share of the limit at which a budget turns to warning.
var WarningRatio = decimal.RequireFromString("0.75")

var hundred = decimal.NewFromInt(100)

// Report is the evaluation of one budget against the current records.
type Report struct {
	Budget    core.Budget     `json:"budget"`
	Used      decimal.Decimal `json:"used"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Status    Status          `json:"status"`
}

// Used sums every expense in the budget's category. The budget period is a
// label only and does not narrow the window.
func Used(b core.Budget, records []core.Transaction) decimal.Decimal {
	used := decimal.Zero
	for _, r := range records {
		if r.Type == core.Expense && r.Category == b.Category {
			used = used.Add(r.Amount)
		}
	}
	return used
}

// StatusFor maps usage against a limit. A non-positive limit is always ok.
func StatusFor(used, limit decimal.Decimal) Status {
	if !limit.IsPositive() {
		return StatusOK
	}
	switch {
	case used.GreaterThanOrEqual(limit):
		return StatusExceeded
	case used.GreaterThanOrEqual(limit.Mul(WarningRatio)):
		return StatusWarning
	default:
		return StatusOK
	}
}

// Evaluate builds a report per budget, in budget order.
func Evaluate(budgets []core.Budget, records []core.Transaction) []Report {
	out := make([]Report, 0, len(budgets))
	for _, b := range budgets {
		used := Used(b, records)
		r := Report{
			Budget:    b,
			Used:      used,
			Remaining: b.Amount.Sub(used),
			Status:    StatusFor(used, b.Amount),
		}
		if b.Amount.IsPositive() {
			r.Percent = used.Div(b.Amount).Mul(hundred).Round(1)
		}
		out = append(out, r)
	}
	return out
}

// Alerts keeps the reports that are not ok.
func Alerts(reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.Status != StatusOK {
			out = append(out, r)
		}
	}
	return out
}

// LogAlerts emits one warning per alert. It runs on every evaluation, so the
// same alert is reported again each time the figures are shown.
func LogAlerts(ctx context.Context, logger *log.Logger, alerts []Report) {
	if len(alerts) == 0 {
		return
	}
	l := log.Or(logger).WithComponent(log.ComponentBudget)
	for _, a := range alerts {
		l.WarnContext(ctx, "Budget alert",
			log.FieldCategory, a.Budget.Category,
			log.FieldBudgetState, string(a.Status),
			log.FieldAmount, a.Budget.Amount.StringFixed(2),
			"used", a.Used.StringFixed(2),
			"percent", a.Percent.String(),
			"period", string(a.Budget.Period))
	}
}

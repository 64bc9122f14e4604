package stats

import (
	"keeptrack/internal/budget"
	"keeptrack/internal/core"
)

// RecentCount is the number of records shown in the recent list.
const RecentCount = 5

// Dashboard bundles every figure shown on the overview screen.
type Dashboard struct {
	Totals          core.Totals           `json:"totals"`
	Today           core.Totals           `json:"today"`
	Month           core.Totals           `json:"month"`
	ExpenseByCat    []core.CategoryAmount `json:"expenseByCategory"`
	IncomeByCat     []core.CategoryAmount `json:"incomeByCategory"`
	Recent          []core.Transaction    `json:"recent"`
	Budgets         []budget.Report       `json:"budgets"`
	Alerts          []budget.Report       `json:"alerts"`
	TransactionSize int                   `json:"transactionCount"`
}

// BuildDashboard computes the overview for records and budgets as of today.
func BuildDashboard(records []core.Transaction, budgets []core.Budget, today core.Date) Dashboard {
	reports := budget.Evaluate(budgets, records)
	return Dashboard{
		Totals:          Totals(records),
		Today:           TotalsForDate(records, today),
		Month:           TotalsForMonth(records, today.Year(), int(today.Month())),
		ExpenseByCat:    CategoryBreakdown(records, core.Expense),
		IncomeByCat:     CategoryBreakdown(records, core.Income),
		Recent:          Recent(records, RecentCount),
		Budgets:         reports,
		Alerts:          budget.Alerts(reports),
		TransactionSize: len(records),
	}
}

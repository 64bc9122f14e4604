package core

import "github.com/shopspring/decimal"

// Totals is the income/expense/balance triple every dashboard figure is built from.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// MonthTotals holds the income and expense recorded in one YYYY-MM bucket.
type MonthTotals struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// BalancePoint is one step of the running balance.
type BalancePoint struct {
	Date    Date            `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

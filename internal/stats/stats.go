// Package stats derives totals, breakdowns and time series from a list of
// transactions. Every function is a pure linear scan; callers pre-filter the
// list (for example to one owner) before aggregating.
package stats

import (
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
)

// Totals sums income and expense over all records.
func Totals(records []core.Transaction) core.Totals {
	var t core.Totals
	for _, r := range records {
		switch r.Type {
		case core.Income:
			t.Income = t.Income.Add(r.Amount)
		case core.Expense:
			t.Expense = t.Expense.Add(r.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// TotalsForDate restricts Totals to records dated exactly d.
func TotalsForDate(records []core.Transaction, d core.Date) core.Totals {
	return Totals(where(records, func(r core.Transaction) bool {
		return r.Date.Compare(d) == 0
	}))
}

// TotalsForMonth restricts Totals to records dated on or after the first day
// of the given month. Later months are included as well.
func TotalsForMonth(records []core.Transaction, year, month int) core.Totals {
	first := core.NewDate(year, month, 1)
	return Totals(where(records, func(r core.Transaction) bool {
		return r.Date.Compare(first) >= 0
	}))
}

// CategoryBreakdown sums amounts of the given type per category, in the
// order each category is first seen.
func CategoryBreakdown(records []core.Transaction, t core.TxType) []core.CategoryAmount {
	var out []core.CategoryAmount
	index := make(map[string]int)
	for _, r := range records {
		if r.Type != t {
			continue
		}
		i, ok := index[r.Category]
		if !ok {
			i = len(out)
			index[r.Category] = i
			out = append(out, core.CategoryAmount{Category: r.Category})
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}

// MonthlySeries buckets records by YYYY-MM, ascending.
func MonthlySeries(records []core.Transaction) []core.MonthTotals {
	buckets := make(map[string]*core.MonthTotals)
	for _, r := range records {
		key := r.Date.MonthKey()
		b, ok := buckets[key]
		if !ok {
			b = &core.MonthTotals{Month: key}
			buckets[key] = b
		}
		switch r.Type {
		case core.Income:
			b.Income = b.Income.Add(r.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(r.Amount)
		}
	}
	out := make([]core.MonthTotals, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CumulativeBalanceSeries returns the running balance after each record,
// with records ordered by date. Records sharing a date keep their
// insertion order.
func CumulativeBalanceSeries(records []core.Transaction) []core.BalancePoint {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int {
		return a.Date.Compare(b.Date)
	})
	out := make([]core.BalancePoint, 0, len(sorted))
	balance := decimal.Zero
	for _, r := range sorted {
		balance = balance.Add(r.Type.Signed(r.Amount))
		out = append(out, core.BalancePoint{Date: r.Date, Balance: balance})
	}
	return out
}

// Recent returns the last n records added, newest first.
func Recent(records []core.Transaction, n int) []core.Transaction {
	if n <= 0 {
		return nil
	}
	start := max(len(records)-n, 0)
	out := slices.Clone(records[start:])
	slices.Reverse(out)
	return out
}

func where(records []core.Transaction, keep func(core.Transaction) bool) []core.Transaction {
	var out []core.Transaction
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

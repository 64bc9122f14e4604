package google

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
)

func TestParseRows(t *testing.T) {
	values := [][]any{
		{"ID", "Owner", "Type", "Amount", "Category", "Description", "Date", "CreatedAt", "Recurrence"},
		{"01A", "u1", "expense", "40", "Food", "lunch, out", "2024-01-10", "2024-01-10T12:00:00Z", "none"},
		{"01B", "u2", "income", "100", "Salary", "", "2024-01-01"},
		{"01C", "u1", "INCOME", 1500.5, "Salary", "pay", "2024-01-31"},
		{"01D", "u1", "expense", "abc", "Food", "", "2024-01-11"},
		{"01E", "u1", "expense", "3"},
		{"01A", "u1", "expense", "99", "Food", "dup", "2024-01-10"},
	}

	got, skipped := parseRows(values, "u1")
	if skipped != 2 {
		t.Fatalf("expected 2 skipped rows, got %d", skipped)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transactions, got %d: %+v", len(got), got)
	}
	first := got[0]
	if first.ID != "01A" || first.Description != "lunch, out" || !first.Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected first row %+v", first)
	}
	if !first.CreatedAt.Equal(time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected created at %v", first.CreatedAt)
	}
	if got[1].Type != core.Income || !got[1].Amount.Equal(decimal.RequireFromString("1500.5")) {
		t.Fatalf("unexpected second row %+v", got[1])
	}
}

func TestToRowRoundTrip(t *testing.T) {
	tx := core.Transaction{
		ID: "01X", OwnerID: "u9", Type: core.Expense, Amount: decimal.RequireFromString("12.34"),
		Category: "Rent", Description: "march", Date: core.NewDate(2024, 3, 1),
		CreatedAt: time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC),
	}
	row := toRow(tx)
	if len(row) != numCols {
		t.Fatalf("expected %d columns, got %d", numCols, len(row))
	}
	if row[colRecurrence] != "none" {
		t.Fatalf("empty recurrence should be written as none, got %v", row[colRecurrence])
	}
	back, err := fromRow(toStrings(row))
	if err != nil {
		t.Fatalf("fromRow: %v", err)
	}
	if back.ID != tx.ID || !back.Amount.Equal(tx.Amount) || back.Date.String() != "2024-03-01" || !back.CreatedAt.Equal(tx.CreatedAt) {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestContainsID(t *testing.T) {
	values := [][]any{{"ID"}, {"01A", "u1"}, {}}
	if !containsID(values, "01A") || containsID(values, "01B") {
		t.Fatalf("containsID mismatch")
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheet: "Transactions"}
	valid := core.Transaction{ID: "1", Type: core.Expense, Amount: decimal.NewFromInt(1), Category: "Food", Date: core.NewDate(2024, 1, 1)}
	if err := c.Insert(context.Background(), valid); err == nil {
		t.Fatalf("expected error without service")
	}
	invalid := valid
	invalid.Amount = decimal.Zero
	if err := c.Insert(context.Background(), invalid); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := c.ListByOwner(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for missing spreadsheet id")
	}
	if _, err := New(context.Background(), Options{SpreadsheetID: "x"}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

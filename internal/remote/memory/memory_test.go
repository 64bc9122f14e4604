package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
)

func tx(id, owner string) core.Transaction {
	return core.Transaction{
		ID: id, OwnerID: owner, Type: core.Expense, Amount: decimal.NewFromInt(3),
		Category: "Food", Date: core.NewDate(2024, 1, 1),
	}
}

func TestInsertAndListByOwner(t *testing.T) {
	s := New(tx("seed", "u1"))
	ctx := context.Background()

	if err := s.Insert(ctx, tx("a", "u1")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, tx("b", "u2")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, tx("a", "u1")); err != nil {
		t.Fatalf("duplicate insert must succeed: %v", err)
	}

	got, _ := s.ListByOwner(ctx, "u1")
	if len(got) != 2 || got[0].ID != "seed" || got[1].ID != "a" {
		t.Fatalf("unexpected list %+v", got)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 stored, got %d", s.Len())
	}
	none, _ := s.ListByOwner(ctx, "nobody")
	if len(none) != 0 {
		t.Fatalf("expected empty list")
	}
}

func TestInsertRejectsInvalid(t *testing.T) {
	bad := tx("x", "u1")
	bad.Amount = decimal.Zero
	if err := New().Insert(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

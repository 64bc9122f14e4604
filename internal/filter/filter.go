// Package filter selects and orders transactions for list and export views.
package filter

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"keeptrack/internal/core"
)

// All matches every value of a type or category criterion.
const All = "all"

// Criteria is a conjunction of optional predicates. Zero values match everything.
type Criteria struct {
	Search   string
	Type     string
	Category string
	From     core.Date
	To       core.Date
}

// Apply returns the records matching c, sorted by date descending. Records
// sharing a date keep their relative order.
func Apply(records []core.Transaction, c Criteria) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if c.matches(r, search) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	return out
}

func (c Criteria) matches(r core.Transaction, search string) bool {
	if search != "" &&
		!strings.Contains(strings.ToLower(r.Category), search) &&
		!strings.Contains(strings.ToLower(r.Description), search) {
		return false
	}
	if c.Type != "" && c.Type != All && string(r.Type) != c.Type {
		return false
	}
	if c.Category != "" && c.Category != All && r.Category != c.Category {
		return false
	}
	if !c.From.IsZero() && r.Date.Compare(c.From) < 0 {
		return false
	}
	if !c.To.IsZero() && r.Date.Compare(c.To) > 0 {
		return false
	}
	return true
}

// IsEmpty reports whether c selects every record.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Search) == "" &&
		(c.Type == "" || c.Type == All) &&
		(c.Category == "" || c.Category == All) &&
		c.From.IsZero() && c.To.IsZero()
}

// FromQuery reads criteria from search, type, category, from and to parameters.
func FromQuery(q url.Values) (Criteria, error) {
	c := Criteria{
		Search:   q.Get("search"),
		Type:     strings.ToLower(strings.TrimSpace(q.Get("type"))),
		Category: strings.TrimSpace(q.Get("category")),
	}
	if c.Type != "" && c.Type != All {
		if err := core.TxType(c.Type).Validate(); err != nil {
			return Criteria{}, err
		}
	}
	var err error
	if v := q.Get("from"); v != "" {
		if c.From, err = core.ParseDate(v); err != nil {
			return Criteria{}, fmt.Errorf("from: %w", err)
		}
	}
	if v := q.Get("to"); v != "" {
		if c.To, err = core.ParseDate(v); err != nil {
			return Criteria{}, fmt.Errorf("to: %w", err)
		}
	}
	return c, nil
}

// ForOwner keeps the records visible to owner: its own and those created
// offline. The offline owner sees everything.
func ForOwner(records []core.Transaction, owner string) []core.Transaction {
	if owner == "" || owner == core.Offline {
		return slices.Clone(records)
	}
	out := make([]core.Transaction, 0, len(records))
	for _, r := range records {
		if r.OwnerID == owner || r.OwnerID == core.Offline {
			out = append(out, r)
		}
	}
	return out
}

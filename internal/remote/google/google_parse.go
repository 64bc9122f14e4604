package google

import (
	"fmt"
	"strings"
	"time"

	"keeptrack/internal/core"
)

// Column order of the transactions sheet.
const (
	colID = iota
	colOwner
	colType
	colAmount
	colCategory
	colDescription
	colDate
	colCreatedAt
	colRecurrence
	numCols
)

func toRow(tx core.Transaction) []any {
	recurrence := string(tx.Recurrence)
	if recurrence == "" {
		recurrence = string(core.None)
	}
	return []any{
		tx.ID,
		tx.OwnerID,
		string(tx.Type),
		tx.Amount.String(),
		tx.Category,
		tx.Description,
		tx.Date.String(),
		tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		recurrence,
	}
}

// parseRows converts a values matrix (as returned by the Sheets API) into
// the owner's transactions. Header and malformed rows are skipped and
// counted. A repeated ID keeps its first row.
func parseRows(values [][]any, owner string) ([]core.Transaction, int) {
	var out []core.Transaction
	seen := map[string]bool{}
	skipped := 0
	for i, row := range values {
		cols := toStrings(row)
		if i == 0 && strings.EqualFold(safeGet(cols, colID), "id") {
			continue
		}
		if safeGet(cols, colOwner) != owner {
			continue
		}
		tx, err := fromRow(cols)
		if err != nil {
			skipped++
			continue
		}
		if seen[tx.ID] {
			continue
		}
		seen[tx.ID] = true
		out = append(out, tx)
	}
	return out, skipped
}

func fromRow(cols []string) (core.Transaction, error) {
	if len(cols) < colDate+1 {
		return core.Transaction{}, fmt.Errorf("short row: %d columns", len(cols))
	}
	amount, err := core.ParseAmount(cols[colAmount])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", cols[colAmount], err)
	}
	date, err := core.ParseDate(cols[colDate])
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          cols[colID],
		OwnerID:     cols[colOwner],
		Type:        core.TxType(strings.ToLower(cols[colType])),
		Amount:      amount,
		Category:    cols[colCategory],
		Description: cols[colDescription],
		Date:        date,
		Recurrence:  core.Recurrence(safeGet(cols, colRecurrence)),
	}
	if ts := safeGet(cols, colCreatedAt); ts != "" {
		if created, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			tx.CreatedAt = created
		}
	}
	if tx.ID == "" {
		return core.Transaction{}, fmt.Errorf("missing id")
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func containsID(values [][]any, id string) bool {
	for _, row := range values {
		if len(row) > colID && strings.TrimSpace(fmt.Sprint(row[colID])) == id {
			return true
		}
	}
	return false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

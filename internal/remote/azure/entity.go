package azure

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"keeptrack/internal/core"
)

// entity is the table row for a transaction. Amount is stored as a string
// so that decimal values survive the round trip exactly.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
	Type         string `json:"Type"`
	Amount       string `json:"Amount"`
	Category     string `json:"Category"`
	Description  string `json:"Description"`
	Date         string `json:"Date"`
	CreatedAt    string `json:"CreatedAt"`
	Recurrence   string `json:"Recurrence,omitempty"`
}

func toEntity(tx core.Transaction) ([]byte, error) {
	e := entity{
		PartitionKey: tx.OwnerID,
		RowKey:       tx.ID,
		Type:         string(tx.Type),
		Amount:       tx.Amount.String(),
		Category:     tx.Category,
		Description:  tx.Description,
		Date:         tx.Date.String(),
		CreatedAt:    tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		Recurrence:   string(tx.Recurrence),
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entity: %w", err)
	}
	return b, nil
}

func fromEntity(raw []byte) (core.Transaction, error) {
	var e entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return core.Transaction{}, fmt.Errorf("unmarshal entity: %w", err)
	}
	amount, err := decimal.NewFromString(e.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", e.Amount, err)
	}
	date, err := core.ParseDate(e.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          e.RowKey,
		OwnerID:     e.PartitionKey,
		Type:        core.TxType(e.Type),
		Amount:      amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        date,
		Recurrence:  core.Recurrence(e.Recurrence),
	}
	if e.CreatedAt != "" {
		if created, err := time.Parse(time.RFC3339Nano, e.CreatedAt); err == nil {
			tx.CreatedAt = created
		}
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// ownerFilter builds an OData filter on the partition key, doubling single
// quotes inside the owner value.
func ownerFilter(owner string) string {
	return fmt.Sprintf("PartitionKey eq '%s'", strings.ReplaceAll(owner, "'", "''"))
}

// sortByCreation orders rows by creation time. The service returns them by RowKey.
func sortByCreation(txs []core.Transaction) {
	slices.SortStableFunc(txs, func(a, b core.Transaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"keeptrack/internal/core"
	"keeptrack/internal/ledger"
	"keeptrack/internal/log"
	"keeptrack/internal/storage"
)

// RecurringProcessor posts a fresh copy of every recurring transaction that
// has come due. The original record acts as the template; the date of its
// last posting is kept per owner under storage.KeyRecurringRuns.
type RecurringProcessor struct {
	sessions *ledger.Sessions
	kv       storage.KV
	logger   *log.Logger
}

// NewRecurringProcessor builds a processor over sessions. kv is the root
// store; run dates are kept in each owner's namespace of it.
func NewRecurringProcessor(sessions *ledger.Sessions, kv storage.KV, logger *log.Logger) *RecurringProcessor {
	return &RecurringProcessor{
		sessions: sessions,
		kv:       kv,
		logger:   log.Or(logger).WithComponent(log.ComponentRecurring),
	}
}

// ProcessDue posts due transactions for each owner and returns how many were
// created. Failures of one owner do not stop the others.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, owners []string, now time.Time) (int, error) {
	if p.sessions == nil || p.kv == nil {
		return 0, errors.New("processor not properly initialized")
	}

	total := 0
	var errs []error
	for _, owner := range owners {
		n, err := p.processOwner(ctx, owner, now)
		total += n
		if err != nil {
			p.logger.ErrorOp(ctx, "Recurring processing failed", log.OpCreate, err, log.FieldOwner, owner)
			errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
		}
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"posted", total,
		"owners", len(owners),
		"processing_date", core.DateOf(now).String())
	return total, errors.Join(errs...)
}

func (p *RecurringProcessor) processOwner(ctx context.Context, owner string, now time.Time) (int, error) {
	store, err := p.sessions.Get(ctx, owner)
	if err != nil {
		return 0, err
	}
	kv := storage.Namespace(p.kv, store.Owner())

	runs, err := loadRuns(ctx, kv)
	if err != nil {
		return 0, err
	}

	today := core.DateOf(now)
	posted := 0
	changed := false
	for _, tx := range store.Transactions() {
		if !tx.Recurrence.IsRecurring() {
			continue
		}
		checker, err := GetDuenessChecker(tx.Recurrence)
		if err != nil {
			p.logger.WarnContext(ctx, "Skipping transaction", log.FieldTxID, tx.ID, log.FieldError, err)
			continue
		}

		last, seen := runs[tx.ID]
		if !seen {
			// the original posting counts as the first run
			last = tx.Date
			runs[tx.ID] = last
			changed = true
		}
		if !checker.IsDue(last.Time, now, tx.Date) {
			continue
		}

		created, err := store.Add(ctx, core.NewTransaction{
			Type:        tx.Type,
			Amount:      tx.Amount,
			Category:    tx.Category,
			Description: tx.Description,
			Date:        today,
			Recurrence:  core.None,
		})
		if err != nil {
			p.logger.ErrorOp(ctx, "Failed to post recurring transaction", log.OpCreate, err, log.FieldTxID, tx.ID)
			continue
		}
		runs[tx.ID] = today
		changed = true
		posted++
		p.logger.InfoContext(ctx, "Posted recurring transaction",
			"template_id", tx.ID,
			log.FieldTxID, created.ID,
			log.FieldAmount, created.Amount.String(),
			"recurrence", tx.Recurrence)
	}

	if changed {
		if err := saveRuns(ctx, kv, runs); err != nil {
			return posted, err
		}
	}
	return posted, nil
}

func loadRuns(ctx context.Context, kv storage.KV) (map[string]core.Date, error) {
	runs := make(map[string]core.Date)
	raw, err := kv.Get(ctx, storage.KeyRecurringRuns)
	if errors.Is(err, storage.ErrNotFound) {
		return runs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recurring runs: %w", err)
	}
	if err := json.Unmarshal(raw, &runs); err != nil {
		return make(map[string]core.Date), nil
	}
	return runs, nil
}

func saveRuns(ctx context.Context, kv storage.KV, runs map[string]core.Date) error {
	b, err := json.Marshal(runs)
	if err != nil {
		return fmt.Errorf("encode recurring runs: %w", err)
	}
	if err := kv.Put(ctx, storage.KeyRecurringRuns, b); err != nil {
		return fmt.Errorf("write recurring runs: %w", err)
	}
	return nil
}

// OwnersFunc lists the owners whose ledgers are scanned on each round.
type OwnersFunc func(ctx context.Context) ([]string, error)

// Run processes due transactions once immediately and then every interval
// until ctx is done. Failed rounds are logged and retried on the next tick.
func (p *RecurringProcessor) Run(ctx context.Context, interval time.Duration, owners OwnersFunc) error {
	if interval <= 0 {
		return fmt.Errorf("invalid recurring interval %v", interval)
	}
	p.logger.InfoContext(ctx, "Recurring processor configured", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.runOnce(ctx, time.Now(), owners)
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			p.runOnce(ctx, now, owners)
		}
	}
}

func (p *RecurringProcessor) runOnce(ctx context.Context, now time.Time, owners OwnersFunc) {
	list, err := owners(ctx)
	if err != nil {
		p.logger.ErrorOp(ctx, "Listing owners failed", log.OpList, err)
		return
	}
	if _, err := p.ProcessDue(ctx, list, now); err != nil && ctx.Err() == nil {
		p.logger.WarnContext(ctx, "Recurring round finished with errors", log.FieldError, err)
	}
}

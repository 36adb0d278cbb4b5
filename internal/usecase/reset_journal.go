package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// ResetJournalParams contains parameters for resetting a journal
type ResetJournalParams struct {
	Network string
	// Steps to forget; empty resets the whole journal
	Steps []string
}

// ResetJournalResult contains the outcome of a reset
type ResetJournalResult struct {
	Network string
	Removed []string
	// Missing lists requested steps that had no entry
	Missing []string
}

// ResetJournal removes journal entries so their steps execute again on the next run
type ResetJournal struct {
	journals JournalStore
	log      *slog.Logger
}

// NewResetJournal creates a new ResetJournal use case
func NewResetJournal(journals JournalStore, log *slog.Logger) *ResetJournal {
	return &ResetJournal{
		journals: journals,
		log:      log.With("component", "ResetJournal"),
	}
}

// Run executes the use case
func (uc *ResetJournal) Run(ctx context.Context, params ResetJournalParams) (*ResetJournalResult, error) {
	lock, err := uc.journals.Lock(ctx, params.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to lock journal for %s: %w", params.Network, err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			uc.log.Warn("failed to release journal lock", "network", params.Network, "error", err)
		}
	}()

	journal, err := uc.journals.Load(ctx, params.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal for %s: %w", params.Network, err)
	}

	result := &ResetJournalResult{Network: params.Network}
	result.Missing = lo.Filter(lo.Uniq(params.Steps), func(id string, _ int) bool {
		_, ok := journal.Lookup(id)
		return !ok
	})
	result.Removed = journal.Remove(params.Steps...)

	if len(result.Removed) == 0 {
		return result, nil
	}

	if err := uc.journals.Persist(ctx, journal); err != nil {
		return nil, fmt.Errorf("failed to persist journal for %s: %w", params.Network, err)
	}
	uc.log.Debug("journal entries removed", "network", params.Network, "steps", result.Removed)
	return result, nil
}

package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// ShowJournalParams contains parameters for showing a journal
type ShowJournalParams struct {
	Network string
}

// JournalEntry is one recorded step
type JournalEntry struct {
	StepID string
	Result *domain.StepResult
}

// ShowJournalResult contains the journal of a network
type ShowJournalResult struct {
	Network  string
	Revision uint64
	Entries  []JournalEntry
	Summary  map[domain.StepStatus]int
}

// ShowJournal reads the journal of a network
type ShowJournal struct {
	journals JournalStore
}

// NewShowJournal creates a new ShowJournal use case
func NewShowJournal(journals JournalStore) *ShowJournal {
	return &ShowJournal{journals: journals}
}

// Run executes the use case
func (uc *ShowJournal) Run(ctx context.Context, params ShowJournalParams) (*ShowJournalResult, error) {
	journal, err := uc.journals.Load(ctx, params.Network)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal for %s: %w", params.Network, err)
	}

	result := &ShowJournalResult{
		Network:  params.Network,
		Revision: journal.Revision,
		Summary:  make(map[domain.StepStatus]int),
	}
	for _, id := range journal.StepIDs() {
		r := journal.Steps[id]
		result.Entries = append(result.Entries, JournalEntry{StepID: id, Result: r})
		result.Summary[r.Status]++
	}
	return result, nil
}

package domain

import (
	"fmt"
	"sort"
)

// StepStatus is the recorded state of a step on a network
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
)

// StepOutputs are the values a step exposes to later steps
type StepOutputs struct {
	Address string `json:"address,omitempty"`
	TxID    string `json:"txId,omitempty"`
}

// Field returns the output value with the given field name
func (o StepOutputs) Field(name string) (string, bool) {
	switch name {
	case OutputAddress:
		return o.Address, o.Address != ""
	case OutputTxID:
		return o.TxID, o.TxID != ""
	default:
		return "", false
	}
}

// StepResult is the outcome of executing a step
type StepResult struct {
	Status   StepStatus `json:"status"`
	Contract string     `json:"contract,omitempty"`
	Function string     `json:"function,omitempty"`
	StepOutputs
	Error string `json:"error,omitempty"`
}

// Succeeded reports whether the result is a terminal success
func (r *StepResult) Succeeded() bool {
	return r != nil && r.Status == StepStatusSucceeded
}

// Journal records step outcomes for one network.
// Revision is the persisted version the journal was loaded at; stores use it
// to reject writes based on a stale read.
type Journal struct {
	Network  string                 `json:"network"`
	Revision uint64                 `json:"revision"`
	Steps    map[string]*StepResult `json:"steps"`
}

// NewJournal creates an empty journal for a network
func NewJournal(network string) *Journal {
	return &Journal{
		Network: network,
		Steps:   make(map[string]*StepResult),
	}
}

// Lookup returns the recorded result of a step
func (j *Journal) Lookup(stepID string) (*StepResult, bool) {
	r, ok := j.Steps[stepID]
	return r, ok && r != nil
}

// DropEmpty removes entries that carry no result, such as a step decoded from
// a JSON null. It returns the dropped step ids in sorted order.
func (j *Journal) DropEmpty() []string {
	var dropped []string
	for id, r := range j.Steps {
		if r == nil {
			delete(j.Steps, id)
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// RecordPending marks a step as submitted but not yet confirmed
func (j *Journal) RecordPending(step *Step) error {
	return j.set(step.ID, &StepResult{
		Status:   StepStatusPending,
		Contract: step.Contract,
		Function: step.Function,
	})
}

// RecordSuccess stores the outputs of a successful step
func (j *Journal) RecordSuccess(step *Step, outputs StepOutputs) error {
	return j.set(step.ID, &StepResult{
		Status:      StepStatusSucceeded,
		Contract:    step.Contract,
		Function:    step.Function,
		StepOutputs: outputs,
	})
}

// RecordFailure stores the error of a failed step
func (j *Journal) RecordFailure(step *Step, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return j.set(step.ID, &StepResult{
		Status:   StepStatusFailed,
		Contract: step.Contract,
		Function: step.Function,
		Error:    msg,
	})
}

// Remove deletes the entries of the given steps, or every entry when none are given.
// It returns the removed step ids in sorted order.
func (j *Journal) Remove(stepIDs ...string) []string {
	var removed []string
	if len(stepIDs) == 0 {
		for id := range j.Steps {
			removed = append(removed, id)
		}
		j.Steps = make(map[string]*StepResult)
	} else {
		for _, id := range stepIDs {
			if _, ok := j.Steps[id]; ok {
				delete(j.Steps, id)
				removed = append(removed, id)
			}
		}
	}
	sort.Strings(removed)
	return removed
}

// StepIDs returns the recorded step ids in sorted order
func (j *Journal) StepIDs() []string {
	ids := make([]string, 0, len(j.Steps))
	for id := range j.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the journal
func (j *Journal) Clone() *Journal {
	c := &Journal{
		Network:  j.Network,
		Revision: j.Revision,
		Steps:    make(map[string]*StepResult, len(j.Steps)),
	}
	for id, r := range j.Steps {
		if r == nil {
			continue
		}
		cp := *r
		c.Steps[id] = &cp
	}
	return c
}

func (j *Journal) set(stepID string, result *StepResult) error {
	if j.Steps == nil {
		j.Steps = make(map[string]*StepResult)
	}
	if existing, ok := j.Steps[stepID]; ok && existing.Succeeded() {
		return fmt.Errorf("step %q already succeeded on %s: %w", stepID, j.Network, ErrAlreadyExists)
	}
	j.Steps[stepID] = result
	return nil
}

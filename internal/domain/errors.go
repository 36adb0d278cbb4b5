package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when trying to overwrite an immutable record
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidAddress is returned when an Ethereum address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrContractNotFound is returned when no artifact matches a contract identifier
	ErrContractNotFound = errors.New("contract not found")

	// ErrJournalConflict is returned when the persisted journal changed since it was loaded
	ErrJournalConflict = errors.New("journal was modified by another run")

	// ErrJournalLocked is returned when another run holds the journal of a network
	ErrJournalLocked = errors.New("journal is locked by another run")
)

// MalformedPlanError means the plan definition itself is invalid. Nothing was executed.
type MalformedPlanError struct {
	Plan   string
	StepID string
	Reason string
}

func (e *MalformedPlanError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("malformed plan %s: %s", e.Plan, e.Reason)
	}
	return fmt.Sprintf("malformed plan %s: step %q: %s", e.Plan, e.StepID, e.Reason)
}

// CyclicReferenceError means the steps of a plan cannot be ordered
type CyclicReferenceError struct {
	Cycle []string
}

func (e *CyclicReferenceError) Error() string {
	members := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("cyclic reference between steps: %s", strings.Join(members, " -> "))
}

// MissingSecretError means a secret referenced by the plan or network is not configured
type MissingSecretError struct {
	Name   string
	StepID string
}

func (e *MissingSecretError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("secret %s is not set", e.Name)
	}
	return fmt.Sprintf("step %q: secret %s is not set", e.StepID, e.Name)
}

// ChainError means the chain rejected or reverted a deploy or call
type ChainError struct {
	StepID string
	TxID   string
	Reason string
	Err    error
}

func (e *ChainError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	if e.TxID != "" {
		msg = fmt.Sprintf("%s (tx %s)", msg, e.TxID)
	}
	if e.StepID == "" {
		return msg
	}
	return fmt.Sprintf("step %q: %s", e.StepID, msg)
}

func (e *ChainError) Unwrap() error { return e.Err }

// TimeoutError means confirmation was not observed within the step timeout
type TimeoutError struct {
	StepID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("step %q: no confirmation within %s", e.StepID, e.Timeout)
}

// CancellationError means the caller stopped the run between steps
type CancellationError struct {
	// NextStep is the first step that was not started
	NextStep string
	Cause    error
}

func (e *CancellationError) Error() string {
	if e.NextStep == "" {
		return "execution cancelled"
	}
	return fmt.Sprintf("execution cancelled before step %q", e.NextStep)
}

func (e *CancellationError) Unwrap() error { return e.Cause }

package cli

import (
	"context"
	"errors"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// Process exit codes
const (
	ExitSuccess         = 0
	ExitError           = 1
	ExitMalformedPlan   = 2
	ExitCyclicReference = 3
	ExitChainFailure    = 4
	ExitCancelled       = 5
	ExitMissingSecret   = 6
)

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		malformed *domain.MalformedPlanError
		cyclic    *domain.CyclicReferenceError
		secret    *domain.MissingSecretError
		chainErr  *domain.ChainError
		timeout   *domain.TimeoutError
		cancelled *domain.CancellationError
	)
	switch {
	case errors.As(err, &malformed):
		return ExitMalformedPlan
	case errors.As(err, &cyclic):
		return ExitCyclicReference
	case errors.As(err, &secret):
		return ExitMissingSecret
	case errors.As(err, &timeout), errors.As(err, &chainErr):
		return ExitChainFailure
	case errors.As(err, &cancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	default:
		return ExitError
	}
}

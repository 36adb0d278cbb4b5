package usecase

import (
	"context"
	"time"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

// PlanRequest identifies a plan definition and its parameter overrides
type PlanRequest struct {
	Path string
	// Parameters maps parameter names to values written in plan syntax
	Parameters map[string]string
	// ParametersFile is an optional YAML or JSON object of parameter values
	ParametersFile string
}

// PlanLoader parses and validates plan definitions
type PlanLoader interface {
	Load(ctx context.Context, req PlanRequest) (*domain.Plan, error)
}

// JournalStore persists the execution journal of each network.
// Persist is a compare-and-swap on Journal.Revision and bumps it on success.
type JournalStore interface {
	Lock(ctx context.Context, network string) (JournalLock, error)
	Load(ctx context.Context, network string) (*domain.Journal, error)
	Persist(ctx context.Context, journal *domain.Journal) error
}

// JournalLock is a held single-writer lock on a network's journal
type JournalLock interface {
	Unlock() error
}

// StepChecker resolves the artifact, function and literal arguments of a step
// without touching any network
type StepChecker interface {
	CheckStep(check domain.StepCheck) error
}

// ChainClient deploys contracts and calls functions on a network
type ChainClient interface {
	StepChecker
	Connect(ctx context.Context, network *config.Network) error
	DeployContract(ctx context.Context, req domain.DeployRequest, signer domain.SignerConfig) (*domain.DeployReceipt, error)
	CallFunction(ctx context.Context, req domain.CallRequest, signer domain.SignerConfig) (*domain.CallReceipt, error)
	Close()
}

// SecretStore serves secret values by name
type SecretStore interface {
	GetSecret(name string) (string, bool)
}

// Confirmer asks the user before on-chain actions
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// InteractiveSelector handles interactive selection
type InteractiveSelector interface {
	SelectNetwork(ctx context.Context, networks []string, prompt string) (string, error)
	// SelectSteps lets the user pick any number of journal entries
	SelectSteps(ctx context.Context, entries []JournalEntry, prompt string) ([]string, error)
}

// NetworkResolver handles network configuration resolution
type NetworkResolver interface {
	GetNetworks(ctx context.Context) []string
	ResolveNetwork(ctx context.Context, networkName string) (*config.Network, error)
}

// ChainStatus is what an RPC endpoint reports about the chain it serves
type ChainStatus struct {
	ChainID     uint64
	BlockNumber uint64
	BlockTime   time.Time
	// Latency is the round trip of the chain ID request
	Latency time.Duration
}

// ChainProbe reads live chain information from an RPC endpoint
type ChainProbe interface {
	Probe(ctx context.Context, rpcURL string) (*ChainStatus, error)
}

// Progress tracking interfaces

// Progress stages emitted while executing a plan
const (
	StagePlanCreated   = "plan_created"
	StageStepStarting  = "step_starting"
	StageStepCompleted = "step_completed"
	StageWarning       = "warning"
	StagePlanCompleted = "plan_completed"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

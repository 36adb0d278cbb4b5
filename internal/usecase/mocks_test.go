package usecase_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// MockChainClient is a mock implementation of ChainClient.
// CheckStep accepts every step unless rejected names it.
type MockChainClient struct {
	mock.Mock

	checkMu  sync.Mutex
	checked  []domain.StepCheck
	rejected map[string]error
}

func (m *MockChainClient) CheckStep(check domain.StepCheck) error {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()
	m.checked = append(m.checked, check)
	return m.rejected[check.StepID]
}

func (m *MockChainClient) reject(stepID string, err error) {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()
	if m.rejected == nil {
		m.rejected = make(map[string]error)
	}
	m.rejected[stepID] = err
}

func (m *MockChainClient) checkedSteps() []string {
	m.checkMu.Lock()
	defer m.checkMu.Unlock()
	ids := make([]string, len(m.checked))
	for i, c := range m.checked {
		ids[i] = c.StepID
	}
	return ids
}

func (m *MockChainClient) Connect(ctx context.Context, network *config.Network) error {
	args := m.Called(ctx, network)
	return args.Error(0)
}

func (m *MockChainClient) DeployContract(ctx context.Context, req domain.DeployRequest, signer domain.SignerConfig) (*domain.DeployReceipt, error) {
	args := m.Called(ctx, req, signer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeployReceipt), args.Error(1)
}

func (m *MockChainClient) CallFunction(ctx context.Context, req domain.CallRequest, signer domain.SignerConfig) (*domain.CallReceipt, error) {
	args := m.Called(ctx, req, signer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallReceipt), args.Error(1)
}

func (m *MockChainClient) Close() {
	m.Called()
}

// MockPlanLoader is a mock implementation of PlanLoader
type MockPlanLoader struct {
	mock.Mock
}

func (m *MockPlanLoader) Load(ctx context.Context, req usecase.PlanRequest) (*domain.Plan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

// MockConfirmer is a mock implementation of Confirmer
type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	args := m.Called(ctx, prompt)
	return args.Bool(0), args.Error(1)
}

// MockChainProbe is a mock implementation of ChainProbe
type MockChainProbe struct {
	mock.Mock
}

func (m *MockChainProbe) Probe(ctx context.Context, rpcURL string) (*usecase.ChainStatus, error) {
	args := m.Called(ctx, rpcURL)
	if status := args.Get(0); status != nil {
		return status.(*usecase.ChainStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

// memJournalStore keeps journals in memory with the same revision semantics as the real stores
type memJournalStore struct {
	mu       sync.Mutex
	journals map[string]*domain.Journal
	locked   map[string]bool
	persists int
	// snapshots holds a copy of the journal after every persist
	snapshots []*domain.Journal
	failAfter int // fail persists after this many succeeded, 0 disables
}

func newMemJournalStore() *memJournalStore {
	return &memJournalStore{
		journals: make(map[string]*domain.Journal),
		locked:   make(map[string]bool),
	}
}

type memLock struct {
	store   *memJournalStore
	network string
}

func (l *memLock) Unlock() error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	delete(l.store.locked, l.network)
	return nil
}

func (s *memJournalStore) Lock(_ context.Context, network string) (usecase.JournalLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked[network] {
		return nil, domain.ErrJournalLocked
	}
	s.locked[network] = true
	return &memLock{store: s, network: network}, nil
}

func (s *memJournalStore) Load(_ context.Context, network string) (*domain.Journal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.journals[network]; ok {
		return j.Clone(), nil
	}
	return domain.NewJournal(network), nil
}

func (s *memJournalStore) Persist(_ context.Context, journal *domain.Journal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter > 0 && s.persists >= s.failAfter {
		return fmt.Errorf("disk full")
	}
	var current uint64
	if existing, ok := s.journals[journal.Network]; ok {
		current = existing.Revision
	}
	if current != journal.Revision {
		return domain.ErrJournalConflict
	}
	journal.Revision++
	s.journals[journal.Network] = journal.Clone()
	s.snapshots = append(s.snapshots, journal.Clone())
	s.persists++
	return nil
}

func (s *memJournalStore) stored(network string) *domain.Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.journals[network]; ok {
		return j.Clone()
	}
	return nil
}

// recordingSink collects progress events
type recordingSink struct {
	mu     sync.Mutex
	events []usecase.ProgressEvent
	infos  []string
}

func (s *recordingSink) OnProgress(_ context.Context, event usecase.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Info(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infos = append(s.infos, message)
}

func (s *recordingSink) Error(string) {}

func (s *recordingSink) stages(stage string) []usecase.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []usecase.ProgressEvent
	for _, e := range s.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// staticNetworks resolves networks from a fixed map
type staticNetworks map[string]*config.Network

func (n staticNetworks) GetNetworks(context.Context) []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	return names
}

func (n staticNetworks) ResolveNetwork(_ context.Context, name string) (*config.Network, error) {
	network, ok := n[name]
	if !ok {
		return nil, fmt.Errorf("network %q: %w", name, domain.ErrNotFound)
	}
	return network, nil
}

// mapSecrets serves secrets from a map
type mapSecrets map[string]string

func (s mapSecrets) GetSecret(name string) (string, bool) {
	v, ok := s[name]
	return v, ok && v != ""
}

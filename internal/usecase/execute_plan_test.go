package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

const (
	testKey    = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	holderAddr = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

var testNetwork = &config.Network{
	Name:    "private",
	ChainID: 8795,
	RPCURL:  "https://blockchain.servers.web.tr/",
	Signer:  "PRIVATE_KEY",
}

func addrFor(stepID string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(stepID))
	return fmt.Sprintf("0x%040x", h.Sum32())
}

func txFor(stepID string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stepID))
	return fmt.Sprintf("0x%064x", h.Sum64())
}

type executorFixture struct {
	cfg       *config.RuntimeConfig
	chain     *MockChainClient
	journals  *memJournalStore
	sink      *recordingSink
	confirmer *MockConfirmer
	secrets   mapSecrets
	loader    *MockPlanLoader
	uc        *usecase.ExecutePlan
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()
	f := &executorFixture{
		cfg:       &config.RuntimeConfig{StepTimeout: 2 * time.Second, AssumeYes: true},
		chain:     &MockChainClient{},
		journals:  newMemJournalStore(),
		sink:      &recordingSink{},
		confirmer: &MockConfirmer{},
		secrets:   mapSecrets{"PRIVATE_KEY": testKey},
		loader:    &MockPlanLoader{},
	}
	f.chain.On("Connect", mock.Anything, testNetwork).Return(nil).Maybe()
	f.chain.On("Close").Return().Maybe()

	f.uc = usecase.NewExecutePlan(
		f.cfg,
		f.loader,
		staticNetworks{"private": testNetwork},
		f.journals,
		f.chain,
		f.secrets,
		f.confirmer,
		f.sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func deployFor(id string) interface{} {
	return mock.MatchedBy(func(r domain.DeployRequest) bool { return r.StepID == id })
}

func callFor(id string) interface{} {
	return mock.MatchedBy(func(r domain.CallRequest) bool { return r.StepID == id })
}

func (f *executorFixture) expectDeploy(id string) *mock.Call {
	return f.chain.On("DeployContract", mock.Anything, deployFor(id), mock.Anything).
		Return(&domain.DeployReceipt{Address: addrFor(id), TxID: txFor(id), BlockNumber: 1}, nil)
}

func (f *executorFixture) expectCall(id string) *mock.Call {
	return f.chain.On("CallFunction", mock.Anything, callFor(id), mock.Anything).
		Return(&domain.CallReceipt{TxID: txFor(id), BlockNumber: 2}, nil)
}

func (f *executorFixture) chainCalls() int {
	n := 0
	for _, c := range f.chain.Calls {
		if c.Method == "DeployContract" || c.Method == "CallFunction" {
			n++
		}
	}
	return n
}

func tokenMintPlan() *domain.Plan {
	return newPlan(
		deployStep("d1", "TokenA"),
		invokeStep("mint", domain.OutputRef("d1", domain.OutputAddress), "mint",
			domain.Literal(holderAddr), domain.Literal(big.NewInt(100))),
	)
}

func presalePlan() *domain.Plan {
	presale := domain.OutputRef("presale", domain.OutputAddress)
	return newPlan(
		deployStep("token", "GigaTronix"),
		deployStep("presale", "TokenPreSale"),
		invokeStep("initialize", presale, "initialize",
			domain.Literal("0x0567F2323251f0Aab15c8dFb1967E4e8A7D42aeE"),
			domain.Literal("0x55d398326f99059ff775485246999027b3197955")),
		invokeStep("set-token", presale, "changeSaleTokenAddress",
			domain.Literal(big.NewInt(1)), domain.OutputRef("token", domain.OutputAddress)),
	)
}

func (f *executorFixture) expectPresale() {
	f.expectDeploy("token")
	f.expectDeploy("presale")
	f.expectCall("initialize")
	f.expectCall("set-token")
}

func TestExecutePlan_TokenMintScenario(t *testing.T) {
	ctx := context.Background()
	f := newExecutorFixture(t)
	f.expectDeploy("d1").Once()
	f.expectCall("mint").Once()

	result, err := f.uc.Execute(ctx, tokenMintPlan(), "private")
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 2, result.Executed)
	assert.Equal(t, 0, result.Skipped)

	// The invoke targets the address recorded for d1 and borrows its ABI
	var call domain.CallRequest
	for _, c := range f.chain.Calls {
		if c.Method == "CallFunction" {
			call = c.Arguments.Get(1).(domain.CallRequest)
		}
	}
	assert.Equal(t, addrFor("d1"), call.Address)
	assert.Equal(t, "TokenA", call.Contract)
	assert.Equal(t, "mint", call.Function)
	require.Len(t, call.Args, 2)
	assert.Equal(t, holderAddr, call.Args[0])
	assert.Equal(t, int64(100), call.Args[1].(*big.Int).Int64())

	journal := f.journals.stored("private")
	require.NotNil(t, journal)
	assert.True(t, journal.Steps["d1"].Succeeded())
	assert.Equal(t, addrFor("d1"), journal.Steps["d1"].Address)
	assert.True(t, journal.Steps["mint"].Succeeded())
	assert.Equal(t, txFor("mint"), journal.Steps["mint"].TxID)

	// Second run against the same journal executes nothing
	second := newExecutorFixture(t)
	second.journals = f.journals
	second.uc = usecase.NewExecutePlan(second.cfg, second.loader, staticNetworks{"private": testNetwork},
		f.journals, second.chain, second.secrets, second.confirmer, second.sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	result, err = second.uc.Execute(ctx, tokenMintPlan(), "private")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Executed)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, second.chainCalls())
	second.chain.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	f.chain.AssertExpectations(t)
}

func TestExecutePlan_SignerPassedToChain(t *testing.T) {
	f := newExecutorFixture(t)
	f.expectDeploy("d1")
	f.expectCall("mint")

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.NoError(t, err)

	signer := domain.SignerConfig{Name: "PRIVATE_KEY", PrivateKey: testKey}
	f.chain.AssertCalled(t, "DeployContract", mock.Anything, deployFor("d1"), signer)
	f.chain.AssertCalled(t, "CallFunction", mock.Anything, callFor("mint"), signer)
	f.chain.AssertCalled(t, "Connect", mock.Anything, testNetwork)
	f.chain.AssertCalled(t, "Close")
}

func TestExecutePlan_ResumeMatchesFreshRun(t *testing.T) {
	ctx := context.Background()

	fresh := newExecutorFixture(t)
	fresh.expectPresale()
	_, err := fresh.uc.Execute(ctx, presalePlan(), "private")
	require.NoError(t, err)
	want := fresh.journals.stored("private")

	order := []string{"token", "presale", "initialize", "set-token"}
	for k := 1; k < len(order); k++ {
		t.Run(fmt.Sprintf("after %d successes", k), func(t *testing.T) {
			f := newExecutorFixture(t)
			f.expectPresale()

			partial := domain.NewJournal("private")
			for _, id := range order[:k] {
				partial.Steps[id] = want.Steps[id]
			}
			partial.Revision = 7
			f.journals.journals["private"] = partial

			result, err := f.uc.Execute(ctx, presalePlan(), "private")
			require.NoError(t, err)
			assert.Equal(t, len(order)-k, result.Executed)
			assert.Equal(t, k, result.Skipped)

			for i, id := range order {
				method, matcher := "DeployContract", deployFor(id)
				if id == "initialize" || id == "set-token" {
					method, matcher = "CallFunction", callFor(id)
				}
				if i < k {
					f.chain.AssertNotCalled(t, method, mock.Anything, matcher, mock.Anything)
				} else {
					f.chain.AssertCalled(t, method, mock.Anything, matcher, mock.Anything)
				}
			}

			got := f.journals.stored("private")
			assert.Equal(t, want.Steps, got.Steps)
		})
	}
}

func TestExecutePlan_ChainFailureHaltsPlan(t *testing.T) {
	revert := &domain.ChainError{TxID: "0xdead", Reason: "transaction reverted"}

	tests := []struct {
		name     string
		chainErr error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "chain error keeps its details",
			chainErr: revert,
			check: func(t *testing.T, err error) {
				var chainErr *domain.ChainError
				require.ErrorAs(t, err, &chainErr)
				assert.Equal(t, "presale", chainErr.StepID)
				assert.Equal(t, "0xdead", chainErr.TxID)
			},
		},
		{
			name:     "plain error is wrapped as a chain error",
			chainErr: errors.New("insufficient funds for gas * price + value"),
			check: func(t *testing.T, err error) {
				var chainErr *domain.ChainError
				require.ErrorAs(t, err, &chainErr)
				assert.Equal(t, "presale", chainErr.StepID)
				assert.Contains(t, err.Error(), "insufficient funds")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t)
			f.expectDeploy("token")
			f.chain.On("DeployContract", mock.Anything, deployFor("presale"), mock.Anything).Return(nil, tt.chainErr)

			result, err := f.uc.Execute(context.Background(), presalePlan(), "private")
			require.Error(t, err)
			tt.check(t, err)

			require.NotNil(t, result)
			require.NotNil(t, result.Failed)
			assert.Equal(t, "presale", result.Failed.Step.ID)
			assert.Equal(t, 1, result.Executed)

			journal := f.journals.stored("private")
			assert.True(t, journal.Steps["token"].Succeeded())
			assert.Equal(t, domain.StepStatusFailed, journal.Steps["presale"].Status)
			assert.NotEmpty(t, journal.Steps["presale"].Error)
			assert.NotContains(t, journal.Steps, "initialize")
			assert.NotContains(t, journal.Steps, "set-token")

			// No intermediate write ever marked a later step succeeded
			for _, snap := range f.journals.snapshots {
				for _, id := range []string{"initialize", "set-token"} {
					assert.NotContains(t, snap.Steps, id)
				}
			}
			f.chain.AssertNotCalled(t, "CallFunction", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExecutePlan_FailedStepIsRetriedOnNextRun(t *testing.T) {
	ctx := context.Background()
	f := newExecutorFixture(t)
	f.journals.journals["private"] = &domain.Journal{
		Network: "private",
		Steps: map[string]*domain.StepResult{
			"d1": {Status: domain.StepStatusSucceeded, Contract: "TokenA", StepOutputs: domain.StepOutputs{Address: addrFor("d1"), TxID: txFor("d1")}},
			"mint": {Status: domain.StepStatusFailed, Function: "mint", Error: "execution reverted"},
		},
	}
	f.expectCall("mint").Once()

	result, err := f.uc.Execute(ctx, tokenMintPlan(), "private")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Executed)
	assert.True(t, f.journals.stored("private").Steps["mint"].Succeeded())
	assert.Empty(t, f.journals.stored("private").Steps["mint"].Error)
}

func TestExecutePlan_Timeout(t *testing.T) {
	f := newExecutorFixture(t)
	plan := tokenMintPlan()
	plan.Steps[0].Timeout = 20 * time.Millisecond

	f.chain.On("DeployContract", mock.Anything, deployFor("d1"), mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)

	_, err := f.uc.Execute(context.Background(), plan, "private")

	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "d1", timeoutErr.StepID)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)

	journal := f.journals.stored("private")
	assert.Equal(t, domain.StepStatusFailed, journal.Steps["d1"].Status)
	assert.NotContains(t, journal.Steps, "mint")
}

func TestExecutePlan_CancellationBetweenSteps(t *testing.T) {
	f := newExecutorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var callCtxErr error
	f.chain.On("DeployContract", mock.Anything, deployFor("d1"), mock.Anything).
		Run(func(args mock.Arguments) {
			cancel()
			callCtxErr = args.Get(0).(context.Context).Err()
		}).
		Return(&domain.DeployReceipt{Address: addrFor("d1"), TxID: txFor("d1")}, nil)

	result, err := f.uc.Execute(ctx, tokenMintPlan(), "private")

	var cancelErr *domain.CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "mint", cancelErr.NextStep)
	assert.ErrorIs(t, err, context.Canceled)

	// The in-flight call was not interrupted and its outcome was recorded
	assert.NoError(t, callCtxErr)
	assert.Equal(t, 1, result.Executed)
	journal := f.journals.stored("private")
	assert.True(t, journal.Steps["d1"].Succeeded())
	assert.NotContains(t, journal.Steps, "mint")
	f.chain.AssertNotCalled(t, "CallFunction", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutePlan_StructuralErrorsMakeNoChainCalls(t *testing.T) {
	tests := []struct {
		name  string
		plan  *domain.Plan
		check func(t *testing.T, err error)
	}{
		{
			name: "cycle",
			plan: newPlan(
				deployStep("a", "A", domain.OutputRef("b", domain.OutputAddress)),
				deployStep("b", "B", domain.OutputRef("a", domain.OutputAddress)),
			),
			check: func(t *testing.T, err error) {
				var cycleErr *domain.CyclicReferenceError
				require.ErrorAs(t, err, &cycleErr)
				assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Cycle)
			},
		},
		{
			name: "duplicate identifier",
			plan: newPlan(deployStep("x", "A"), deployStep("x", "B")),
			check: func(t *testing.T, err error) {
				var malformed *domain.MalformedPlanError
				require.ErrorAs(t, err, &malformed)
				assert.Equal(t, "x", malformed.StepID)
				assert.Contains(t, err.Error(), `"x"`)
			},
		},
		{
			name: "address reference to itself",
			plan: newPlan(
				deployStep("d1", "TokenA"),
				invokeStep("mint", domain.OutputRef("mint", domain.OutputTxID), "mint"),
			),
			check: func(t *testing.T, err error) {
				var cycleErr *domain.CyclicReferenceError
				require.ErrorAs(t, err, &cycleErr)
				assert.Equal(t, []string{"mint"}, cycleErr.Cycle)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(t)

			result, err := f.uc.Execute(context.Background(), tt.plan, "private")
			require.Error(t, err)
			assert.Nil(t, result)
			tt.check(t, err)

			assert.Equal(t, 0, f.chainCalls())
			assert.Equal(t, 0, f.journals.persists)
			f.chain.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
		})
	}
}

func TestExecutePlan_RunPropagatesLoaderErrors(t *testing.T) {
	f := newExecutorFixture(t)
	req := usecase.PlanRequest{Path: "plans/dup.yaml"}
	malformed := &domain.MalformedPlanError{Plan: "dup", StepID: "x", Reason: `duplicate step id "x"`}
	f.loader.On("Load", mock.Anything, req).Return(nil, malformed)

	_, err := f.uc.Run(context.Background(), usecase.ExecutePlanParams{Network: "private", Plan: req})

	assert.ErrorIs(t, err, malformed)
	assert.Equal(t, 0, f.chainCalls())
	assert.Equal(t, 0, f.journals.persists)
}

func TestExecutePlan_RunLoadsPlan(t *testing.T) {
	f := newExecutorFixture(t)
	req := usecase.PlanRequest{Path: "plans/token.yaml", Parameters: map[string]string{"supply": "100"}}
	f.loader.On("Load", mock.Anything, req).Return(tokenMintPlan(), nil)
	f.expectDeploy("d1")
	f.expectCall("mint")

	result, err := f.uc.Run(context.Background(), usecase.ExecutePlanParams{Network: "private", Plan: req})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Executed)
	f.loader.AssertExpectations(t)
}

func TestExecutePlan_MissingSecrets(t *testing.T) {
	t.Run("missing signer fails before any step", func(t *testing.T) {
		f := newExecutorFixture(t)
		delete(f.secrets, "PRIVATE_KEY")

		_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")

		var missing *domain.MissingSecretError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "PRIVATE_KEY", missing.Name)
		assert.Empty(t, missing.StepID)
		assert.Equal(t, 0, f.chainCalls())
		assert.Equal(t, 0, f.journals.persists)
	})

	t.Run("missing argument secret fails its step", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.expectDeploy("d1")
		plan := newPlan(
			deployStep("d1", "TokenA"),
			invokeStep("grant", domain.OutputRef("d1", domain.OutputAddress), "grantRole", domain.SecretRef("ADMIN_ADDRESS")),
		)

		_, err := f.uc.Execute(context.Background(), plan, "private")

		var missing *domain.MissingSecretError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "ADMIN_ADDRESS", missing.Name)
		assert.Equal(t, "grant", missing.StepID)

		journal := f.journals.stored("private")
		assert.True(t, journal.Steps["d1"].Succeeded())
		assert.Equal(t, domain.StepStatusFailed, journal.Steps["grant"].Status)
		f.chain.AssertNotCalled(t, "CallFunction", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("secret arguments are resolved from the store", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.secrets["ADMIN_ADDRESS"] = holderAddr
		f.expectDeploy("d1")
		f.expectCall("grant")
		plan := newPlan(
			deployStep("d1", "TokenA"),
			invokeStep("grant", domain.OutputRef("d1", domain.OutputAddress), "grantRole",
				domain.Literal([]domain.Parameter{domain.SecretRef("ADMIN_ADDRESS"), domain.OutputRef("d1", domain.OutputAddress)})),
		)

		_, err := f.uc.Execute(context.Background(), plan, "private")
		require.NoError(t, err)

		f.chain.AssertCalled(t, "CallFunction", mock.Anything, mock.MatchedBy(func(r domain.CallRequest) bool {
			list, ok := r.Args[0].([]any)
			return ok && len(list) == 2 && list[0] == holderAddr && list[1] == addrFor("d1")
		}), mock.Anything)
	})
}

func TestExecutePlan_PendingEntryIsReExecutedWithWarning(t *testing.T) {
	f := newExecutorFixture(t)
	f.journals.journals["private"] = &domain.Journal{
		Network: "private",
		Steps: map[string]*domain.StepResult{
			"d1": {Status: domain.StepStatusPending, Contract: "TokenA"},
		},
	}
	f.expectDeploy("d1").Once()
	f.expectCall("mint").Once()

	result, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.NoError(t, err)

	warnings := f.sink.stages(usecase.StageWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "d1")
	assert.True(t, result.Steps[0].Interrupted)
	assert.True(t, f.journals.stored("private").Steps["d1"].Succeeded())
}

func TestExecutePlan_JournalWrittenAfterEveryTransition(t *testing.T) {
	f := newExecutorFixture(t)
	f.expectDeploy("d1")
	f.expectCall("mint")

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.NoError(t, err)

	require.Len(t, f.journals.snapshots, 4)
	statuses := func(j *domain.Journal) map[string]domain.StepStatus {
		out := map[string]domain.StepStatus{}
		for id, r := range j.Steps {
			out[id] = r.Status
		}
		return out
	}
	assert.Equal(t, map[string]domain.StepStatus{"d1": domain.StepStatusPending}, statuses(f.journals.snapshots[0]))
	assert.Equal(t, map[string]domain.StepStatus{"d1": domain.StepStatusSucceeded}, statuses(f.journals.snapshots[1]))
	assert.Equal(t, map[string]domain.StepStatus{"d1": domain.StepStatusSucceeded, "mint": domain.StepStatusPending}, statuses(f.journals.snapshots[2]))
	assert.Equal(t, map[string]domain.StepStatus{"d1": domain.StepStatusSucceeded, "mint": domain.StepStatusSucceeded}, statuses(f.journals.snapshots[3]))
	assert.Equal(t, uint64(4), f.journals.stored("private").Revision)
}

func TestExecutePlan_PersistFailureHalts(t *testing.T) {
	f := newExecutorFixture(t)
	f.journals.failAfter = 2
	f.expectDeploy("d1")

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist journal")
	f.chain.AssertNotCalled(t, "CallFunction", mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutePlan_DryRun(t *testing.T) {
	f := newExecutorFixture(t)
	f.cfg.DryRun = true
	f.journals.journals["private"] = &domain.Journal{
		Network: "private",
		Steps: map[string]*domain.StepResult{
			"token": {Status: domain.StepStatusSucceeded, StepOutputs: domain.StepOutputs{Address: addrFor("token"), TxID: txFor("token")}},
		},
	}

	result, err := f.uc.Execute(context.Background(), presalePlan(), "private")
	require.NoError(t, err)

	outcomes := map[string]usecase.StepOutcome{}
	for _, s := range result.Steps {
		outcomes[s.Step.ID] = s.Outcome
	}
	assert.Equal(t, map[string]usecase.StepOutcome{
		"token":      usecase.StepSkipped,
		"presale":    usecase.StepPlanned,
		"initialize": usecase.StepPlanned,
		"set-token":  usecase.StepPlanned,
	}, outcomes)
	assert.True(t, result.ExecutionPlan.DryRun)

	assert.Equal(t, 0, f.chainCalls())
	assert.Equal(t, 0, f.journals.persists)
	assert.Empty(t, f.journals.locked)
	f.chain.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
}

func TestExecutePlan_ChecksStepsBeforeSending(t *testing.T) {
	t.Run("unknown contract in a late step sends nothing", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.expectPresale()
		f.chain.reject("set-token", errors.New("contract not found: GigaTronx"))

		_, err := f.uc.Execute(context.Background(), presalePlan(), "private")

		var malformed *domain.MalformedPlanError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "set-token", malformed.StepID)
		assert.Contains(t, malformed.Reason, "GigaTronx")
		assert.Equal(t, 0, f.chainCalls())
		assert.Equal(t, 0, f.journals.persists)
		f.chain.AssertNotCalled(t, "Connect", mock.Anything, mock.Anything)
	})

	t.Run("dry run reports the same failure", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.DryRun = true
		f.chain.reject("initialize", errors.New("contract has no function initialise"))

		_, err := f.uc.Execute(context.Background(), presalePlan(), "private")

		var malformed *domain.MalformedPlanError
		require.ErrorAs(t, err, &malformed)
		assert.Equal(t, "initialize", malformed.StepID)
	})

	t.Run("only pending steps are checked with known literals", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.expectPresale()
		f.journals.journals["private"] = &domain.Journal{
			Network: "private",
			Steps: map[string]*domain.StepResult{
				"token": {Status: domain.StepStatusSucceeded, StepOutputs: domain.StepOutputs{Address: addrFor("token"), TxID: txFor("token")}},
			},
		}

		_, err := f.uc.Execute(context.Background(), presalePlan(), "private")
		require.NoError(t, err)
		assert.Equal(t, []string{"presale", "initialize", "set-token"}, f.chain.checkedSteps())

		f.chain.checkMu.Lock()
		defer f.chain.checkMu.Unlock()
		setToken := f.chain.checked[2]
		assert.Equal(t, domain.StepKindInvoke, setToken.Kind)
		assert.Equal(t, "TokenPreSale", setToken.Contract)
		assert.Equal(t, "changeSaleTokenAddress", setToken.Function)
		assert.Empty(t, setToken.Target)
		assert.Equal(t, []any{big.NewInt(1), nil}, setToken.Args)
	})
}

func TestExecutePlan_DryRunReportsMissingSecret(t *testing.T) {
	f := newExecutorFixture(t)
	f.cfg.DryRun = true
	plan := newPlan(deployStep("vault", "Vault", domain.SecretRef("VAULT_OWNER")))

	_, err := f.uc.Execute(context.Background(), plan, "private")

	var missing *domain.MissingSecretError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "VAULT_OWNER", missing.Name)
}

func TestExecutePlan_Confirmation(t *testing.T) {
	t.Run("refusal cancels before any step", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.AssumeYes = false
		f.confirmer.On("Confirm", mock.Anything, mock.MatchedBy(func(p string) bool {
			return p == "Broadcast 2 step(s) to private (chain 8795)"
		})).Return(false, nil)

		_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")

		var cancelErr *domain.CancellationError
		require.ErrorAs(t, err, &cancelErr)
		assert.Equal(t, "d1", cancelErr.NextStep)
		assert.Equal(t, 0, f.chainCalls())
		f.confirmer.AssertExpectations(t)
	})

	t.Run("acceptance runs the plan", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.AssumeYes = false
		f.confirmer.On("Confirm", mock.Anything, mock.Anything).Return(true, nil)
		f.expectDeploy("d1")
		f.expectCall("mint")

		result, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
		require.NoError(t, err)
		assert.Equal(t, 2, result.Executed)
	})

	t.Run("non-interactive never prompts", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.AssumeYes = false
		f.cfg.NonInteractive = true
		f.expectDeploy("d1")
		f.expectCall("mint")

		_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
		require.NoError(t, err)
		f.confirmer.AssertNotCalled(t, "Confirm", mock.Anything, mock.Anything)
	})
}

func TestExecutePlan_JournalLocked(t *testing.T) {
	f := newExecutorFixture(t)
	f.journals.locked["private"] = true

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	assert.ErrorIs(t, err, domain.ErrJournalLocked)
	assert.Equal(t, 0, f.chainCalls())
}

func TestExecutePlan_ReleasesLock(t *testing.T) {
	f := newExecutorFixture(t)
	f.expectDeploy("d1")
	f.expectCall("mint")

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.NoError(t, err)
	assert.Empty(t, f.journals.locked)
}

func TestExecutePlan_UnknownNetwork(t *testing.T) {
	f := newExecutorFixture(t)

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "mainnet")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutePlan_Parallel(t *testing.T) {
	independent := func() *domain.Plan {
		return newPlan(
			deployStep("token", "GigaTronix"),
			deployStep("oracle", "Oracle"),
			invokeStep("mint", domain.OutputRef("token", domain.OutputAddress), "mint", domain.Literal(holderAddr)),
			invokeStep("feed", domain.OutputRef("oracle", domain.OutputAddress), "setPrice", domain.Literal(big.NewInt(5))),
		)
	}

	t.Run("independent subgraphs all complete", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.Parallel = true
		f.expectDeploy("token")
		f.expectDeploy("oracle")
		f.expectCall("mint")
		f.expectCall("feed")

		result, err := f.uc.Execute(context.Background(), independent(), "private")
		require.NoError(t, err)
		assert.Equal(t, 4, result.Executed)
		require.Len(t, result.ExecutionPlan.Groups, 2)
		assert.Equal(t, []string{"token", "mint"}, stepIDs(result.ExecutionPlan.Groups[0]))

		journal := f.journals.stored("private")
		for _, id := range []string{"token", "oracle", "mint", "feed"} {
			assert.True(t, journal.Steps[id].Succeeded(), id)
		}
	})

	t.Run("first failure is reported", func(t *testing.T) {
		f := newExecutorFixture(t)
		f.cfg.Parallel = true
		f.chain.On("DeployContract", mock.Anything, deployFor("token"), mock.Anything).
			Return(nil, &domain.ChainError{Reason: "execution reverted"})
		f.expectDeploy("oracle").Maybe()
		f.expectCall("feed").Maybe()

		_, err := f.uc.Execute(context.Background(), independent(), "private")

		var chainErr *domain.ChainError
		require.ErrorAs(t, err, &chainErr)
		assert.Equal(t, "token", chainErr.StepID)

		journal := f.journals.stored("private")
		assert.Equal(t, domain.StepStatusFailed, journal.Steps["token"].Status)
		assert.NotContains(t, journal.Steps, "mint")
		for _, id := range []string{"oracle", "feed"} {
			if r, ok := journal.Steps[id]; ok {
				assert.NotEqual(t, domain.StepStatusFailed, r.Status, id)
			}
		}
	})
}

func TestExecutePlan_ProgressEvents(t *testing.T) {
	f := newExecutorFixture(t)
	f.expectDeploy("d1")
	f.expectCall("mint")

	_, err := f.uc.Execute(context.Background(), tokenMintPlan(), "private")
	require.NoError(t, err)

	created := f.sink.stages(usecase.StagePlanCreated)
	require.Len(t, created, 1)
	plan := created[0].Metadata.(*usecase.ExecutionPlan)
	assert.Equal(t, []string{"d1", "mint"}, stepIDs(plan.Order))
	assert.Len(t, plan.Pending, 2)
	assert.NotEmpty(t, plan.RunID)

	starting := f.sink.stages(usecase.StageStepStarting)
	require.Len(t, starting, 2)
	assert.Equal(t, 1, starting[0].Current)
	assert.Equal(t, 2, starting[1].Total)

	completed := f.sink.stages(usecase.StageStepCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, usecase.StepExecuted, completed[1].Metadata.(*usecase.StepExecution).Outcome)

	assert.Len(t, f.sink.stages(usecase.StagePlanCompleted), 1)
}

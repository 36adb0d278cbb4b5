package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
)

// fallbackStepTimeout applies when neither the step nor the configuration sets one
const fallbackStepTimeout = 5 * time.Minute

// ExecutePlan runs the steps of a plan against a network, recording every
// outcome in the network's journal so a later run resumes where this one stopped.
type ExecutePlan struct {
	cfg       *config.RuntimeConfig
	loader    PlanLoader
	networks  NetworkResolver
	journals  JournalStore
	chain     ChainClient
	secrets   SecretStore
	confirmer Confirmer
	progress  ProgressSink
	log       *slog.Logger
}

// NewExecutePlan creates a new ExecutePlan use case
func NewExecutePlan(
	cfg *config.RuntimeConfig,
	loader PlanLoader,
	networks NetworkResolver,
	journals JournalStore,
	chain ChainClient,
	secrets SecretStore,
	confirmer Confirmer,
	progress ProgressSink,
	log *slog.Logger,
) *ExecutePlan {
	return &ExecutePlan{
		cfg:       cfg,
		loader:    loader,
		networks:  networks,
		journals:  journals,
		chain:     chain,
		secrets:   secrets,
		confirmer: confirmer,
		progress:  progress,
		log:       log.With("component", "ExecutePlan"),
	}
}

// ExecutePlanParams contains parameters for executing a plan
type ExecutePlanParams struct {
	Network string
	Plan    PlanRequest
}

// StepOutcome is what happened to a step during a run
type StepOutcome string

const (
	StepExecuted StepOutcome = "executed"
	StepSkipped  StepOutcome = "skipped"
	StepFailed   StepOutcome = "failed"
	// StepPlanned marks a step a dry run would execute
	StepPlanned StepOutcome = "planned"
)

// ExecutionPlan describes a run before any step executes
type ExecutionPlan struct {
	RunID   string
	Plan    *domain.Plan
	Network *config.Network
	Order   []*domain.Step
	// Groups holds the independent subgraphs when running in parallel
	Groups    [][]*domain.Step
	Pending   []*domain.Step
	Completed []*domain.Step
	DryRun    bool
}

// StepExecution is the result of one step within a run
type StepExecution struct {
	Step     *domain.Step
	Position int // 1-based position in the resolved order
	Total    int
	Outcome  StepOutcome
	Outputs  domain.StepOutputs
	// Interrupted is set when a previous run left the step pending
	Interrupted bool
	Duration    time.Duration
	Error       error
}

// ExecutePlanResult contains the result of executing a plan
type ExecutePlanResult struct {
	ExecutionPlan *ExecutionPlan
	Steps         []*StepExecution
	Journal       *domain.Journal
	Executed      int
	Skipped       int
	Failed        *StepExecution
}

// Success reports whether every step succeeded or was already done
func (r *ExecutePlanResult) Success() bool {
	return r.Failed == nil
}

// Run loads, orders and executes a plan.
// On a step failure the partial result is returned together with the error.
func (uc *ExecutePlan) Run(ctx context.Context, params ExecutePlanParams) (*ExecutePlanResult, error) {
	plan, err := uc.loader.Load(ctx, params.Plan)
	if err != nil {
		return nil, err
	}
	return uc.Execute(ctx, plan, params.Network)
}

// Execute runs an already loaded plan against a network
func (uc *ExecutePlan) Execute(ctx context.Context, plan *domain.Plan, networkName string) (*ExecutePlanResult, error) {
	runID := uuid.NewString()
	log := uc.log.With("run", runID, "network", networkName, "plan", plan.Name)

	graph, err := NewDependencyGraph(plan)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	log.Debug("resolved execution order", "steps", stepIDList(order))

	network, err := uc.networks.ResolveNetwork(ctx, networkName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve network %s: %w", networkName, err)
	}

	if !uc.cfg.DryRun {
		lock, err := uc.journals.Lock(ctx, network.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to lock journal for %s: %w", network.Name, err)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				log.Warn("failed to release journal lock", "error", err)
			}
		}()
	}

	journal, err := uc.journals.Load(ctx, network.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal for %s: %w", network.Name, err)
	}

	pending, completed := lo.FilterReject(order, func(s *domain.Step, _ int) bool {
		r, ok := journal.Lookup(s.ID)
		return !ok || !r.Succeeded()
	})

	execPlan := &ExecutionPlan{
		RunID:     runID,
		Plan:      plan,
		Network:   network,
		Order:     order,
		Pending:   pending,
		Completed: completed,
		DryRun:    uc.cfg.DryRun,
	}
	if uc.cfg.Parallel {
		execPlan.Groups = graph.Partition(order)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StagePlanCreated,
		Total:    len(order),
		Metadata: execPlan,
	})

	run := &planRun{
		uc:       uc,
		log:      log,
		plan:     plan,
		network:  network,
		journal:  journal,
		position: make(map[string]int, len(order)),
		result: &ExecutePlanResult{
			ExecutionPlan: execPlan,
			Journal:       journal,
		},
	}
	for i, step := range order {
		run.position[step.ID] = i + 1
	}

	if err := checkSteps(uc.chain, plan, pending); err != nil {
		return run.result, err
	}

	if uc.cfg.DryRun {
		return run.dryRun(ctx, order)
	}

	if len(pending) > 0 {
		if err := uc.confirm(ctx, network, pending); err != nil {
			return run.result, err
		}

		signer, err := uc.signer(network)
		if err != nil {
			return run.result, err
		}
		run.signer = signer

		if err := uc.chain.Connect(ctx, network); err != nil {
			return run.result, &domain.ChainError{Reason: fmt.Sprintf("connect to %s", network.Name), Err: err}
		}
		defer uc.chain.Close()
	}

	if uc.cfg.Parallel && len(execPlan.Groups) > 1 {
		err = run.parallel(ctx, execPlan.Groups)
	} else {
		err = run.sequence(ctx, order)
	}

	uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StagePlanCompleted,
		Metadata: run.result,
	})

	if err != nil {
		log.Debug("plan halted", "error", err)
		return run.result, err
	}
	return run.result, nil
}

func (uc *ExecutePlan) confirm(ctx context.Context, network *config.Network, pending []*domain.Step) error {
	if uc.cfg.AssumeYes || uc.cfg.NonInteractive || uc.confirmer == nil {
		return nil
	}

	prompt := fmt.Sprintf("Broadcast %d step(s) to %s (chain %d)", len(pending), network.Name, network.ChainID)
	ok, err := uc.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return &domain.CancellationError{NextStep: pending[0].ID}
	}
	return nil
}

func (uc *ExecutePlan) signer(network *config.Network) (domain.SignerConfig, error) {
	key, ok := uc.secrets.GetSecret(network.Signer)
	if !ok {
		return domain.SignerConfig{}, &domain.MissingSecretError{Name: network.Signer}
	}
	return domain.SignerConfig{Name: network.Signer, PrivateKey: key}, nil
}

func (uc *ExecutePlan) stepTimeout(step *domain.Step) time.Duration {
	switch {
	case step.Timeout > 0:
		return step.Timeout
	case uc.cfg.StepTimeout > 0:
		return uc.cfg.StepTimeout
	default:
		return fallbackStepTimeout
	}
}

// planRun holds the mutable state of one run. mu guards the journal, the
// result and progress output when subgraphs run in parallel.
type planRun struct {
	uc       *ExecutePlan
	log      *slog.Logger
	plan     *domain.Plan
	network  *config.Network
	signer   domain.SignerConfig
	position map[string]int

	mu      sync.Mutex
	journal *domain.Journal
	result  *ExecutePlanResult
}

func (r *planRun) sequence(ctx context.Context, steps []*domain.Step) error {
	for _, step := range steps {
		if err := r.step(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

func (r *planRun) parallel(ctx context.Context, groups [][]*domain.Step) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			return r.sequence(gctx, group)
		})
	}
	return g.Wait()
}

func (r *planRun) dryRun(ctx context.Context, order []*domain.Step) (*ExecutePlanResult, error) {
	pending := len(r.result.ExecutionPlan.Pending)
	if pending > 0 {
		if _, ok := r.uc.secrets.GetSecret(r.network.Signer); !ok {
			return r.result, &domain.MissingSecretError{Name: r.network.Signer}
		}
	}

	for _, step := range order {
		exec := r.newExecution(step)
		if res, ok := r.journal.Lookup(step.ID); ok && res.Succeeded() {
			exec.Outcome = StepSkipped
			exec.Outputs = res.StepOutputs
			r.result.Skipped++
		} else {
			if err := r.checkSecrets(step); err != nil {
				return r.result, err
			}
			exec.Outcome = StepPlanned
			exec.Interrupted = ok && res.Status == domain.StepStatusPending
		}
		r.result.Steps = append(r.result.Steps, exec)
		r.uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:    StageStepCompleted,
			Current:  exec.Position,
			Total:    exec.Total,
			Message:  step.ID,
			Metadata: exec,
		})
	}
	return r.result, nil
}

func (r *planRun) newExecution(step *domain.Step) *StepExecution {
	return &StepExecution{
		Step:     step,
		Position: r.position[step.ID],
		Total:    len(r.position),
	}
}

// step executes a single step, or reuses its recorded outputs
func (r *planRun) step(ctx context.Context, step *domain.Step) error {
	if err := ctx.Err(); err != nil {
		return &domain.CancellationError{NextStep: step.ID, Cause: context.Cause(ctx)}
	}

	log := r.log.With("step", step.ID)
	exec := r.newExecution(step)

	r.mu.Lock()
	recorded, found := r.journal.Lookup(step.ID)
	if found && recorded.Succeeded() {
		exec.Outcome = StepSkipped
		exec.Outputs = recorded.StepOutputs
		r.result.Skipped++
		r.result.Steps = append(r.result.Steps, exec)
		r.emit(ctx, StageStepCompleted, exec)
		r.mu.Unlock()
		log.Debug("step already succeeded, skipping")
		return nil
	}

	if found && recorded.Status == domain.StepStatusPending {
		exec.Interrupted = true
		r.uc.progress.OnProgress(ctx, ProgressEvent{
			Stage:   StageWarning,
			Message: fmt.Sprintf("step %s was interrupted during a previous run; its transaction may already be on-chain", step.ID),
		})
		log.Warn("re-executing step left pending by a previous run")
	}

	r.uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    StageStepStarting,
		Current:  exec.Position,
		Total:    exec.Total,
		Message:  step.ID,
		Spinner:  true,
		Metadata: step,
	})

	args, value, target, err := r.resolve(step)
	if err != nil {
		r.mu.Unlock()
		return r.fail(ctx, exec, err)
	}

	if err := r.journal.RecordPending(step); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.persist(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	start := time.Now()
	outputs, err := r.call(ctx, step, args, value, target)
	exec.Duration = time.Since(start)
	if err != nil {
		log.Debug("step failed", "error", err, "duration", exec.Duration)
		return r.fail(ctx, exec, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.journal.RecordSuccess(step, outputs); err != nil {
		return err
	}
	if err := r.persist(ctx); err != nil {
		return err
	}

	exec.Outcome = StepExecuted
	exec.Outputs = outputs
	r.result.Executed++
	r.result.Steps = append(r.result.Steps, exec)
	r.emit(ctx, StageStepCompleted, exec)
	log.Debug("step succeeded", "address", outputs.Address, "tx", outputs.TxID, "duration", exec.Duration)
	return nil
}

// call performs the chain interaction of a step. The call is detached from
// cancellation so a submitted transaction is awaited, but bounded by the step timeout.
func (r *planRun) call(ctx context.Context, step *domain.Step, args []any, value any, target string) (domain.StepOutputs, error) {
	timeout := r.uc.stepTimeout(step)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var (
		outputs domain.StepOutputs
		err     error
	)
	switch step.Kind {
	case domain.StepKindDeploy:
		var receipt *domain.DeployReceipt
		receipt, err = r.uc.chain.DeployContract(callCtx, domain.DeployRequest{
			StepID:   step.ID,
			Contract: step.Contract,
			Args:     args,
			Value:    value,
		}, r.signer)
		if err == nil {
			outputs = domain.StepOutputs{Address: receipt.Address, TxID: receipt.TxID}
		}
	case domain.StepKindInvoke:
		var receipt *domain.CallReceipt
		receipt, err = r.uc.chain.CallFunction(callCtx, domain.CallRequest{
			StepID:   step.ID,
			Address:  target,
			Contract: invokeContract(r.plan, step),
			Function: step.Function,
			Args:     args,
			Value:    value,
		}, r.signer)
		if err == nil {
			outputs = domain.StepOutputs{TxID: receipt.TxID}
		}
	default:
		return outputs, &domain.MalformedPlanError{Plan: r.plan.Name, StepID: step.ID, Reason: fmt.Sprintf("unknown step kind %q", step.Kind)}
	}

	if err == nil {
		return outputs, nil
	}

	var chainErr *domain.ChainError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return outputs, &domain.TimeoutError{StepID: step.ID, Timeout: timeout}
	case errors.As(err, &chainErr):
		if chainErr.StepID == "" {
			chainErr.StepID = step.ID
		}
		return outputs, chainErr
	default:
		return outputs, &domain.ChainError{StepID: step.ID, Err: err}
	}
}

// fail records a failed step and returns the cause
func (r *planRun) fail(ctx context.Context, exec *StepExecution, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec.Outcome = StepFailed
	exec.Error = cause
	r.result.Failed = exec
	r.result.Steps = append(r.result.Steps, exec)

	if err := r.journal.RecordFailure(exec.Step, cause); err != nil {
		return errors.Join(cause, err)
	}
	if err := r.persist(ctx); err != nil {
		return errors.Join(cause, err)
	}

	r.emit(ctx, StageStepCompleted, exec)
	return cause
}

// persist writes the journal. The write is not cancellable: an outcome that
// happened on-chain must reach the journal.
func (r *planRun) persist(ctx context.Context) error {
	if err := r.uc.journals.Persist(context.WithoutCancel(ctx), r.journal); err != nil {
		return fmt.Errorf("failed to persist journal for %s: %w", r.network.Name, err)
	}
	return nil
}

func (r *planRun) emit(ctx context.Context, stage string, exec *StepExecution) {
	r.uc.progress.OnProgress(ctx, ProgressEvent{
		Stage:    stage,
		Current:  exec.Position,
		Total:    exec.Total,
		Message:  exec.Step.ID,
		Metadata: exec,
	})
}

// resolve turns the parameters of a step into call values. Must hold mu.
func (r *planRun) resolve(step *domain.Step) (args []any, value any, target string, err error) {
	args = make([]any, len(step.Args))
	for i, p := range step.Args {
		if args[i], err = r.resolveParam(step, p); err != nil {
			return nil, nil, "", err
		}
	}

	if step.Value != nil {
		if value, err = r.resolveParam(step, *step.Value); err != nil {
			return nil, nil, "", err
		}
	}

	if step.Target != nil {
		v, err := r.resolveParam(step, *step.Target)
		if err != nil {
			return nil, nil, "", err
		}
		s, ok := v.(string)
		if !ok {
			return nil, nil, "", &domain.MalformedPlanError{Plan: r.plan.Name, StepID: step.ID, Reason: fmt.Sprintf("target must be an address, got %v", v)}
		}
		target = s
	}

	return args, value, target, nil
}

func (r *planRun) resolveParam(step *domain.Step, p domain.Parameter) (any, error) {
	switch p.Kind {
	case domain.ParamSecret:
		v, ok := r.uc.secrets.GetSecret(p.Secret)
		if !ok {
			return nil, &domain.MissingSecretError{Name: p.Secret, StepID: step.ID}
		}
		return v, nil

	case domain.ParamStepOutput:
		recorded, ok := r.journal.Lookup(p.StepRef.StepID)
		if !ok || !recorded.Succeeded() {
			return nil, fmt.Errorf("step %q: output %s is not available", step.ID, p.StepRef)
		}
		v, ok := recorded.Field(p.StepRef.Field)
		if !ok {
			return nil, fmt.Errorf("step %q: step %s recorded no %s", step.ID, p.StepRef.StepID, p.StepRef.Field)
		}
		return v, nil

	default:
		return resolveLiteral(step, p, r.resolveParam)
	}
}

func resolveLiteral(step *domain.Step, p domain.Parameter, resolve func(*domain.Step, domain.Parameter) (any, error)) (any, error) {
	switch v := p.Literal.(type) {
	case []domain.Parameter:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolve(step, item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case *big.Int:
		return new(big.Int).Set(v), nil
	default:
		return v, nil
	}
}

// checkSecrets reports the first secret a step needs that is not configured
func (r *planRun) checkSecrets(step *domain.Step) error {
	var walk func(p domain.Parameter) error
	walk = func(p domain.Parameter) error {
		switch p.Kind {
		case domain.ParamSecret:
			if _, ok := r.uc.secrets.GetSecret(p.Secret); !ok {
				return &domain.MissingSecretError{Name: p.Secret, StepID: step.ID}
			}
		case domain.ParamLiteral:
			if list, ok := p.Literal.([]domain.Parameter); ok {
				for _, item := range list {
					if err := walk(item); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	for _, p := range step.Parameters() {
		if err := walk(p); err != nil {
			return err
		}
	}
	return nil
}

func stepIDList(steps []*domain.Step) []string {
	return lo.Map(steps, func(s *domain.Step, _ int) string { return s.ID })
}

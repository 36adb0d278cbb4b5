package usecase

import (
	"context"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// ValidatePlanParams contains parameters for validating a plan
type ValidatePlanParams struct {
	Plan PlanRequest
	// SkipArtifacts checks only the plan structure, for projects not compiled yet
	SkipArtifacts bool
}

// ValidatePlanResult contains a validated plan and its execution order
type ValidatePlanResult struct {
	Plan   *PlanSummary `json:"plan"`
	Order  []string     `json:"order"`
	Groups [][]string   `json:"groups,omitempty"`
}

// PlanSummary describes a loaded plan
type PlanSummary struct {
	Name    string `json:"name"`
	Source  string `json:"source,omitempty"`
	Steps   int    `json:"steps"`
	Deploys int    `json:"deploys"`
	Invokes int    `json:"invokes"`
}

// ValidatePlan loads a plan, resolves its order and checks every step against
// the contract artifacts without touching any network
type ValidatePlan struct {
	loader  PlanLoader
	checker StepChecker
}

// NewValidatePlan creates a new ValidatePlan use case
func NewValidatePlan(loader PlanLoader, checker StepChecker) *ValidatePlan {
	return &ValidatePlan{loader: loader, checker: checker}
}

// Run executes the use case
func (uc *ValidatePlan) Run(ctx context.Context, params ValidatePlanParams) (*ValidatePlanResult, error) {
	plan, err := uc.loader.Load(ctx, params.Plan)
	if err != nil {
		return nil, err
	}

	graph, err := NewDependencyGraph(plan)
	if err != nil {
		return nil, err
	}
	order, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}

	if !params.SkipArtifacts {
		if err := checkSteps(uc.checker, plan, order); err != nil {
			return nil, err
		}
	}

	summary := &PlanSummary{Name: plan.Name, Source: plan.Source, Steps: len(plan.Steps)}
	for _, step := range plan.Steps {
		if step.Kind == domain.StepKindDeploy {
			summary.Deploys++
		} else {
			summary.Invokes++
		}
	}

	result := &ValidatePlanResult{
		Plan:  summary,
		Order: stepIDList(order),
	}
	for _, group := range graph.Partition(order) {
		result.Groups = append(result.Groups, stepIDList(group))
	}
	return result, nil
}

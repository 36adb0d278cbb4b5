package usecase

import (
	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// checkSteps resolves the artifacts, functions and literal arguments of steps
// before anything is sent. A failure is reported as a malformed plan.
func checkSteps(checker StepChecker, plan *domain.Plan, steps []*domain.Step) error {
	for _, step := range steps {
		check, err := stepCheck(plan, step)
		if err != nil {
			return err
		}
		if err := checker.CheckStep(check); err != nil {
			return &domain.MalformedPlanError{Plan: plan.Name, StepID: step.ID, Reason: err.Error()}
		}
	}
	return nil
}

func stepCheck(plan *domain.Plan, step *domain.Step) (domain.StepCheck, error) {
	check := domain.StepCheck{
		StepID:   step.ID,
		Kind:     step.Kind,
		Contract: invokeContract(plan, step),
		Function: step.Function,
		Args:     make([]any, len(step.Args)),
	}
	if step.Kind == domain.StepKindDeploy {
		check.Contract = step.Contract
	}

	var err error
	for i, p := range step.Args {
		if check.Args[i], err = literalValue(step, p); err != nil {
			return check, err
		}
	}
	if step.Value != nil {
		if check.Value, err = literalValue(step, *step.Value); err != nil {
			return check, err
		}
	}
	if step.Target != nil {
		v, err := literalValue(step, *step.Target)
		if err != nil {
			return check, err
		}
		if s, ok := v.(string); ok {
			check.Target = s
		}
	}
	return check, nil
}

// literalValue resolves a parameter as far as the plan alone allows.
// Secrets and step outputs come back as nil.
func literalValue(step *domain.Step, p domain.Parameter) (any, error) {
	if p.Kind != domain.ParamLiteral {
		return nil, nil
	}
	return resolveLiteral(step, p, literalValue)
}

// invokeContract names the ABI of an invoke: the step's own contract, or the
// contract deployed by the step its target references.
func invokeContract(plan *domain.Plan, step *domain.Step) string {
	if step.Contract != "" || step.Target == nil || step.Target.Kind != domain.ParamStepOutput {
		return step.Contract
	}
	if source, ok := plan.Step(step.Target.StepRef.StepID); ok && source.Kind == domain.StepKindDeploy {
		return source.Contract
	}
	return ""
}

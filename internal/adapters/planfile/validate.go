package planfile

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/trebuchet-org/treb-plan/internal/domain"
)

// Validate checks the structure of a plan: required fields, unique ids and
// that every reference names a declared step producing the referenced field.
// Cycles are left to the dependency resolver.
func Validate(plan *domain.Plan) error {
	if len(plan.Steps) == 0 {
		return &domain.MalformedPlanError{Plan: plan.Name, Reason: "plan has no steps"}
	}

	steps := make(map[string]*domain.Step, len(plan.Steps))
	var ids []string
	for i, step := range plan.Steps {
		if step.ID == "" {
			return &domain.MalformedPlanError{Plan: plan.Name, StepID: fmt.Sprintf("#%d", i+1), Reason: `missing required field "id"`}
		}
		if strings.ContainsAny(step.ID, " \t\n.") {
			return &domain.MalformedPlanError{Plan: plan.Name, StepID: step.ID, Reason: "step id must not contain whitespace or dots"}
		}
		if _, dup := steps[step.ID]; dup {
			return &domain.MalformedPlanError{Plan: plan.Name, StepID: step.ID, Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		steps[step.ID] = step
		ids = append(ids, step.ID)
	}

	for _, step := range plan.Steps {
		if err := validateStep(plan.Name, step, steps, ids); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(planName string, step *domain.Step, steps map[string]*domain.Step, ids []string) error {
	malformed := func(format string, args ...any) error {
		return &domain.MalformedPlanError{Plan: planName, StepID: step.ID, Reason: fmt.Sprintf(format, args...)}
	}

	switch step.Kind {
	case domain.StepKindDeploy:
		if step.Contract == "" {
			return malformed(`missing required field "contract"`)
		}
		if step.Target != nil {
			return malformed("deploy steps take no target")
		}
		if step.Function != "" {
			return malformed("deploy steps take no function")
		}

	case domain.StepKindInvoke:
		if step.Target == nil {
			return malformed(`missing required field "target"`)
		}
		if step.Function == "" {
			return malformed(`missing required field "function"`)
		}
		switch step.Target.Kind {
		case domain.ParamLiteral:
			if _, ok := step.Target.Literal.(string); !ok {
				return malformed("target must be an address")
			}
			if step.Contract == "" && !strings.Contains(step.Function, "(") {
				return malformed("invoke of a literal address needs a contract or a full function signature")
			}
		case domain.ParamStepOutput:
			if step.Target.StepRef.Field != domain.OutputAddress {
				return malformed("target must reference an address output, got %s", step.Target.StepRef)
			}
		case domain.ParamSecret:
			if step.Contract == "" && !strings.Contains(step.Function, "(") {
				return malformed("invoke of a secret address needs a contract or a full function signature")
			}
		}

	case "":
		return malformed(`missing required field "kind"`)

	default:
		return malformed("unknown step kind %q (expected deploy or invoke)", step.Kind)
	}

	if step.Value != nil && step.Value.Kind == domain.ParamLiteral {
		switch step.Value.Literal.(type) {
		case string, *big.Int:
		default:
			return malformed("value must be an amount")
		}
	}

	for _, p := range step.Parameters() {
		for _, ref := range p.StepRefs() {
			target, ok := steps[ref.StepID]
			if !ok {
				return malformed("unknown step %q%s", ref.StepID, suggest(ref.StepID, ids))
			}
			switch ref.Field {
			case domain.OutputAddress, domain.OutputTxID:
			default:
				return malformed("unknown output field %q of step %q (expected %s or %s)", ref.Field, ref.StepID, domain.OutputAddress, domain.OutputTxID)
			}
			if !target.Kind.Produces(ref.Field) {
				return malformed("step %q is an %s and has no %s output", ref.StepID, target.Kind, ref.Field)
			}
		}
	}

	for _, dep := range step.DependsOn {
		if _, ok := steps[dep]; !ok {
			return malformed("dependsOn names unknown step %q%s", dep, suggest(dep, ids))
		}
	}

	return nil
}

func suggest(name string, candidates []string) string {
	matches := fuzzy.Find(name, candidates)
	if len(matches) == 0 {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", matches[0].Str)
}

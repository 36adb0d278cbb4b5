package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/domain/config"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// PlanRenderer handles rendering of plan executions
type PlanRenderer struct {
	out io.Writer
}

// NewPlanRenderer creates a new plan renderer
func NewPlanRenderer(out io.Writer) *PlanRenderer {
	return &PlanRenderer{
		out: out,
	}
}

// GetWriter returns the io.Writer used by this renderer
func (r *PlanRenderer) GetWriter() io.Writer {
	return r.out
}

// RenderExecutionPlan displays the resolved order before execution starts
func (r *PlanRenderer) RenderExecutionPlan(plan *usecase.ExecutionPlan) {
	mode := ""
	if plan.DryRun {
		mode = color.New(color.FgYellow).Sprint(" (dry run)")
	}
	fmt.Fprintf(r.out, "\n🎯 Executing %s on %s%s\n", plan.Plan.Name, networkLabel(plan.Network), mode)
	fmt.Fprintf(r.out, "📋 %d step(s): %d to run, %d already done\n\n", len(plan.Order), len(plan.Pending), len(plan.Completed))

	color.New(color.Bold).Fprintf(r.out, "📋 Execution Plan:\n")
	fmt.Fprintf(r.out, "%s\n", strings.Repeat("─", 50))

	done := make(map[string]bool, len(plan.Completed))
	for _, step := range plan.Completed {
		done[step.ID] = true
	}

	for i, step := range plan.Order {
		fmt.Fprintf(r.out, "%d. ", i+1)
		if done[step.ID] {
			color.New(color.FgHiBlack).Fprintf(r.out, "%s ✓", step.ID)
		} else {
			color.New(color.FgCyan).Fprintf(r.out, "%s", step.ID)
		}

		fmt.Fprintf(r.out, " → ")
		color.New(color.FgGreen).Fprintf(r.out, "%s", describeStep(step))

		if refs := step.References(); len(refs) > 0 {
			color.New(color.FgHiBlack).Fprintf(r.out, " (depends on: %s)", strings.Join(refs, ", "))
		}
		fmt.Fprintln(r.out)
	}

	if len(plan.Groups) > 1 {
		fmt.Fprintln(r.out)
		color.New(color.FgYellow).Fprintf(r.out, "⚡ Running %d independent groups in parallel\n", len(plan.Groups))
	}
	fmt.Fprintln(r.out)
}

// RenderStepStarting shows the header of a step about to execute
func (r *PlanRenderer) RenderStepStarting(step *domain.Step, current, total int) {
	fmt.Fprintf(r.out, "\n[%d/%d] %s %s\n", current, total, color.New(color.Bold).Sprint(step.ID), describeStep(step))
}

// RenderStepResult renders a single step outcome
func (r *PlanRenderer) RenderStepResult(exec *usecase.StepExecution) {
	switch exec.Outcome {
	case usecase.StepExecuted:
		color.New(color.FgGreen).Fprintf(r.out, "✓ %s completed in %s\n", exec.Step.ID, exec.Duration.Round(time.Millisecond))
		r.renderOutputs(exec.Outputs)
	case usecase.StepSkipped:
		color.New(color.FgHiBlack).Fprintf(r.out, "⊘ %s already done", exec.Step.ID)
		if exec.Outputs.Address != "" {
			color.New(color.FgHiBlack).Fprintf(r.out, " at %s", exec.Outputs.Address)
		}
		fmt.Fprintln(r.out)
	case usecase.StepPlanned:
		fmt.Fprintf(r.out, "○ %s would %s", exec.Step.ID, describeStep(exec.Step))
		if exec.Interrupted {
			color.New(color.FgYellow).Fprint(r.out, " (interrupted previously)")
		}
		fmt.Fprintln(r.out)
	case usecase.StepFailed:
		color.New(color.FgRed).Fprintf(r.out, "❌ %s failed: %v\n", exec.Step.ID, exec.Error)
	}
}

func (r *PlanRenderer) renderOutputs(outputs domain.StepOutputs) {
	if outputs.Address != "" {
		fmt.Fprintf(r.out, "  Address: %s\n", color.New(color.FgCyan).Sprint(outputs.Address))
	}
	if outputs.TxID != "" {
		fmt.Fprintf(r.out, "  Tx:      %s\n", outputs.TxID)
	}
}

// RenderWarning shows a warning raised during execution
func (r *PlanRenderer) RenderWarning(message string) {
	fmt.Fprintln(r.out, FormatWarning(message))
}

// RenderResult renders the final summary of a run
func (r *PlanRenderer) RenderResult(result *usecase.ExecutePlanResult, runErr error) {
	if result == nil || result.ExecutionPlan == nil {
		return
	}
	plan := result.ExecutionPlan
	total := len(plan.Order)

	fmt.Fprintf(r.out, "\n%s\n", strings.Repeat("═", 70))

	var cancelled *domain.CancellationError
	switch {
	case plan.DryRun && runErr == nil:
		color.New(color.FgYellow, color.Bold).Fprintf(r.out, "🔍 Dry run of %s on %s\n", plan.Plan.Name, networkLabel(plan.Network))
		fmt.Fprintf(r.out, "\n📊 Summary:\n")
		fmt.Fprintf(r.out, "  • Steps to run: %d/%d\n", len(plan.Pending), total)
		fmt.Fprintf(r.out, "  • Already done: %d\n", len(plan.Completed))
		return

	case runErr == nil:
		color.New(color.FgGreen, color.Bold).Fprintf(r.out, "🎉 Plan %s completed on %s\n", plan.Plan.Name, networkLabel(plan.Network))

	case errors.As(runErr, &cancelled):
		color.New(color.FgYellow, color.Bold).Fprintf(r.out, "⏸  Plan %s cancelled\n", plan.Plan.Name)

	default:
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "❌ Plan %s failed\n", plan.Plan.Name)
	}

	fmt.Fprintf(r.out, "\n📊 Summary:\n")
	fmt.Fprintf(r.out, "  • Steps executed: %d/%d\n", result.Executed, total)
	fmt.Fprintf(r.out, "  • Skipped (already done): %d\n", result.Skipped)
	if result.Failed != nil {
		fmt.Fprintf(r.out, "  • Failed at step: %s\n", result.Failed.Step.ID)
	}
	if cancelled != nil && cancelled.NextStep != "" {
		fmt.Fprintf(r.out, "  • Next step: %s\n", cancelled.NextStep)
	}
	if runErr != nil {
		fmt.Fprintf(r.out, "  • Error: %v\n", runErr)
		fmt.Fprintf(r.out, "\nRe-run the same command to resume; completed steps are skipped.\n")
	}
}

// RenderValidation renders the result of validating a plan
func (r *PlanRenderer) RenderValidation(result *usecase.ValidatePlanResult) {
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Plan %s is valid", result.Plan.Name)))
	fmt.Fprintf(r.out, "\n📊 %d step(s): %d deploy, %d invoke\n\n", result.Plan.Steps, result.Plan.Deploys, result.Plan.Invokes)

	color.New(color.Bold).Fprintf(r.out, "Execution order:\n")
	for i, id := range result.Order {
		fmt.Fprintf(r.out, "  %d. %s\n", i+1, id)
	}

	if len(result.Groups) > 1 {
		fmt.Fprintf(r.out, "\n%d independent groups:\n", len(result.Groups))
		for i, group := range result.Groups {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, strings.Join(group, ", "))
		}
	}
}

func describeStep(step *domain.Step) string {
	switch step.Kind {
	case domain.StepKindDeploy:
		return fmt.Sprintf("deploy %s(%s)", step.Contract, formatArgs(step.Args))
	case domain.StepKindInvoke:
		target := ""
		if step.Target != nil {
			target = step.Target.String()
			if step.Target.Kind == domain.ParamLiteral {
				target = strings.Trim(target, `"`)
			}
		}
		return fmt.Sprintf("call %s.%s(%s)", target, strings.SplitN(step.Function, "(", 2)[0], formatArgs(step.Args))
	default:
		return string(step.Kind)
	}
}

func formatArgs(args []domain.Parameter) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func networkLabel(network *config.Network) string {
	if network == nil {
		return "?"
	}
	if network.ChainID == 0 {
		return network.Name
	}
	return fmt.Sprintf("%s (chain %d)", network.Name, network.ChainID)
}

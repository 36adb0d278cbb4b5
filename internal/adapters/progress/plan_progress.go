package progress

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// PlanProgress renders plan execution events as they happen, with a spinner
// while a step waits on the chain. Events may arrive from several goroutines
// when groups run in parallel.
type PlanProgress struct {
	mu       sync.Mutex
	renderer *render.PlanRenderer
	spinner  *spinner.Spinner

	// waiting lists the steps awaiting confirmation, in start order
	waiting      []string
	planRendered bool
}

// NewPlanProgress creates a new plan progress reporter
func NewPlanProgress(renderer *render.PlanRenderer) *PlanProgress {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.HideCursor = false

	return &PlanProgress{
		renderer: renderer,
		spinner:  s,
	}
}

// OnProgress handles progress events for plan execution
func (p *PlanProgress) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Stage {
	case usecase.StagePlanCreated:
		if plan, ok := event.Metadata.(*usecase.ExecutionPlan); ok && !p.planRendered {
			p.renderer.RenderExecutionPlan(plan)
			p.planRendered = true
		}

	case usecase.StageStepStarting:
		if step, ok := event.Metadata.(*domain.Step); ok {
			p.spinner.Stop()
			p.renderer.RenderStepStarting(step, event.Current, event.Total)
			if event.Spinner {
				p.waiting = append(p.waiting, step.ID)
			}
			p.resume()
		}

	case usecase.StageStepCompleted:
		if exec, ok := event.Metadata.(*usecase.StepExecution); ok {
			p.spinner.Stop()
			p.waiting = slices.DeleteFunc(p.waiting, func(id string) bool { return id == exec.Step.ID })
			p.renderer.RenderStepResult(exec)
			p.resume()
		}

	case usecase.StageWarning:
		p.spinner.Stop()
		p.renderer.RenderWarning(event.Message)
		p.resume()

	case usecase.StagePlanCompleted:
		// the CLI command renders the summary
		p.spinner.Stop()
		p.waiting = nil
	}
}

// resume restarts the spinner while any step still waits on the chain. Must hold mu.
func (p *PlanProgress) resume() {
	if len(p.waiting) == 0 {
		return
	}
	p.spinner.Suffix = " waiting for " + strings.Join(p.waiting, ", ") + " to confirm"
	p.spinner.Start()
}

// Info prints an info message between spinner frames
func (p *PlanProgress) Info(message string) {
	p.printPaused(color.New(color.FgCyan), message)
}

// Error prints an error message between spinner frames
func (p *PlanProgress) Error(message string) {
	p.printPaused(color.New(color.FgRed), message)
}

func (p *PlanProgress) printPaused(c *color.Color, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasActive := p.spinner.Active()
	if wasActive {
		p.spinner.Stop()
	}
	c.Fprintln(p.renderer.GetWriter(), message)
	if wasActive {
		p.spinner.Start()
	}
}

var _ usecase.ProgressSink = (*PlanProgress)(nil)

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

var statusStyles = map[domain.StepStatus]*color.Color{
	domain.StepStatusSucceeded: color.New(color.FgGreen),
	domain.StepStatusPending:   color.New(color.FgYellow),
	domain.StepStatusFailed:    color.New(color.FgRed),
}

// JournalRenderer renders execution journals
type JournalRenderer struct {
	out io.Writer
}

// NewJournalRenderer creates a new journal renderer
func NewJournalRenderer(out io.Writer) *JournalRenderer {
	return &JournalRenderer{out: out}
}

// Render renders the recorded steps of a network
func (r *JournalRenderer) Render(result *usecase.ShowJournalResult) error {
	if len(result.Entries) == 0 {
		fmt.Fprintf(r.out, "No steps recorded on %s\n", result.Network)
		return nil
	}

	color.New(color.Bold).Fprintf(r.out, "📒 Journal for %s", result.Network)
	color.New(color.Faint).Fprintf(r.out, " (revision %d)\n\n", result.Revision)

	title := cases.Title(language.English)
	t := newTable(r.out, table.Row{"Step", "Status", "Action", "Address", "Tx"})
	for _, entry := range result.Entries {
		res := entry.Result
		status := title.String(string(res.Status))
		if style, ok := statusStyles[res.Status]; ok {
			status = style.Sprint(status)
		}
		t.AppendRow(table.Row{entry.StepID, status, action(res), res.Address, shortHash(res.TxID)})
	}
	t.Render()

	for _, entry := range result.Entries {
		if entry.Result.Error != "" {
			fmt.Fprintf(r.out, "\n%s %s: %s", color.New(color.FgRed).Sprint("✗"), entry.StepID, entry.Result.Error)
		}
	}

	var parts []string
	for _, status := range []domain.StepStatus{domain.StepStatusSucceeded, domain.StepStatusPending, domain.StepStatusFailed} {
		if n := result.Summary[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	fmt.Fprintf(r.out, "\n%s\n", strings.Join(parts, ", "))
	return nil
}

// RenderReset reports the entries removed by a reset
func (r *JournalRenderer) RenderReset(result *usecase.ResetJournalResult) error {
	for _, id := range result.Missing {
		fmt.Fprintln(r.out, FormatWarning(fmt.Sprintf("Step %s has no journal entry on %s", id, result.Network)))
	}
	if len(result.Removed) == 0 {
		fmt.Fprintf(r.out, "Nothing to reset on %s\n", result.Network)
		return nil
	}
	fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Removed %d journal entr%s on %s: %s",
		len(result.Removed), plural(len(result.Removed), "y", "ies"), result.Network, strings.Join(result.Removed, ", "))))
	return nil
}

func action(res *domain.StepResult) string {
	if res.Function != "" {
		if res.Contract != "" {
			return fmt.Sprintf("%s.%s", res.Contract, res.Function)
		}
		return res.Function
	}
	return res.Contract
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var _ Renderer[*usecase.ShowJournalResult] = (*JournalRenderer)(nil)

package interactive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// errSelectionCancelled is returned when the user quits the picker
var errSelectionCancelled = errors.New("selection cancelled")

// stepPicker is the bubbletea model for picking journal entries
type stepPicker struct {
	entries   []usecase.JournalEntry
	cursor    int
	selected  map[int]bool
	title     string
	confirmed bool
}

func newStepPicker(entries []usecase.JournalEntry, title string) stepPicker {
	return stepPicker{
		entries:  entries,
		selected: make(map[int]bool, len(entries)),
		title:    title,
	}
}

// Init is the initial command for bubbletea
func (m stepPicker) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m stepPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.entries)-1 {
			m.cursor++
		}
	case " ", "x":
		m.selected[m.cursor] = !m.selected[m.cursor]
	case "a":
		all := len(m.chosen()) < len(m.entries)
		for i := range m.entries {
			m.selected[i] = all
		}
	case "enter":
		if len(m.chosen()) > 0 {
			m.confirmed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the picker
func (m stepPicker) View() string {
	if m.confirmed {
		return ""
	}

	var b strings.Builder
	b.WriteString(color.New(color.FgCyan, color.Bold).Sprintf("%s\n\n", m.title))

	for i, entry := range m.entries {
		cursor := " "
		if m.cursor == i {
			cursor = color.New(color.FgCyan).Sprint("▸")
		}

		checkbox := color.New(color.FgWhite).Sprint("○")
		if m.selected[i] {
			checkbox = color.New(color.FgGreen).Sprint("✓")
		}

		fmt.Fprintf(&b, "%s %s %-20s %s", cursor, checkbox, entry.StepID, statusLabel(entry.Result.Status))
		if action := entry.Result.Function; action != "" {
			fmt.Fprintf(&b, "  %s", color.New(color.Faint).Sprint(action))
		} else if entry.Result.Contract != "" {
			fmt.Fprintf(&b, "  %s", color.New(color.Faint).Sprint(entry.Result.Contract))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(color.New(color.FgYellow).Sprint("↑/↓: move  Space: toggle  a: all  Enter: confirm  q: quit\n"))

	return b.String()
}

// chosen returns the selected step ids in journal order
func (m stepPicker) chosen() []string {
	var ids []string
	for i, entry := range m.entries {
		if m.selected[i] {
			ids = append(ids, entry.StepID)
		}
	}
	return ids
}

func statusLabel(status domain.StepStatus) string {
	switch status {
	case domain.StepStatusSucceeded:
		return color.New(color.FgGreen).Sprint(status)
	case domain.StepStatusFailed:
		return color.New(color.FgRed).Sprint(status)
	default:
		return color.New(color.FgYellow).Sprint(status)
	}
}

// SelectSteps shows a multi-select of journal entries and returns the chosen step ids
func (s *SelectorAdapter) SelectSteps(ctx context.Context, entries []usecase.JournalEntry, prompt string) ([]string, error) {
	if s.config.NonInteractive {
		return nil, fmt.Errorf("interactive selection not available in non-interactive mode, name the steps instead")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no journal entries to select")
	}

	final, err := tea.NewProgram(newStepPicker(entries, prompt), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("step selection failed: %w", err)
	}

	m := final.(stepPicker)
	if !m.confirmed {
		return nil, errSelectionCancelled
	}
	return m.chosen(), nil
}

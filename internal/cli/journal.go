package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NewJournalCmd creates the journal command
func NewJournalCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "journal <network>",
		Short: "Show the steps recorded on a network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ShowJournal.Run(cmd.Context(), usecase.ShowJournalParams{Network: args[0]})
			if err != nil {
				return err
			}

			if jsonOutput {
				return render.RenderJSON(cmd.OutOrStdout(), journalReport(result))
			}
			return render.NewJournalRenderer(cmd.OutOrStdout()).Render(result)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the journal as JSON")
	cmd.AddCommand(newJournalResetCmd())

	return cmd
}

func newJournalResetCmd() *cobra.Command {
	var (
		yes    bool
		choose bool
	)

	cmd := &cobra.Command{
		Use:   "reset <network> [step...]",
		Short: "Forget recorded steps so they run again",
		Long: `Remove journal entries of a network. Without step ids every entry is removed.

The contracts and transactions stay on-chain; the next run simply executes the
forgotten steps again.`,
		Example: `  # Re-run the fund step on the next execution
  treb-plan journal reset private fund

  # Pick the entries to forget from a list
  treb-plan journal reset private --select

  # Start over on a fresh deployment
  treb-plan journal reset private --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			network, steps := args[0], args[1:]
			if choose {
				if len(steps) > 0 {
					return fmt.Errorf("--select cannot be combined with step ids")
				}
				journal, err := app.ShowJournal.Run(cmd.Context(), usecase.ShowJournalParams{Network: network})
				if err != nil {
					return err
				}
				if len(journal.Entries) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Nothing recorded on %s\n", network)
					return nil
				}
				steps, err = app.Selector.SelectSteps(cmd.Context(), journal.Entries,
					fmt.Sprintf("Select journal entries to reset on %s", network))
				if err != nil {
					return err
				}
			} else if !yes && !app.Config.NonInteractive {
				what := "every journal entry"
				switch len(steps) {
				case 0:
				case 1:
					what = "the journal entry of " + steps[0]
				default:
					what = fmt.Sprintf("%d journal entries", len(steps))
				}
				ok, err := app.Confirmer.Confirm(cmd.Context(), fmt.Sprintf("Remove %s on %s", what, network))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled")
					return nil
				}
			}

			result, err := app.ResetJournal.Run(cmd.Context(), usecase.ResetJournalParams{
				Network: network,
				Steps:   steps,
			})
			if err != nil {
				return err
			}
			return render.NewJournalRenderer(cmd.OutOrStdout()).RenderReset(result)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVarP(&choose, "select", "s", false, "Pick the entries to reset interactively")

	return cmd
}

type journalEntryReport struct {
	Step     string `json:"step"`
	Status   string `json:"status"`
	Contract string `json:"contract,omitempty"`
	Function string `json:"function,omitempty"`
	Address  string `json:"address,omitempty"`
	TxID     string `json:"txId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type journalOutput struct {
	Network  string               `json:"network"`
	Revision uint64               `json:"revision"`
	Steps    []journalEntryReport `json:"steps"`
}

func journalReport(result *usecase.ShowJournalResult) journalOutput {
	out := journalOutput{
		Network:  result.Network,
		Revision: result.Revision,
		Steps:    []journalEntryReport{},
	}
	for _, entry := range result.Entries {
		r := entry.Result
		out.Steps = append(out.Steps, journalEntryReport{
			Step:     entry.StepID,
			Status:   string(r.Status),
			Contract: r.Contract,
			Function: r.Function,
			Address:  r.Address,
			TxID:     r.TxID,
			Error:    r.Error,
		})
	}
	return out
}

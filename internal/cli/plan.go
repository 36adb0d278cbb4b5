package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-plan/internal/app"
	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var (
		params         []string
		parametersFile string
		jsonOutput     bool
	)

	cmd := &cobra.Command{
		Use:   "plan [network] <plan-file>",
		Short: "Execute a deployment plan against a network",
		Long: `Execute the steps of a plan in dependency order against a network.

Every step outcome is written to the network's journal as soon as it is known.
Steps that already succeeded on the network are skipped, so re-running the same
command resumes after a failure or interruption.

Plan file (presale.yaml):
  name: presale
  parameters:
    owner: null              # required, pass with --param owner=0x...
    price: 0.00005 ether
  steps:
    - id: token
      kind: deploy
      contract: GigaTronix
      args: [{param: owner}]
    - id: presale
      kind: deploy
      contract: Presale
      args: [{stepOutput: token}, {param: price}]
    - id: fund
      kind: invoke
      target: {stepOutput: token}
      function: transfer
      args: [{stepOutput: presale}, 400000000 ether]

Exit codes:
  0  all steps succeeded or were already done
  1  any other error
  2  the plan is malformed
  3  the steps reference each other in a cycle
  4  a deploy or call failed or timed out
  5  the run was cancelled
  6  a secret is not set`,
		Example: `  # Execute a plan on the private network
  treb-plan plan private examples/presale.yaml

  # Show what would run without sending transactions
  treb-plan plan private examples/presale.yaml --dry-run

  # Override parameters and skip the confirmation prompt
  treb-plan plan bsc examples/presale.yaml --param owner=0x55d398326f99059fF775485246999027B3197955 --yes

  # Pick the network interactively
  treb-plan plan examples/presale.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			planFile := args[len(args)-1]
			network := ""
			if len(args) == 2 {
				network = args[0]
			}
			network, err = resolveNetworkName(cmd, app, network)
			if err != nil {
				return err
			}

			if jsonOutput && !app.Config.DryRun && !app.Config.AssumeYes && !app.Config.NonInteractive {
				return fmt.Errorf("--json needs --yes or --non-interactive to skip the confirmation prompt")
			}

			overrides, err := parseParamFlags(params)
			if err != nil {
				return err
			}

			result, runErr := app.ExecutePlan.Run(cmd.Context(), usecase.ExecutePlanParams{
				Network: network,
				Plan: usecase.PlanRequest{
					Path:           planFile,
					Parameters:     overrides,
					ParametersFile: parametersFile,
				},
			})

			if jsonOutput {
				if err := render.RenderJSON(cmd.OutOrStdout(), newPlanReport(result, runErr)); err != nil {
					return err
				}
				return runErr
			}

			render.NewPlanRenderer(cmd.OutOrStdout()).RenderResult(result, runErr)
			return runErr
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Set a plan parameter (format: NAME=VALUE, can be used multiple times)")
	cmd.Flags().StringVar(&parametersFile, "parameters", "", "YAML or JSON file with plan parameter values")
	cmd.Flags().Duration("step-timeout", 0, "Bound on a single deploy or call, including confirmation")
	cmd.Flags().Bool("parallel", false, "Run independent groups of steps concurrently")
	cmd.Flags().Bool("dry-run", false, "Show what would run without sending transactions")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

// resolveNetworkName falls back to TREB_NETWORK, then to an interactive selection
func resolveNetworkName(cmd *cobra.Command, appInstance *app.App, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if appInstance.Config.Network != nil {
		return appInstance.Config.Network.Name, nil
	}
	networks := appInstance.Networks.GetNetworks(cmd.Context())
	name, err := appInstance.Selector.SelectNetwork(cmd.Context(), networks, "Select network")
	if err != nil {
		return "", fmt.Errorf("no network given: %w", err)
	}
	return name, nil
}

// parseParamFlags parses NAME=VALUE pairs
func parseParamFlags(params []string) (map[string]string, error) {
	if len(params) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(params))
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter format: %s (expected NAME=VALUE)", p)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("parameter %s given more than once", name)
		}
		values[name] = value
	}
	return values, nil
}

type planReport struct {
	Plan     string       `json:"plan,omitempty"`
	Network  string       `json:"network,omitempty"`
	RunID    string       `json:"runId,omitempty"`
	DryRun   bool         `json:"dryRun,omitempty"`
	Steps    []stepReport `json:"steps"`
	Executed int          `json:"executed"`
	Skipped  int          `json:"skipped"`
	Success  bool         `json:"success"`
	Error    string       `json:"error,omitempty"`
	ExitCode int          `json:"exitCode"`
}

type stepReport struct {
	ID         string `json:"id"`
	Outcome    string `json:"outcome"`
	Address    string `json:"address,omitempty"`
	TxID       string `json:"txId,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newPlanReport(result *usecase.ExecutePlanResult, runErr error) planReport {
	report := planReport{
		Steps:    []stepReport{},
		Success:  runErr == nil,
		ExitCode: ExitCode(runErr),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if result == nil {
		return report
	}

	if plan := result.ExecutionPlan; plan != nil {
		report.Plan = plan.Plan.Name
		report.RunID = plan.RunID
		report.DryRun = plan.DryRun
		if plan.Network != nil {
			report.Network = plan.Network.Name
		}
	}
	report.Executed = result.Executed
	report.Skipped = result.Skipped

	for _, exec := range result.Steps {
		step := stepReport{
			ID:         exec.Step.ID,
			Outcome:    string(exec.Outcome),
			Address:    exec.Outputs.Address,
			TxID:       exec.Outputs.TxID,
			DurationMS: exec.Duration.Milliseconds(),
		}
		if exec.Error != nil {
			step.Error = exec.Error.Error()
		}
		report.Steps = append(report.Steps, step)
	}
	return report
}

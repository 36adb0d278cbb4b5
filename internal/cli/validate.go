package cli

import (
	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NewValidateCmd creates the validate command
func NewValidateCmd() *cobra.Command {
	var (
		params         []string
		parametersFile string
		jsonOutput     bool
		skipArtifacts  bool
	)

	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Check a plan and print its execution order",
		Long: `Parse a plan, check every reference and resolve the order its steps would run in.
Every contract, function and literal argument is checked against the compiled
artifacts. Nothing is sent to any network and no journal is read.`,
		Example: `  treb-plan validate examples/presale.yaml --param owner=0x55d398326f99059fF775485246999027B3197955`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			overrides, err := parseParamFlags(params)
			if err != nil {
				return err
			}

			result, err := app.ValidatePlan.Run(cmd.Context(), usecase.ValidatePlanParams{
				Plan: usecase.PlanRequest{
					Path:           args[0],
					Parameters:     overrides,
					ParametersFile: parametersFile,
				},
				SkipArtifacts: skipArtifacts,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return render.RenderJSON(cmd.OutOrStdout(), result)
			}
			render.NewPlanRenderer(cmd.OutOrStdout()).RenderValidation(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Set a plan parameter (format: NAME=VALUE, can be used multiple times)")
	cmd.Flags().StringVar(&parametersFile, "parameters", "", "YAML or JSON file with plan parameter values")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")
	cmd.Flags().BoolVar(&skipArtifacts, "skip-artifacts", false, "Check the plan structure only, without compiled artifacts")

	return cmd
}

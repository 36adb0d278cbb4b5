package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/config"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of treb-plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return render.RenderJSON(cmd.OutOrStdout(), map[string]string{
					"version": config.Version,
					"commit":  config.Commit,
					"date":    config.Date,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "treb-plan %s (commit %s, built %s)\n", config.Version, config.Commit, config.Date)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version information as JSON")

	return cmd
}

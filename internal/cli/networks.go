package cli

import (
	"github.com/spf13/cobra"

	"github.com/trebuchet-org/treb-plan/internal/cli/render"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List networks configured in treb.toml",
		Long: `List all networks configured in the [networks] section of treb.toml.

Each endpoint is asked for its chain ID, which is compared with the configured
chain_id. Use --offline to skip the lookup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListNetworks.Run(cmd.Context(), usecase.ListNetworksParams{Offline: offline})
			if err != nil {
				return err
			}

			return render.NewNetworksRenderer(cmd.OutOrStdout()).RenderNetworksList(result, offline)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the live chain ID lookup")

	return cmd
}

package main

import (
	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/app"
)

func newMockServerCmd() *cobra.Command {
	opts := app.MockOptions{}
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory engagement backend",
		Long: "Serve the engagement API from memory. The engagement's page data grows from a\n" +
			"replayed scenario (crawl by default, \"none\" disables the feed).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = pslog.Ctx(cmd.Context())
			return app.MockServer(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", app.DefaultMockAddr, "listen address")
	cmd.Flags().StringVar(&opts.EngagementID, "engagement", "", "engagement id to serve (default generated)")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", app.DefaultFeedScenario, "scenario feeding page data, or \"none\"")
	return cmd
}

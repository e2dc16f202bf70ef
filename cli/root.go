package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cleanscore-server",
		Short:        "Photo cleanliness scoring API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(ensureIndexesCmd())
	cmd.AddCommand(reindexCmd())
	return cmd
}

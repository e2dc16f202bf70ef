package cli

import (
	"fmt"

	"cleanscore-server/services"

	"github.com/spf13/cobra"
)

func ensureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()
			return services.EnsureIndexes(cmd.Context(), b.db)
		},
	}
}

// reindexCmd rebuilds the Redis cache, leaderboard and geo index from the
// locations collection.
func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Redis location index from MongoDB",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			locs, err := services.NewMongoLocationStore(b.db).All(cmd.Context())
			if err != nil {
				return fmt.Errorf("load locations: %w", err)
			}
			if err := b.locationIndex().Rebuild(cmd.Context(), locs); err != nil {
				return fmt.Errorf("rebuild index: %w", err)
			}
			return nil
		},
	}
}

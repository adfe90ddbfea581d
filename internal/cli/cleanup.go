package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallmesh/recallmesh/internal/config"
	"github.com/recallmesh/recallmesh/internal/graph"
	"github.com/recallmesh/recallmesh/internal/store"
)

func newCleanupCmd() *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune weak and stale relation edges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg.LogLevel)

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			builder := graph.NewBuilder(graph.DefaultConfig(),
				store.NewMemoryStore(db), store.NewRelationStore(db),
				nil, nil, nil, logger)

			removed, err := builder.Cleanup(context.Background(), ownerID)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d relation edges\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "limit the pass to one owner")
	return cmd
}

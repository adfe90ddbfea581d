package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recallmesh/recallmesh/internal/config"
	"github.com/recallmesh/recallmesh/internal/graph"
	"github.com/recallmesh/recallmesh/internal/provider"
	"github.com/recallmesh/recallmesh/internal/store"
	"github.com/recallmesh/recallmesh/internal/vectorstore"
)

func newRelinkCmd() *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "relink",
		Short: "Rebuild relation edges for an owner's memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ownerID == "" {
				return fmt.Errorf("--owner is required")
			}
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

			memories := store.NewMemoryStore(db)
			qdrant := vectorstore.NewClient(cfg.QdrantURL, cfg.EmbeddingDim)
			embedder := provider.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
			builder := graph.NewBuilder(graph.DefaultConfig(),
				memories, store.NewRelationStore(db), embedder, qdrant, nil, logger)

			all, err := memories.ListByOwner(ownerID)
			if err != nil {
				return fmt.Errorf("list memories: %w", err)
			}

			ctx := context.Background()
			var created, pruned int
			for _, mem := range all {
				c, p, err := builder.Link(ctx, mem.ID, nil)
				if err != nil {
					logger.Error("relink failed", "memory", mem.ID, "error", err)
					continue
				}
				created += c
				pruned += p
			}
			fmt.Printf("relinked %d memories: %d edges created, %d pruned\n", len(all), created, pruned)
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner whose memories to relink")
	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memoryengine/internal/embedding"
	"memoryengine/internal/memory"
	"memoryengine/internal/store"
)

var backfillVectors bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Open the database, running any pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		defer st.Close()
		logger.Info("migrations applied", zap.String("db", path))

		if !backfillVectors {
			return nil
		}

		project, err := resolveProjectPath()
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		embed, err := embedding.NewEngine(embedding.DefaultConfig())
		if err != nil {
			return fmt.Errorf("migrate: build embedding engine for backfill: %w", err)
		}
		result, err := memory.BackfillVectorEmbeddings(context.Background(), st, embed, project)
		if err != nil {
			return fmt.Errorf("migrate: backfill vector embeddings: %w", err)
		}
		logger.Info("vector embedding backfill complete",
			zap.Int("total", result.Total), zap.Int("migrated", result.Migrated),
			zap.Int("skipped", result.Skipped), zap.Int("failed", result.Failed))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&backfillVectors, "backfill-vectors", false,
		"after migrating, encode and write embeddings for memories with a null vector_embedding")
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memoryengine/internal/graph"
	"memoryengine/internal/store"
)

var communitiesMinClusterSize int

var communitiesCmd = &cobra.Command{
	Use:   "communities",
	Short: "Rebuild memory communities for a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("communities: %w", err)
		}
		defer st.Close()

		project, err := resolveProjectPath()
		if err != nil {
			return fmt.Errorf("communities: %w", err)
		}

		g := graph.New(st)
		n, err := g.BuildCommunities(context.Background(), project, communitiesMinClusterSize)
		if err != nil {
			return fmt.Errorf("communities: %w", err)
		}
		logger.Info("communities rebuilt", zap.Int("count", n), zap.String("project", project))
		fmt.Printf("rebuilt %d communities for %s\n", n, project)
		return nil
	},
}

func init() {
	communitiesCmd.Flags().IntVar(&communitiesMinClusterSize, "min-cluster-size", 0, "minimum members per cluster (0 uses the default)")
	rootCmd.AddCommand(communitiesCmd)
}

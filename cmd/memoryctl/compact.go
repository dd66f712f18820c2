package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memoryengine/internal/memory"
	"memoryengine/internal/store"
)

var (
	compactTopic   string
	compactSummary string
	compactLimit   int
	compactDryRun  bool
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Summarize and archive a cluster of related memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		if compactTopic == "" {
			return fmt.Errorf("compact: --topic is required")
		}

		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("compact: %w", err)
		}
		defer st.Close()

		project, err := resolveProjectPath()
		if err != nil {
			return fmt.Errorf("compact: %w", err)
		}
		mgr := memory.New(st, nil, nil, project, memory.Options{})
		defer mgr.Close()

		result, err := mgr.Compact(memory.CompactionInput{
			Topic:   compactTopic,
			Summary: compactSummary,
			Limit:   compactLimit,
			DryRun:  compactDryRun,
		})
		if err != nil {
			return fmt.Errorf("compact: %w", err)
		}
		logger.Info("compact finished", zap.String("status", result.Status))
		fmt.Printf("status: %s\n", result.Status)
		if result.Status == "dry_run" {
			fmt.Printf("would compact %d memories: %v\n", result.WouldCompact, result.CandidateIDs)
		}
		if result.Status == "compacted" {
			fmt.Printf("summary memory id %d, compacted %d, archived %v\n", result.SummaryID, result.CompactedCount, result.ArchivedIDs)
		}
		if result.Error != "" {
			fmt.Printf("error: %s\n", result.Error)
		}
		return nil
	},
}

func init() {
	compactCmd.Flags().StringVar(&compactTopic, "topic", "", "topic to cluster candidate memories around (required)")
	compactCmd.Flags().StringVar(&compactSummary, "summary", "", "replacement summary content (required, also with --dry-run; at least 50 characters)")
	compactCmd.Flags().IntVar(&compactLimit, "limit", 0, "maximum candidates to consider (0 uses the default)")
	compactCmd.Flags().BoolVar(&compactDryRun, "dry-run", false, "report candidates without compacting")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memoryengine/internal/store"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the database aside with a timestamped suffix",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		backupPath, err := store.CreateBackup(path)
		if err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		logger.Info("backup created", zap.String("path", backupPath))
		fmt.Println(backupPath)
		return nil
	},
}

var restorePath string

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Overwrite the database with a previously created backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		if restorePath == "" {
			return fmt.Errorf("restore: --from is required")
		}
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		if err := store.RestoreBackup(path, restorePath); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		logger.Info("backup restored", zap.String("from", restorePath), zap.String("to", path))
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restorePath, "from", "", "backup file to restore (required)")
}

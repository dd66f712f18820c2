// Command memoryctl is the operator CLI for the memory engine: database
// migration, statistics, vacuum, backup/restore, and manual compaction,
// run outside of any MCP-style tool-gated session.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose     bool
	projectRoot string
	dbPath      string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "memoryctl",
	Short: "Operator CLI for the memory engine's durable store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project", "", "project root (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "explicit database path (overrides --project's derived storage dir)")

	rootCmd.AddCommand(migrateCmd, statsCmd, vacuumCmd, backupCmd, restoreCmd, compactCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveDBPath applies the same --db override / --project-derived default
// precedence every subcommand uses.
func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	root := projectRoot
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	return filepath.Join(root, ".claude-memory", "storage", "memory.db"), nil
}

// resolveProjectPath returns --project, defaulting to the current
// directory, for subcommands that need a project_path value rather than
// a database file path.
func resolveProjectPath() (string, error) {
	if projectRoot != "" {
		return projectRoot, nil
	}
	return os.Getwd()
}

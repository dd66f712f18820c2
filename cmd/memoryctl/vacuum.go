package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"memoryengine/internal/store"
)

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Reclaim disk space left by deleted/archived rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		defer st.Close()

		if _, err := st.DB().Exec("VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		logger.Info("vacuum complete")
		return nil
	},
}

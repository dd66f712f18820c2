package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"memoryengine/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print row counts for each table in the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveDBPath()
		if err != nil {
			return err
		}
		st, err := store.Open(path)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		defer st.Close()

		counts, err := st.Stats()
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		tables := make([]string, 0, len(counts))
		for t := range counts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			fmt.Printf("%-30s %d\n", t, counts[t])
		}
		return nil
	},
}

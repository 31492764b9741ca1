package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the enrichment cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openCache(cmd.Context(), cfg.Cache)
		defer store.Close()

		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries", stats.Entries)
		if !stats.Oldest.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), " (oldest %s)", stats.Oldest.Format("2006-01-02"))
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached enrichment results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openCache(cmd.Context(), cfg.Cache)
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/promdata/mtr-cli/internal/detect"
	"github.com/promdata/mtr-cli/internal/fetcher"
	"github.com/promdata/mtr-cli/internal/registry"
)

var analyzeSheet string

// analyze runs the keyword detector only, so operators can see the
// category distribution of a file before spending API budget on it.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.xlsx>",
	Short: "Report category distribution without external calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := registry.Load(cfg.Categories.Path)
		if err != nil {
			return err
		}
		rows, err := fetcher.ReadXLSX(args[0], fetcher.XLSXOptions{SheetName: analyzeSheet})
		if err != nil {
			return err
		}

		detector := detect.New(categories, nil, "")
		counts := make(map[string]int)
		for _, row := range rows {
			res, err := detector.Detect(cmd.Context(), row)
			if err != nil {
				continue
			}
			counts[res.Category.Name]++
		}

		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return counts[names[i]] > counts[names[j]] })

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%d rows\n", len(rows))
		for _, name := range names {
			fmt.Fprintf(w, "  %-20s %d\n", name, counts[name])
		}
		for _, prop := range detector.Proposals() {
			fmt.Fprintf(w, "proposal: %q seen %d times (e.g. %s)\n", prop.Pattern, prop.Count, prop.Example)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSheet, "sheet", "", "sheet name (default: first sheet)")
	rootCmd.AddCommand(analyzeCmd)
}

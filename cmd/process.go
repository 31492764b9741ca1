package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/promdata/mtr-cli/internal/fetcher"
	"github.com/promdata/mtr-cli/internal/model"
	"github.com/promdata/mtr-cli/internal/pipeline"
)

var (
	processOutput  string
	processSheet   string
	processWorkers int
)

var processCmd = &cobra.Command{
	Use:   "process <input.xlsx> [more.xlsx...]",
	Short: "Normalize MTR line items from one or more XLSX files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&processOutput, "output", "o", "", "output file (single input) or directory (multiple inputs)")
	processCmd.Flags().StringVar(&processSheet, "sheet", "", "sheet name (default: first sheet)")
	processCmd.Flags().IntVarP(&processWorkers, "workers", "w", 0, "worker pool size (default from config)")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, _, store, err := newPipeline(ctx, cfg, processWorkers)
	if err != nil {
		return err
	}
	defer store.Close()

	// Files process independently; a failed file does not stop the rest.
	var firstErr error
	for _, input := range args {
		if ctx.Err() != nil {
			break
		}
		if err := processFile(ctx, p, input, outputPath(input, len(args))); err != nil {
			zap.L().Error("process: file failed", zap.String("input", input), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	printSummary(cmd, p.Stats().Snapshot())
	return firstErr
}

func processFile(ctx context.Context, p *pipeline.Pipeline, input, output string) error {
	rows, err := fetcher.ReadXLSX(input, fetcher.XLSXOptions{SheetName: processSheet})
	if err != nil {
		return err
	}

	result, runErr := p.ProcessRows(ctx, rows)
	if result != nil {
		if err := fetcher.WriteXLSX(output, result.Outcomes); err != nil {
			return err
		}
		for _, prop := range result.Proposals {
			zap.L().Info("category proposal",
				zap.String("pattern", prop.Pattern), zap.Int("count", prop.Count),
				zap.String("example", prop.Example))
		}
	}
	return runErr
}

// outputPath picks the output file for one input. Explicit --output wins
// for a single file; otherwise the input name gets a suffix.
func outputPath(input string, inputs int) string {
	if processOutput != "" && inputs == 1 {
		return processOutput
	}
	ext := filepath.Ext(input)
	base := strings.TrimSuffix(input, ext) + "_normalized" + ext
	if processOutput != "" {
		return filepath.Join(processOutput, filepath.Base(base))
	}
	return base
}

func printSummary(cmd *cobra.Command, s model.StatsSnapshot) {
	fmt.Fprintf(cmd.OutOrStdout(),
		"processed %d rows in %s: %d accepted, %d rejected, %d failed, %d abandoned (%d cache hits, %d API calls, %d in / %d out tokens)\n",
		s.Processed, s.Elapsed.Round(time.Millisecond), s.Accepted, s.Rejected, s.Failed, s.Abandoned,
		s.CacheHits, s.APICalls, s.InputTokens, s.OutputTokens)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/micbench-labs/micbench/internal/pipeline"
	"github.com/micbench-labs/micbench/internal/report"
	"github.com/micbench-labs/micbench/internal/runtime"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		samplesFlag string
		mergeFlag   bool
		notesFlag   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate samples and write all artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cmdCtx.ensure()
			if err != nil {
				return err
			}
			ids, err := parseSampleIDs(samplesFlag)
			if err != nil {
				return err
			}
			if len(ids) > 0 && !mergeFlag {
				logger.Warn("re-evaluating a subset without --merge discards other stored results")
			}

			ctx := cmd.Context()
			rt := runtime.New(cfg, logger)
			if err := rt.Start(ctx); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				_ = rt.Shutdown(shutdownCtx)
			}()

			if !mergeFlag {
				if err := rt.Store().ClearEvaluations(ctx); err != nil {
					return fmt.Errorf("clear previous results: %w", err)
				}
			}

			p := pipeline.New(cfg, rt.Bus(), rt.Store(), logger)
			result, err := p.Run(ctx, pipeline.Options{SampleIDs: ids, Notes: notesFlag})
			if err != nil {
				return err
			}
			if result.Evaluated == 0 {
				return fmt.Errorf("no samples could be evaluated")
			}

			evals, err := rt.Store().ListEvaluations(ctx)
			if err != nil {
				return err
			}
			rep, err := writeArtifacts(cfg, evals, result.ReferenceWords, logger)
			if err != nil {
				return err
			}

			report.RenderSummary(os.Stdout, rep)
			logger.Info("run complete",
				slog.String("run_id", result.RunID),
				slog.Int("evaluated", result.Evaluated),
				slog.Int("skipped", result.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&samplesFlag, "samples", "", "Comma-separated sample IDs to evaluate (default: all)")
	cmd.Flags().BoolVar(&mergeFlag, "merge", false, "Keep existing results and replace only the evaluated samples")
	cmd.Flags().StringVar(&notesFlag, "notes", "", "Free-form notes stored with the run")

	return cmd
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/micbench-labs/micbench/internal/report"
	"github.com/micbench-labs/micbench/internal/resultstore"
	"github.com/micbench-labs/micbench/internal/textmetrics"
)

func newReportCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Regenerate artifacts from stored results without re-evaluating",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cmdCtx.ensure()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := resultstore.Open(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			evals, err := store.ListEvaluations(ctx)
			if err != nil {
				return err
			}
			if len(evals) == 0 {
				return fmt.Errorf("no stored results; run `micbench run` first")
			}

			refWords, err := referenceWordCount(cfg.Reference.TextFile)
			if err != nil {
				return err
			}

			rep, err := writeArtifacts(cfg, evals, refWords, logger)
			if err != nil {
				return err
			}
			report.RenderSummary(os.Stdout, rep)
			return nil
		},
	}
}

func referenceWordCount(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read reference text: %w", err)
	}
	normalized := textmetrics.Normalize(string(data))
	if normalized == "" {
		return 0, fmt.Errorf("reference text %s is empty after normalization", path)
	}
	return len(strings.Fields(normalized)), nil
}

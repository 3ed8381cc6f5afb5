package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/micbench-labs/micbench/internal/resultstore"
)

func newCorrelateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "correlate",
		Short: "Write correlation artifacts from stored results",
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

			return writeCorrelations(cfg, evals, logger)
		},
	}
}

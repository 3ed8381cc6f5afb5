package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/micbench-labs/micbench/internal/metadata"
	"github.com/micbench-labs/micbench/internal/report"
	"github.com/micbench-labs/micbench/internal/resultstore"
)

func newValidateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check stored results against the metadata inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cmdCtx.ensure()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			set, err := metadata.Load(cfg.Paths.MetadataFile)
			if err != nil {
				return err
			}

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
				return fmt.Errorf("no stored results to validate")
			}

			refWords, err := referenceWordCount(cfg.Reference.TextFile)
			if err != nil {
				return err
			}

			rep := report.Build(evals, refWords, servicesFrom(cfg, evals))
			violations := report.Validate(rep, set)
			for _, v := range violations {
				fmt.Fprintln(cmd.ErrOrStderr(), v)
			}
			if len(violations) > 0 {
				return fmt.Errorf("%d validation violations", len(violations))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "results valid: %d samples, %d services\n",
				len(evals), len(rep.Rankings.ByWER))
			return nil
		},
	}
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/micbench-labs/micbench/internal/metadata"
	"github.com/micbench-labs/micbench/internal/spectrogram"
)

func newSpectrogramCommand(cmdCtx *commandContext) *cobra.Command {
	var pdfFlag bool

	cmd := &cobra.Command{
		Use:   "spectrogram",
		Short: "Render spectrogram PNGs for every sample",
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

			gen := spectrogram.New(cfg.Spectrogram, cfg.Evaluation.FFmpegBinary, logger)
			if err := gen.RenderAll(ctx, set, cfg.Paths.SamplesDir, cfg.Paths.SpectrogramsDir); err != nil {
				return err
			}

			if pdfFlag {
				outPath := filepath.Join(cfg.Paths.SpectrogramsDir, cfg.Spectrogram.CollectionPDF)
				if err := spectrogram.CollectPDF(set, cfg.Paths.SpectrogramsDir, outPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "collection PDF written to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pdfFlag, "pdf", false, "Also bind all spectrograms into a collection PDF")

	return cmd
}

package main

import (
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/micbench-labs/micbench/internal/analysis"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/report"
	"github.com/micbench-labs/micbench/internal/resultstore"
)

const (
	resultsFile          = "evaluation_results.json"
	reportFile           = "REPORT.md"
	featuresFile         = "audio_features.csv"
	correlationsFile     = "correlations.json"
	priceCorrelationFile = "price_correlation.json"
)

// servicesFrom returns the service names to report on: configured order
// first, then any extra services found in stored results.
func servicesFrom(cfg config.Config, evals []resultstore.SampleEvaluation) []string {
	seen := make(map[string]bool)
	var services []string
	for _, tc := range cfg.EnabledTranscribers() {
		services = append(services, tc.Name)
		seen[tc.Name] = true
	}

	var extra []string
	for _, e := range evals {
		for _, tr := range e.Transcriptions {
			if !seen[tr.Service] {
				seen[tr.Service] = true
				extra = append(extra, tr.Service)
			}
		}
	}
	sort.Strings(extra)
	return append(services, extra...)
}

// primaryService picks the service driving the correlation artifacts: the
// first reportable service that produced any transcription.
func primaryService(services []string, evals []resultstore.SampleEvaluation) string {
	for _, svc := range services {
		for _, e := range evals {
			if _, ok := e.TranscriptionFor(svc); ok {
				return svc
			}
		}
	}
	return ""
}

// writeArtifacts builds the report and writes every output file.
func writeArtifacts(cfg config.Config, evals []resultstore.SampleEvaluation, refWords int, logger *slog.Logger) (report.Report, error) {
	services := servicesFrom(cfg, evals)
	rep := report.Build(evals, refWords, services)
	outDir := cfg.Paths.OutputDir

	if err := report.WriteJSON(rep, filepath.Join(outDir, resultsFile)); err != nil {
		return rep, err
	}
	if err := report.WriteMarkdown(rep, filepath.Join(outDir, reportFile)); err != nil {
		return rep, err
	}
	if err := report.WriteFeaturesCSV(rep, services, filepath.Join(outDir, featuresFile)); err != nil {
		return rep, err
	}

	if err := writeCorrelations(cfg, evals, logger); err != nil {
		return rep, err
	}

	logger.Info("artifacts written", slog.String("dir", outDir))
	return rep, nil
}

func writeCorrelations(cfg config.Config, evals []resultstore.SampleEvaluation, logger *slog.Logger) error {
	services := servicesFrom(cfg, evals)
	primary := primaryService(services, evals)
	if primary == "" {
		logger.Warn("no transcriptions stored, skipping correlation artifacts")
		return nil
	}

	outDir := cfg.Paths.OutputDir
	features := analysis.FeatureCorrelations(evals, primary)
	if len(features.Correlations) == 0 {
		logger.Warn("not enough data for feature correlations",
			slog.String("service", primary))
	}
	if err := report.WriteAnalysisJSON(features, filepath.Join(outDir, correlationsFile)); err != nil {
		return err
	}

	price := analysis.PriceCorrelation(evals, primary)
	return report.WriteAnalysisJSON(price, filepath.Join(outDir, priceCorrelationFile))
}

package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WriteJSON writes the results file.
func WriteJSON(r Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// WriteAnalysisJSON writes a correlation artifact as indented JSON.
func WriteAnalysisJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// WriteMarkdown writes the human-readable report.
func WriteMarkdown(r Report, path string) error {
	var b strings.Builder

	b.WriteString("# Microphone Benchmark Results\n\n")
	fmt.Fprintf(&b, "Generated %s. %d samples evaluated against a %d-word reference passage.\n\n",
		r.Summary.GeneratedAt, r.Summary.TotalSamples, r.Summary.ReferenceTextWords)

	b.WriteString("## Audio Quality Ranking\n\n")
	b.WriteString("| Rank | Sample | Microphone | Category | Score |\n")
	b.WriteString("|-----:|-------:|------------|----------|------:|\n")
	for _, row := range r.Rankings.ByAudioQuality {
		fmt.Fprintf(&b, "| %d | %d | %s | %s | %.1f |\n",
			row.Rank, row.SampleID, row.Microphone, row.Category, row.Score)
	}
	b.WriteString("\n")

	for _, svc := range sortedServices(r.Rankings.ByWER) {
		fmt.Fprintf(&b, "## Accuracy Ranking: %s\n\n", titleCaseService(svc))
		b.WriteString("| Rank | Sample | Microphone | WER |\n")
		b.WriteString("|-----:|-------:|------------|----:|\n")
		for _, row := range r.Rankings.ByWER[svc] {
			fmt.Fprintf(&b, "| %d | %d | %s | %.2f%% |\n",
				row.Rank, row.SampleID, row.Microphone, row.WERPercent)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Category Analysis\n\n")
	b.WriteString("| Category | Samples | Avg Quality | Avg WER |\n")
	b.WriteString("|----------|--------:|------------:|--------:|\n")
	for _, cat := range sortedCategories(r.CategoryAnalysis) {
		stats := r.CategoryAnalysis[cat]
		fmt.Fprintf(&b, "| %s | %d | %.1f | %s |\n",
			cat, len(stats.Samples), stats.AvgQuality, formatAvgWER(stats.AvgWER))
	}
	b.WriteString("\n")

	return writeAtomic(path, []byte(b.String()))
}

// WriteFeaturesCSV writes one row per sample with the measured audio
// features and, per service, the WER.
func WriteFeaturesCSV(r Report, services []string, path string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"sample_id", "microphone", "category", "price_usd",
		"duration_s", "sample_rate", "channels", "bit_depth", "codec", "bitrate_kbps",
		"peak_db", "rms_db", "noise_floor_db", "snr_db", "dynamic_range_db",
		"silence_ratio", "clipping_ratio", "quality_score",
	}
	for _, svc := range services {
		header = append(header, svc+"_wer", svc+"_cer")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, e := range r.DetailedResults {
		m := e.Metrics
		row := []string{
			strconv.Itoa(e.SampleID),
			e.Microphone.Label(),
			e.Microphone.Category,
			formatFloat(e.Microphone.PriceUSD),
			formatFloat(m.DurationSeconds),
			strconv.Itoa(m.SampleRate),
			strconv.Itoa(m.Channels),
			formatIntPtr(m.BitDepth),
			m.Codec,
			formatFloatPtr(m.BitrateKbps),
			formatFloat(m.PeakAmplitudeDB),
			formatFloat(m.RMSLevelDB),
			formatFloat(m.NoiseFloorDB),
			formatFloatPtr(m.EstimatedSNRDB),
			formatFloat(m.DynamicRangeDB),
			formatFloat(m.SilenceRatio),
			formatFloat(m.ClippingRatio),
			formatFloat(e.QualityScore),
		}
		for _, svc := range services {
			if tr, ok := e.TranscriptionFor(svc); ok {
				row = append(row, formatFloat(tr.WER), formatFloat(tr.CER))
			} else {
				row = append(row, "", "")
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// Package report assembles benchmark artifacts from stored evaluations:
// the results JSON, a markdown report, the per-sample feature CSV, and the
// terminal summary.
package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/micbench-labs/micbench/internal/analysis"
	"github.com/micbench-labs/micbench/internal/metadata"
	"github.com/micbench-labs/micbench/internal/resultstore"
)

// Summary carries run-level counts.
type Summary struct {
	TotalSamples       int      `json:"total_samples"`
	ReferenceTextWords int      `json:"reference_text_words"`
	Services           []string `json:"services"`
	GeneratedAt        string   `json:"generated_at"`
}

// QualityRanking is one row of the composite-score ranking.
type QualityRanking struct {
	Rank       int     `json:"rank"`
	SampleID   int     `json:"sample_id"`
	Microphone string  `json:"microphone"`
	Category   string  `json:"category"`
	Score      float64 `json:"score"`
}

// WERRanking is one row of a per-service accuracy ranking.
type WERRanking struct {
	Rank       int     `json:"rank"`
	SampleID   int     `json:"sample_id"`
	Microphone string  `json:"microphone"`
	WERPercent float64 `json:"wer_percent"`
}

// Rankings groups the orderings published in the results file. ByWER is
// keyed by service name; samples a service never transcribed are absent
// from its ranking.
type Rankings struct {
	ByAudioQuality []QualityRanking        `json:"by_audio_quality"`
	ByWER          map[string][]WERRanking `json:"by_wer"`
}

// CategoryStats aggregates one microphone category.
type CategoryStats struct {
	Samples    []int    `json:"samples"`
	AvgQuality float64  `json:"avg_quality"`
	AvgWER     *float64 `json:"avg_wer"`
}

// Report is the evaluation_results.json model.
type Report struct {
	Summary          Summary                        `json:"summary"`
	Rankings         Rankings                       `json:"rankings"`
	CategoryAnalysis map[string]CategoryStats       `json:"category_analysis"`
	DetailedResults  []resultstore.SampleEvaluation `json:"detailed_results"`
}

// primaryService picks the service whose WER drives category averages: the
// first configured service that produced any transcription.
func primaryService(evals []resultstore.SampleEvaluation, services []string) string {
	for _, svc := range services {
		for _, e := range evals {
			if _, ok := e.TranscriptionFor(svc); ok {
				return svc
			}
		}
	}
	return ""
}

// Build assembles a report from stored evaluations. The detailed results
// keep their sample-id order; rankings are sorted best first.
func Build(evals []resultstore.SampleEvaluation, refWords int, services []string) Report {
	r := Report{
		Summary: Summary{
			TotalSamples:       len(evals),
			ReferenceTextWords: refWords,
			Services:           services,
			GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
		},
		Rankings:         Rankings{ByWER: make(map[string][]WERRanking)},
		CategoryAnalysis: make(map[string]CategoryStats),
		DetailedResults:  evals,
	}

	byQuality := make([]resultstore.SampleEvaluation, len(evals))
	copy(byQuality, evals)
	sort.SliceStable(byQuality, func(i, j int) bool {
		return byQuality[i].QualityScore > byQuality[j].QualityScore
	})
	for i, e := range byQuality {
		r.Rankings.ByAudioQuality = append(r.Rankings.ByAudioQuality, QualityRanking{
			Rank:       i + 1,
			SampleID:   e.SampleID,
			Microphone: e.Microphone.Label(),
			Category:   e.Microphone.Category,
			Score:      round1(e.QualityScore),
		})
	}

	for _, svc := range services {
		var ranked []resultstore.SampleEvaluation
		for _, e := range evals {
			if _, ok := e.TranscriptionFor(svc); ok {
				ranked = append(ranked, e)
			}
		}
		if len(ranked) == 0 {
			continue
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			a, _ := ranked[i].TranscriptionFor(svc)
			b, _ := ranked[j].TranscriptionFor(svc)
			return a.WER < b.WER
		})
		rows := make([]WERRanking, 0, len(ranked))
		for i, e := range ranked {
			tr, _ := e.TranscriptionFor(svc)
			rows = append(rows, WERRanking{
				Rank:       i + 1,
				SampleID:   e.SampleID,
				Microphone: e.Microphone.Label(),
				WERPercent: round2(tr.WER * 100),
			})
		}
		r.Rankings.ByWER[svc] = rows
	}

	primary := primaryService(evals, services)
	for cat, stats := range analysis.Categories(evals, primary) {
		r.CategoryAnalysis[cat] = CategoryStats{
			Samples:    stats.Samples,
			AvgQuality: stats.AvgQuality,
			AvgWER:     stats.AvgWER,
		}
	}

	return r
}

// Validate checks a report's internal consistency against the metadata set.
// It returns one message per violation.
func Validate(r Report, set metadata.Set) []string {
	var violations []string

	for _, e := range r.DetailedResults {
		sample, ok := set.ByID(e.SampleID)
		if !ok {
			violations = append(violations, fmt.Sprintf("sample %d not present in metadata", e.SampleID))
			continue
		}
		if sample.Microphone.Label() != e.Microphone.Label() {
			violations = append(violations, fmt.Sprintf(
				"sample %d microphone mismatch: %q vs metadata %q",
				e.SampleID, e.Microphone.Label(), sample.Microphone.Label()))
		}
		if e.QualityScore < 0 || e.QualityScore > 100 {
			violations = append(violations, fmt.Sprintf(
				"sample %d quality score %.1f outside [0, 100]", e.SampleID, e.QualityScore))
		}
		for _, tr := range e.Transcriptions {
			if tr.WER < 0 || tr.WER > 1.5 {
				violations = append(violations, fmt.Sprintf(
					"sample %d service %s WER %.3f outside [0, 1.5]", e.SampleID, tr.Service, tr.WER))
			}
		}
	}

	for i := 1; i < len(r.Rankings.ByAudioQuality); i++ {
		if r.Rankings.ByAudioQuality[i].Score > r.Rankings.ByAudioQuality[i-1].Score {
			violations = append(violations, "audio quality ranking not sorted by score")
			break
		}
	}
	for svc, rows := range r.Rankings.ByWER {
		for i := 1; i < len(rows); i++ {
			if rows[i].WERPercent < rows[i-1].WERPercent {
				violations = append(violations, fmt.Sprintf("%s ranking not sorted by WER", svc))
				break
			}
		}
	}

	return violations
}

// writeAtomic writes data to path via a temp file and rename so readers
// never observe a partial artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func formatAvgWER(w *float64) string {
	if w == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *w*100)
}

func sortedCategories(m map[string]CategoryStats) []string {
	cats := make([]string, 0, len(m))
	for cat := range m {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}

func sortedServices(m map[string][]WERRanking) []string {
	svcs := make([]string, 0, len(m))
	for svc := range m {
		svcs = append(svcs, svc)
	}
	sort.Strings(svcs)
	return svcs
}

func titleCaseService(svc string) string {
	parts := strings.Split(svc, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

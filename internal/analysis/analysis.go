// Package analysis computes the statistical findings published with a
// benchmark: correlations between audio features and recognition accuracy,
// price-versus-performance, and per-category aggregates.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/micbench-labs/micbench/internal/resultstore"
)

// minPairs is the smallest series length for which a correlation is
// reported.
const minPairs = 3

var (
	ErrTooFewPairs  = errors.New("too few value pairs")
	ErrZeroVariance = errors.New("series has zero variance")
)

// Pearson returns the Pearson correlation coefficient of two equal-length
// series.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("series length mismatch: %d vs %d", len(x), len(y))
	}
	if len(x) < minPairs {
		return 0, ErrTooFewPairs
	}

	n := float64(len(x))
	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= n
	meanY /= n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, ErrZeroVariance
	}
	return cov / math.Sqrt(varX*varY), nil
}

// Correlation pairs a feature name with its coefficient against WER.
type Correlation struct {
	Feature string  `json:"feature"`
	R       float64 `json:"r"`
	N       int     `json:"n"`
}

// FeatureReport is the correlations.json model.
type FeatureReport struct {
	Service      string        `json:"service"`
	Correlations []Correlation `json:"correlations"`
}

// featureExtractors maps feature names to metric accessors. A nil return
// excludes the sample from that feature's series.
var featureExtractors = []struct {
	name    string
	extract func(e resultstore.SampleEvaluation) *float64
}{
	{"estimated_snr_db", func(e resultstore.SampleEvaluation) *float64 { return e.Metrics.EstimatedSNRDB }},
	{"rms_level_db", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.RMSLevelDB; return &v }},
	{"peak_amplitude_db", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.PeakAmplitudeDB; return &v }},
	{"noise_floor_db", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.NoiseFloorDB; return &v }},
	{"dynamic_range_db", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.DynamicRangeDB; return &v }},
	{"silence_ratio", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.SilenceRatio; return &v }},
	{"clipping_ratio", func(e resultstore.SampleEvaluation) *float64 { v := e.Metrics.ClippingRatio; return &v }},
	{"sample_rate", func(e resultstore.SampleEvaluation) *float64 { v := float64(e.Metrics.SampleRate); return &v }},
	{"bitrate_kbps", func(e resultstore.SampleEvaluation) *float64 { return e.Metrics.BitrateKbps }},
	{"audio_quality_score", func(e resultstore.SampleEvaluation) *float64 { v := e.QualityScore; return &v }},
}

// FeatureCorrelations correlates each audio feature with the WER of the
// given service, ranked by correlation strength. Features without enough
// usable pairs are omitted.
func FeatureCorrelations(evals []resultstore.SampleEvaluation, service string) FeatureReport {
	report := FeatureReport{Service: service}

	for _, fe := range featureExtractors {
		var xs, ys []float64
		for _, e := range evals {
			tr, ok := e.TranscriptionFor(service)
			if !ok {
				continue
			}
			v := fe.extract(e)
			if v == nil {
				continue
			}
			xs = append(xs, *v)
			ys = append(ys, tr.WER)
		}
		r, err := Pearson(xs, ys)
		if err != nil {
			continue
		}
		report.Correlations = append(report.Correlations, Correlation{
			Feature: fe.name,
			R:       r,
			N:       len(xs),
		})
	}

	sort.SliceStable(report.Correlations, func(i, j int) bool {
		return math.Abs(report.Correlations[i].R) > math.Abs(report.Correlations[j].R)
	})
	return report
}

// CategoryStats aggregates quality and accuracy for one microphone
// category. AvgWER is nil when no sample in the category was transcribed
// by the service.
type CategoryStats struct {
	Samples    []int
	AvgQuality float64
	AvgWER     *float64
}

// Categories groups evaluations by microphone category and averages the
// quality score and the given service's WER.
func Categories(evals []resultstore.SampleEvaluation, service string) map[string]CategoryStats {
	out := make(map[string]CategoryStats)
	for _, e := range evals {
		cat := e.Microphone.Category
		if cat == "" {
			cat = "unknown"
		}
		stats := out[cat]
		stats.Samples = append(stats.Samples, e.SampleID)
		out[cat] = stats
	}

	for cat, stats := range out {
		var qualSum, werSum float64
		var werCount int
		for _, e := range evals {
			c := e.Microphone.Category
			if c == "" {
				c = "unknown"
			}
			if c != cat {
				continue
			}
			qualSum += e.QualityScore
			if tr, ok := e.TranscriptionFor(service); ok {
				werSum += tr.WER
				werCount++
			}
		}
		stats.AvgQuality = qualSum / float64(len(stats.Samples))
		if werCount > 0 {
			avg := werSum / float64(werCount)
			stats.AvgWER = &avg
		}
		out[cat] = stats
	}
	return out
}

// CategoryPricing aggregates price and accuracy for one microphone category.
type CategoryPricing struct {
	Category   string   `json:"category"`
	Count      int      `json:"count"`
	AvgPrice   float64  `json:"avg_price_usd"`
	AvgWER     *float64 `json:"avg_wer,omitempty"`
	AvgQuality float64  `json:"avg_quality"`
}

// PriceReport is the price_correlation.json model.
type PriceReport struct {
	Service        string            `json:"service"`
	PriceVsWER     *Correlation      `json:"price_vs_wer,omitempty"`
	PriceVsQuality *Correlation      `json:"price_vs_quality,omitempty"`
	Categories     []CategoryPricing `json:"categories"`
}

// PriceCorrelation relates microphone price to accuracy and quality.
// Samples without a listed price are excluded from the coefficient series.
func PriceCorrelation(evals []resultstore.SampleEvaluation, service string) PriceReport {
	report := PriceReport{Service: service}

	var prices, wers, qualPrices, quals []float64
	for _, e := range evals {
		if e.Microphone.PriceUSD <= 0 {
			continue
		}
		qualPrices = append(qualPrices, e.Microphone.PriceUSD)
		quals = append(quals, e.QualityScore)
		if tr, ok := e.TranscriptionFor(service); ok {
			prices = append(prices, e.Microphone.PriceUSD)
			wers = append(wers, tr.WER)
		}
	}
	if r, err := Pearson(prices, wers); err == nil {
		report.PriceVsWER = &Correlation{Feature: "price_usd", R: r, N: len(prices)}
	}
	if r, err := Pearson(qualPrices, quals); err == nil {
		report.PriceVsQuality = &Correlation{Feature: "price_usd", R: r, N: len(qualPrices)}
	}

	byCategory := make(map[string][]resultstore.SampleEvaluation)
	for _, e := range evals {
		cat := e.Microphone.Category
		if cat == "" {
			cat = "unknown"
		}
		byCategory[cat] = append(byCategory[cat], e)
	}

	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	for _, cat := range categories {
		group := byCategory[cat]
		pricing := CategoryPricing{Category: cat, Count: len(group)}
		var werSum float64
		var werCount int
		for _, e := range group {
			pricing.AvgPrice += e.Microphone.PriceUSD
			pricing.AvgQuality += e.QualityScore
			if tr, ok := e.TranscriptionFor(service); ok {
				werSum += tr.WER
				werCount++
			}
		}
		pricing.AvgPrice /= float64(len(group))
		pricing.AvgQuality /= float64(len(group))
		if werCount > 0 {
			avg := werSum / float64(werCount)
			pricing.AvgWER = &avg
		}
		report.Categories = append(report.Categories, pricing)
	}
	return report
}

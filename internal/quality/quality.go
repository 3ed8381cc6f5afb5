// Package quality derives a composite 0-100 audio quality score from probe
// metrics. The weighting favors the properties that matter for speech
// capture: signal-to-noise ratio and recording level over raw format specs.
package quality

import (
	"math"

	"github.com/micbench-labs/micbench/internal/audioprobe"
)

// Score computes the composite score. Maximum points: sample rate 15, bit
// depth 10, SNR 25, RMS level 20, clipping 15, dynamic range 15.
func Score(m audioprobe.Metrics) float64 {
	score := sampleRateScore(m.SampleRate)
	score += bitDepthScore(m.BitDepth)
	score += snrScore(m.EstimatedSNRDB)
	score += rmsScore(m.RMSLevelDB)
	score += 15 * (1 - m.ClippingRatio)
	score += dynamicRangeScore(m.DynamicRangeDB)
	return math.Min(100, math.Max(0, score))
}

func sampleRateScore(rate int) float64 {
	switch {
	case rate >= 48000:
		return 15
	case rate >= 44100:
		return 12
	case rate >= 22050:
		return 8
	default:
		return 5
	}
}

func bitDepthScore(depth *int) float64 {
	if depth == nil {
		return 6 // unknown, assume decent
	}
	switch {
	case *depth >= 24:
		return 10
	case *depth >= 16:
		return 8
	default:
		return 5
	}
}

func snrScore(snr *float64) float64 {
	if snr == nil {
		return 12 // unknown
	}
	switch {
	case *snr >= 40:
		return 25
	case *snr >= 30:
		return 20
	case *snr >= 20:
		return 15
	case *snr >= 10:
		return 10
	default:
		return 5
	}
}

// rmsScore rewards recording levels near the -18..-12 dBFS speech sweet
// spot, with widening tolerance bands outward.
func rmsScore(rms float64) float64 {
	switch {
	case rms >= -20 && rms <= -10:
		return 20
	case rms >= -25 && rms <= -8:
		return 15
	case rms >= -30 && rms <= -6:
		return 10
	default:
		return 5
	}
}

func dynamicRangeScore(dr float64) float64 {
	switch {
	case dr >= 30 && dr <= 60:
		return 15
	case dr >= 20 && dr <= 70:
		return 12
	case dr >= 15 && dr <= 80:
		return 8
	default:
		return 5
	}
}

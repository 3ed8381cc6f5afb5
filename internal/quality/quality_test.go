package quality

import (
	"testing"

	"github.com/micbench-labs/micbench/internal/audioprobe"
)

func ptrInt(v int) *int          { return &v }
func ptrF64(v float64) *float64 { return &v }

func TestScoreTopTier(t *testing.T) {
	m := audioprobe.Metrics{
		SampleRate:     48000,
		BitDepth:       ptrInt(24),
		EstimatedSNRDB: ptrF64(45),
		RMSLevelDB:     -15,
		ClippingRatio:  0,
		DynamicRangeDB: 45,
	}
	if got := Score(m); got != 100 {
		t.Fatalf("Score = %f, want 100", got)
	}
}

func TestScoreLowTier(t *testing.T) {
	m := audioprobe.Metrics{
		SampleRate:     8000,
		BitDepth:       ptrInt(8),
		EstimatedSNRDB: ptrF64(5),
		RMSLevelDB:     -40,
		ClippingRatio:  1,
		DynamicRangeDB: 5,
	}
	// 5 + 5 + 5 + 5 + 0 + 5
	if got := Score(m); got != 25 {
		t.Fatalf("Score = %f, want 25", got)
	}
}

func TestScoreUnknowns(t *testing.T) {
	m := audioprobe.Metrics{
		SampleRate:     44100,
		BitDepth:       nil,
		EstimatedSNRDB: nil,
		RMSLevelDB:     -15,
		ClippingRatio:  0,
		DynamicRangeDB: 45,
	}
	// 12 + 6 + 12 + 20 + 15 + 15
	if got := Score(m); got != 80 {
		t.Fatalf("Score = %f, want 80", got)
	}
}

func TestClippingPenaltyIsLinear(t *testing.T) {
	base := audioprobe.Metrics{
		SampleRate:     48000,
		BitDepth:       ptrInt(16),
		EstimatedSNRDB: ptrF64(35),
		RMSLevelDB:     -15,
		DynamicRangeDB: 45,
	}
	clean := Score(base)
	base.ClippingRatio = 0.5
	clipped := Score(base)
	if clean-clipped != 7.5 {
		t.Fatalf("expected 7.5 point penalty for 50%% clipping, got %f", clean-clipped)
	}
}

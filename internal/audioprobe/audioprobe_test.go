package audioprobe

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/micbench-labs/micbench/internal/config"
)

const ffprobeJSON = `{
  "streams": [
    {"codec_type": "audio", "codec_name": "pcm_s16le", "sample_rate": "48000",
     "channels": 1, "bits_per_sample": 16}
  ],
  "format": {"duration": "42.500000", "bit_rate": "768000"}
}`

const volumedetectStderr = `[Parsed_volumedetect_0 @ 0x55d] n_samples: 2040000
[Parsed_volumedetect_0 @ 0x55d] mean_volume: -21.4 dB
[Parsed_volumedetect_0 @ 0x55d] max_volume: -3.2 dB
`

const astatsStderr = `[Parsed_ametadata_1 @ 0x55e] lavfi.astats.Overall.RMS_level=-21.000000
lavfi.astats.Overall.RMS_level=-55.000000
lavfi.astats.Overall.RMS_level=-54.000000
lavfi.astats.Overall.RMS_level=-22.000000
lavfi.astats.Overall.RMS_level=-20.000000
lavfi.astats.Overall.RMS_level=-23.000000
lavfi.astats.Overall.RMS_level=-21.500000
lavfi.astats.Overall.RMS_level=-19.000000
lavfi.astats.Overall.RMS_level=-24.000000
lavfi.astats.Overall.RMS_level=-inf
`

func fakeRunner(t *testing.T) Runner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		joined := strings.Join(args, " ")
		switch {
		case name == "ffprobe":
			return []byte(ffprobeJSON), nil, nil
		case strings.Contains(joined, "volumedetect"):
			return nil, []byte(volumedetectStderr), nil
		case strings.Contains(joined, "astats"):
			return nil, []byte(astatsStderr), nil
		default:
			t.Fatalf("unexpected command: %s %s", name, joined)
			return nil, nil, nil
		}
	}
}

func testConfig() config.EvaluationConfig {
	return config.EvaluationConfig{
		Concurrency:        1,
		SilenceThresholdDB: -50,
		ClippingMarginDB:   0.5,
		FFmpegBinary:       "ffmpeg",
		FFprobeBinary:      "ffprobe",
	}
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(testConfig())
	a.WithRunner(fakeRunner(t))

	m, err := a.Analyze(context.Background(), "sample.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.DurationSeconds != 42.5 {
		t.Fatalf("duration = %f, want 42.5", m.DurationSeconds)
	}
	if m.SampleRate != 48000 || m.Channels != 1 {
		t.Fatalf("unexpected stream info: %+v", m)
	}
	if m.BitDepth == nil || *m.BitDepth != 16 {
		t.Fatalf("bit depth = %v, want 16", m.BitDepth)
	}
	if m.BitrateKbps == nil || *m.BitrateKbps != 768 {
		t.Fatalf("bitrate = %v, want 768", m.BitrateKbps)
	}
	if m.Codec != "pcm_s16le" {
		t.Fatalf("codec = %s", m.Codec)
	}
	if m.PeakAmplitudeDB != -3.2 || m.RMSLevelDB != -21.4 {
		t.Fatalf("levels = peak %f rms %f", m.PeakAmplitudeDB, m.RMSLevelDB)
	}

	// Nine finite RMS values sorted; the 10th percentile index is 0 -> -55.
	if m.NoiseFloorDB != -55 {
		t.Fatalf("noise floor = %f, want -55", m.NoiseFloorDB)
	}
	if m.EstimatedSNRDB == nil || math.Abs(*m.EstimatedSNRDB-33.6) > 1e-9 {
		t.Fatalf("snr = %v, want 33.6", m.EstimatedSNRDB)
	}
	if math.Abs(m.DynamicRangeDB-51.8) > 1e-9 {
		t.Fatalf("dynamic range = %f, want 51.8", m.DynamicRangeDB)
	}
}

func TestParseVolumeLine(t *testing.T) {
	v, ok := parseVolumeLine("[x] max_volume: -1.5 dB", "max_volume")
	if !ok || v != -1.5 {
		t.Fatalf("parseVolumeLine = %f, %v", v, ok)
	}
	if _, ok := parseVolumeLine("histogram_0db: 3", "max_volume"); ok {
		t.Fatal("expected no match for unrelated line")
	}
}

func TestNoiseFloorDefaultsWhenEmpty(t *testing.T) {
	a := NewAnalyzer(testConfig())
	a.WithRunner(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
		return nil, []byte("no rms lines here\n"), nil
	})
	if nf := a.noiseFloor(context.Background(), "x.wav"); nf != -60 {
		t.Fatalf("noise floor = %f, want -60", nf)
	}
}

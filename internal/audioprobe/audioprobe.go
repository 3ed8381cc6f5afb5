// Package audioprobe measures audio quality properties of a recording using
// ffprobe and ffmpeg, with sample-exact measurements for WAV inputs.
package audioprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-audio/wav"

	"github.com/micbench-labs/micbench/internal/config"
)

// Metrics holds the audio quality measurements for one recording.
type Metrics struct {
	DurationSeconds float64  `json:"duration_seconds"`
	SampleRate      int      `json:"sample_rate"`
	Channels        int      `json:"channels"`
	BitDepth        *int     `json:"bit_depth"`
	Codec           string   `json:"codec"`
	BitrateKbps     *float64 `json:"bitrate_kbps"`
	PeakAmplitudeDB float64  `json:"peak_amplitude_db"`
	RMSLevelDB      float64  `json:"rms_level_db"`
	NoiseFloorDB    float64  `json:"noise_floor_db"`
	EstimatedSNRDB  *float64 `json:"estimated_snr_db"`
	DynamicRangeDB  float64  `json:"dynamic_range_db"`
	SilenceRatio    float64  `json:"silence_ratio"`
	ClippingRatio   float64  `json:"clipping_ratio"`
}

// Runner executes an external command and returns its stdout and stderr.
// Injectable for tests.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}

// Analyzer probes recordings according to the evaluation config.
type Analyzer struct {
	cfg    config.EvaluationConfig
	runner Runner
}

func NewAnalyzer(cfg config.EvaluationConfig) *Analyzer {
	return &Analyzer{cfg: cfg, runner: defaultRunner}
}

// WithRunner sets a custom command runner (for testing).
func (a *Analyzer) WithRunner(runner Runner) {
	a.runner = runner
}

// Analyze runs all probes against the file and derives the composite metric
// set. Per-probe failures that leave usable defaults are tolerated; a failed
// ffprobe is fatal since nothing downstream is meaningful without it.
func (a *Analyzer) Analyze(ctx context.Context, path string) (Metrics, error) {
	m, err := a.probe(ctx, path)
	if err != nil {
		return Metrics{}, err
	}

	peak, mean, err := a.levels(ctx, path)
	if err != nil {
		return Metrics{}, fmt.Errorf("measure levels: %w", err)
	}
	m.PeakAmplitudeDB = peak
	m.RMSLevelDB = mean

	noiseFloor := a.noiseFloor(ctx, path)
	m.NoiseFloorDB = noiseFloor

	snr := mean - noiseFloor
	m.EstimatedSNRDB = &snr
	m.DynamicRangeDB = math.Abs(peak - noiseFloor)

	// Estimates from aggregate levels; replaced by sample-exact values for
	// WAV inputs below.
	m.SilenceRatio = clamp01((noiseFloor + 60) / 60)
	if peak > -3 {
		m.ClippingRatio = clamp01((peak + 1) / 3)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		if silence, clipping, err := a.pcmRatios(path); err == nil {
			m.SilenceRatio = silence
			m.ClippingRatio = clipping
		}
	}

	return m, nil
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType        string `json:"codec_type"`
		CodecName        string `json:"codec_name"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		BitsPerSample    int    `json:"bits_per_sample"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func (a *Analyzer) probe(ctx context.Context, path string) (Metrics, error) {
	stdout, stderr, err := a.runner(ctx, a.cfg.FFprobeBinary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Metrics{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(stderr)))
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(stdout, &probe); err != nil {
		return Metrics{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	m := Metrics{Codec: "unknown"}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			m.DurationSeconds = d
		}
	}
	if probe.Format.BitRate != "" {
		if br, err := strconv.ParseFloat(probe.Format.BitRate, 64); err == nil {
			kbps := br / 1000
			m.BitrateKbps = &kbps
		}
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		m.Codec = stream.CodecName
		m.Channels = stream.Channels
		if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
			m.SampleRate = sr
		}
		if stream.BitsPerSample > 0 {
			depth := stream.BitsPerSample
			m.BitDepth = &depth
		} else if stream.BitsPerRawSample != "" {
			if depth, err := strconv.Atoi(stream.BitsPerRawSample); err == nil && depth > 0 {
				m.BitDepth = &depth
			}
		}
		break
	}
	return m, nil
}

// levels runs ffmpeg volumedetect and parses peak and mean dB from stderr.
func (a *Analyzer) levels(ctx context.Context, path string) (peak, mean float64, err error) {
	_, stderr, err := a.runner(ctx, a.cfg.FFmpegBinary,
		"-hide_banner",
		"-i", path,
		"-af", "volumedetect",
		"-f", "null", "-",
	)
	if err != nil {
		return 0, 0, fmt.Errorf("ffmpeg volumedetect: %w", err)
	}

	peak, mean = 0, -20
	for _, line := range strings.Split(string(stderr), "\n") {
		if v, ok := parseVolumeLine(line, "max_volume"); ok {
			peak = v
		}
		if v, ok := parseVolumeLine(line, "mean_volume"); ok {
			mean = v
		}
	}
	return peak, mean, nil
}

func parseVolumeLine(line, key string) (float64, bool) {
	if !strings.Contains(line, key) {
		return 0, false
	}
	_, after, found := strings.Cut(line, ":")
	if !found {
		return 0, false
	}
	value := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(after), "dB"))
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// noiseFloor estimates the noise floor as the 10th percentile of per-frame
// RMS levels reported by the astats filter. Falls back to -60 dB when the
// filter yields nothing usable.
func (a *Analyzer) noiseFloor(ctx context.Context, path string) float64 {
	_, stderr, err := a.runner(ctx, a.cfg.FFmpegBinary,
		"-hide_banner",
		"-i", path,
		"-af", "astats=metadata=1:reset=1,ametadata=print:key=lavfi.astats.Overall.RMS_level",
		"-f", "null", "-",
	)
	if err != nil {
		return -60
	}

	var rms []float64
	for _, line := range strings.Split(string(stderr), "\n") {
		if !strings.Contains(line, "RMS_level") {
			continue
		}
		_, after, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
		if err != nil || v <= -100 {
			continue
		}
		rms = append(rms, v)
	}
	if len(rms) == 0 {
		return -60
	}
	sort.Float64s(rms)
	idx := len(rms) / 10
	return rms[idx]
}

// pcmRatios decodes a WAV file and measures the silence and clipping ratios
// directly from samples.
func (a *Analyzer) pcmRatios(path string) (silence, clipping float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return 0, 0, fmt.Errorf("wav contains no samples")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	fullScale := float64(int64(1) << (bitDepth - 1))
	silenceAmp := fullScale * math.Pow(10, a.cfg.SilenceThresholdDB/20)
	clipAmp := fullScale * math.Pow(10, -a.cfg.ClippingMarginDB/20)

	var silent, clipped int
	for _, s := range buf.Data {
		amp := math.Abs(float64(s))
		if amp < silenceAmp {
			silent++
		}
		if amp >= clipAmp {
			clipped++
		}
	}
	n := float64(len(buf.Data))
	return float64(silent) / n, float64(clipped) / n, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

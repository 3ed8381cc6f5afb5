// Package spectrogram renders per-sample spectrogram PNGs with ffmpeg and
// binds them into a single landscape PDF collection.
package spectrogram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/metadata"
)

// Runner executes an external command, capturing both output streams.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func defaultRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var outBuf, errBuf bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Generator renders spectrograms for a metadata set.
type Generator struct {
	cfg    config.SpectrogramConfig
	ffmpeg string
	runner Runner
	log    *slog.Logger
}

func New(cfg config.SpectrogramConfig, ffmpegBinary string, log *slog.Logger) *Generator {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	return &Generator{
		cfg:    cfg,
		ffmpeg: ffmpegBinary,
		runner: defaultRunner,
		log:    log.With(slog.String("component", "spectrogram")),
	}
}

// WithRunner swaps the command runner, for tests.
func (g *Generator) WithRunner(runner Runner) {
	g.runner = runner
}

// PNGName returns the canonical spectrogram filename for a sample.
func PNGName(s metadata.Sample) string {
	return fmt.Sprintf("spectrogram_%02d_%s.png", s.ID, slug(s.Microphone.Label()))
}

func slug(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// Render produces one spectrogram PNG with legend and axes.
func (g *Generator) Render(ctx context.Context, audioPath, pngPath string) error {
	filter := fmt.Sprintf("showspectrumpic=s=%dx%d:legend=1", g.cfg.Width, g.cfg.Height)
	args := []string{
		"-hide_banner",
		"-y",
		"-i", audioPath,
		"-lavfi", filter,
		"-frames:v", "1",
		pngPath,
	}
	if _, stderr, err := g.runner(ctx, g.ffmpeg, args...); err != nil {
		return fmt.Errorf("ffmpeg spectrogram for %s: %w: %s", audioPath, err, lastLine(stderr))
	}
	return nil
}

// RenderAll renders spectrograms for every sample in the set into outDir,
// skipping PNGs that are newer than their audio. Missing audio files are
// skipped with a warning.
func (g *Generator) RenderAll(ctx context.Context, set metadata.Set, samplesDir, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create spectrograms dir: %w", err)
	}

	for _, sample := range set.Samples {
		audioPath := filepath.Join(samplesDir, filepath.Base(sample.Filename))
		audioStat, err := os.Stat(audioPath)
		if err != nil {
			g.log.Warn("skipping missing audio file",
				slog.Int("sample_id", sample.ID),
				slog.String("path", audioPath))
			continue
		}

		pngPath := filepath.Join(outDir, PNGName(sample))
		if pngStat, err := os.Stat(pngPath); err == nil && pngStat.ModTime().After(audioStat.ModTime()) {
			g.log.Debug("spectrogram up to date", slog.Int("sample_id", sample.ID))
			continue
		}

		if err := g.Render(ctx, audioPath, pngPath); err != nil {
			return err
		}
		g.log.Info("rendered spectrogram",
			slog.Int("sample_id", sample.ID),
			slog.String("path", pngPath))
	}
	return nil
}

func lastLine(data []byte) string {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

package spectrogram

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/metadata"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSet() metadata.Set {
	return metadata.Set{Samples: []metadata.Sample{
		{
			ID:       1,
			Filename: "samples/01_rode.wav",
			Microphone: metadata.Microphone{
				Manufacturer: "Rode", Model: "NT-USB", Category: "usb_desktop",
			},
			DistanceCM: 30,
		},
	}}
}

func TestPNGName(t *testing.T) {
	got := PNGName(testSet().Samples[0])
	if got != "spectrogram_01_rode_nt_usb.png" {
		t.Fatalf("unexpected name: %s", got)
	}
}

func TestRenderArgs(t *testing.T) {
	g := New(config.SpectrogramConfig{Width: 1200, Height: 600}, "ffmpeg", newLogger())

	var gotName string
	var gotArgs []string
	g.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		gotName = name
		gotArgs = args
		return nil, nil, nil
	})

	if err := g.Render(context.Background(), "in.wav", "out.png"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("unexpected binary: %s", gotName)
	}
	joined := strings.Join(gotArgs, " ")
	if !strings.Contains(joined, "showspectrumpic=s=1200x600:legend=1") {
		t.Fatalf("missing spectrum filter in args: %s", joined)
	}
	if gotArgs[len(gotArgs)-1] != "out.png" {
		t.Fatalf("output path not last arg: %v", gotArgs)
	}
}

func TestRenderAllSkipsFresh(t *testing.T) {
	tmp := t.TempDir()
	samplesDir := filepath.Join(tmp, "samples")
	outDir := filepath.Join(tmp, "spectrograms")
	if err := os.MkdirAll(samplesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	set := testSet()

	audioPath := filepath.Join(samplesDir, "01_rode.wav")
	if err := os.WriteFile(audioPath, []byte("riff"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := New(config.SpectrogramConfig{Width: 1200, Height: 600}, "ffmpeg", newLogger())
	calls := 0
	g.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		calls++
		return nil, nil, os.WriteFile(args[len(args)-1], []byte("png"), 0o644)
	})

	if err := g.RenderAll(context.Background(), set, samplesDir, outDir); err != nil {
		t.Fatalf("render all: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 render, got %d", calls)
	}

	// PNG is newer than the audio, so a second pass renders nothing.
	pngPath := filepath.Join(outDir, PNGName(set.Samples[0]))
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(pngPath, future, future); err != nil {
		t.Fatal(err)
	}
	if err := g.RenderAll(context.Background(), set, samplesDir, outDir); err != nil {
		t.Fatalf("render all: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected fresh spectrogram to be skipped, got %d calls", calls)
	}
}

func TestRenderAllSkipsMissingAudio(t *testing.T) {
	tmp := t.TempDir()
	g := New(config.SpectrogramConfig{Width: 1200, Height: 600}, "ffmpeg", newLogger())
	calls := 0
	g.WithRunner(func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		calls++
		return nil, nil, nil
	})

	err := g.RenderAll(context.Background(), testSet(), filepath.Join(tmp, "nope"), filepath.Join(tmp, "out"))
	if err != nil {
		t.Fatalf("missing audio should not fail the pass: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no renders, got %d", calls)
	}
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		img.Set(x, 5, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestCollectPDF(t *testing.T) {
	tmp := t.TempDir()
	set := testSet()

	writeTestPNG(t, filepath.Join(tmp, PNGName(set.Samples[0])))
	writeTestPNG(t, filepath.Join(tmp, "correlation_analysis.png"))

	outPath := filepath.Join(tmp, "spectrograms_collection.pdf")
	if err := CollectPDF(set, tmp, outPath); err != nil {
		t.Fatalf("collect pdf: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if len(data) == 0 || !strings.HasPrefix(string(data), "%PDF") {
		t.Fatalf("output is not a PDF (%d bytes)", len(data))
	}
}

func TestCollectPDFEmpty(t *testing.T) {
	tmp := t.TempDir()
	if err := CollectPDF(testSet(), tmp, filepath.Join(tmp, "out.pdf")); err == nil {
		t.Fatal("expected error when no spectrograms exist")
	}
}

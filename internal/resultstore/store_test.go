package resultstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/micbench-labs/micbench/internal/audioprobe"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/metadata"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openStore(t *testing.T, cfg config.StoreConfig) *Store {
	t.Helper()
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleEval(id int, wer float64) SampleEvaluation {
	return SampleEvaluation{
		SampleID: id,
		Filename: "samples/test.wav",
		Microphone: metadata.Microphone{
			Manufacturer: "Rode", Model: "NT-USB", Category: "usb_desktop", PriceUSD: 169,
		},
		Metrics:      audioprobe.Metrics{SampleRate: 48000, RMSLevelDB: -18},
		QualityScore: 85,
		Transcriptions: []Transcription{
			{Service: "local_whisper_large_v3_turbo", Text: "the quick brown fox", WER: wer, CER: wer / 2, ElapsedMS: 900, RunDate: "2026-08-29"},
		},
	}
}

func TestSaveAndList(t *testing.T) {
	tmp := t.TempDir()
	s := openStore(t, config.StoreConfig{Path: filepath.Join(tmp, "results.db")})

	ctx := context.Background()
	if err := s.BeginRun(ctx, "run-1", 120, "initial"); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := s.SaveEvaluation(ctx, "run-1", sampleEval(1, 0.05)); err != nil {
		t.Fatalf("save evaluation: %v", err)
	}

	evals, err := s.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list evaluations: %v", err)
	}
	if len(evals) != 1 {
		t.Fatalf("expected 1 evaluation, got %d", len(evals))
	}
	e := evals[0]
	if e.Microphone.Label() != "Rode NT-USB" {
		t.Fatalf("unexpected microphone: %+v", e.Microphone)
	}
	if e.Metrics.SampleRate != 48000 {
		t.Fatalf("metrics not round-tripped: %+v", e.Metrics)
	}
	tr, ok := e.TranscriptionFor("local_whisper_large_v3_turbo")
	if !ok || tr.WER != 0.05 {
		t.Fatalf("unexpected transcription: %+v", e.Transcriptions)
	}
}

func TestMergeReplacesSample(t *testing.T) {
	tmp := t.TempDir()
	s := openStore(t, config.StoreConfig{Path: filepath.Join(tmp, "results.db")})
	ctx := context.Background()

	if err := s.SaveEvaluation(ctx, "run-1", sampleEval(1, 0.30)); err != nil {
		t.Fatalf("save evaluation: %v", err)
	}
	if err := s.SaveEvaluation(ctx, "run-1", sampleEval(2, 0.10)); err != nil {
		t.Fatalf("save evaluation: %v", err)
	}
	// Re-evaluate sample 1 only.
	if err := s.SaveEvaluation(ctx, "run-2", sampleEval(1, 0.08)); err != nil {
		t.Fatalf("save evaluation: %v", err)
	}

	evals, err := s.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list evaluations: %v", err)
	}
	if len(evals) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(evals))
	}
	tr, _ := evals[0].TranscriptionFor("local_whisper_large_v3_turbo")
	if tr.WER != 0.08 {
		t.Fatalf("expected merged WER 0.08, got %f", tr.WER)
	}
	tr2, _ := evals[1].TranscriptionFor("local_whisper_large_v3_turbo")
	if tr2.WER != 0.10 {
		t.Fatalf("expected sample 2 untouched, got %f", tr2.WER)
	}
}

func TestClearEvaluations(t *testing.T) {
	tmp := t.TempDir()
	s := openStore(t, config.StoreConfig{Path: filepath.Join(tmp, "results.db")})
	ctx := context.Background()

	if err := s.SaveEvaluation(ctx, "run-1", sampleEval(1, 0.10)); err != nil {
		t.Fatalf("save evaluation: %v", err)
	}
	if err := s.ClearEvaluations(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	evals, err := s.ListEvaluations(ctx)
	if err != nil {
		t.Fatalf("list evaluations: %v", err)
	}
	if len(evals) != 0 {
		t.Fatalf("expected empty store, got %d evaluations", len(evals))
	}
}

func TestPruneRuns(t *testing.T) {
	tmp := t.TempDir()
	s := openStore(t, config.StoreConfig{Path: filepath.Join(tmp, "results.db"), RetentionRuns: 1})
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginRun(ctx, "run-old", 120, ""); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	s.clock = func() time.Time { return time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginRun(ctx, "run-new", 120, ""); err != nil {
		t.Fatalf("begin run: %v", err)
	}
	if err := s.PruneRuns(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 run after prune, got %d", count)
	}
}

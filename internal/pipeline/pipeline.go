// Package pipeline orchestrates a benchmark run: probe each sample's audio,
// score it, fan transcription requests out over the bus, measure accuracy
// against the reference text, and persist the evaluations.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/micbench-labs/micbench/internal/audioprobe"
	"github.com/micbench-labs/micbench/internal/bus"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/metadata"
	"github.com/micbench-labs/micbench/internal/protocol"
	"github.com/micbench-labs/micbench/internal/quality"
	"github.com/micbench-labs/micbench/internal/resultstore"
	"github.com/micbench-labs/micbench/internal/textmetrics"
)

// Options selects what a run evaluates.
type Options struct {
	// SampleIDs restricts the run to a subset; empty means every sample.
	SampleIDs []int
	// Notes is free-form run bookkeeping stored with the run row.
	Notes string
}

// Result summarizes a finished run.
type Result struct {
	RunID          string
	Evaluated      int
	Skipped        int
	ReferenceWords int
	Services       []string
	Set            metadata.Set
}

type Pipeline struct {
	cfg      config.Config
	bus      *bus.Client
	store    *resultstore.Store
	analyzer *audioprobe.Analyzer
	logger   *slog.Logger

	samplesEvaluated      metric.Int64Counter
	transcriptionFailures metric.Int64Counter
	transcriptionLatency  metric.Float64Histogram
}

func New(cfg config.Config, busClient *bus.Client, store *resultstore.Store, logger *slog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		bus:      busClient,
		store:    store,
		analyzer: audioprobe.NewAnalyzer(cfg.Evaluation),
		logger:   logger.With(slog.String("component", "pipeline")),
	}
	if err := p.initMetrics(); err != nil {
		p.logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return p
}

func (p *Pipeline) initMetrics() error {
	meter := otel.Meter("github.com/micbench-labs/micbench/pipeline")
	var err error
	p.samplesEvaluated, err = meter.Int64Counter("micbench.samples.evaluated",
		metric.WithDescription("Samples evaluated"))
	if err != nil {
		return err
	}
	p.transcriptionFailures, err = meter.Int64Counter("micbench.transcriptions.failures",
		metric.WithDescription("Transcription requests that returned an error"))
	if err != nil {
		return err
	}
	p.transcriptionLatency, err = meter.Float64Histogram("micbench.transcriptions.latency",
		metric.WithDescription("Transcription round-trip latency"),
		metric.WithUnit("s"))
	return err
}

// WithProbeRunner swaps the audio probe command runner, for tests.
func (p *Pipeline) WithProbeRunner(runner audioprobe.Runner) {
	p.analyzer.WithRunner(runner)
}

// Run evaluates the selected samples and stores their results. Per-sample
// failures are logged and skipped; only setup problems abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	set, err := metadata.Load(p.cfg.Paths.MetadataFile)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	reference, refWords, err := p.loadReference()
	if err != nil {
		return nil, err
	}

	samples := set.Samples
	if len(opts.SampleIDs) > 0 {
		samples, err = set.Filter(opts.SampleIDs)
		if err != nil {
			return nil, err
		}
	}

	services := make([]string, 0, len(p.cfg.EnabledTranscribers()))
	for _, tc := range p.cfg.EnabledTranscribers() {
		services = append(services, tc.Name)
	}

	runID := uuid.NewString()
	if err := p.store.BeginRun(ctx, runID, refWords, opts.Notes); err != nil {
		return nil, fmt.Errorf("begin run: %w", err)
	}
	p.logger.Info("run started",
		slog.String("run_id", runID),
		slog.Int("samples", len(samples)),
		slog.Any("services", services))

	concurrency := p.cfg.Evaluation.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan metadata.Sample)
	var mu sync.Mutex
	var evaluated, skipped int
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sample := range jobs {
				ok := p.evaluateSample(ctx, runID, sample, reference, services)
				mu.Lock()
				if ok {
					evaluated++
				} else {
					skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, sample := range samples {
		select {
		case jobs <- sample:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	p.logger.Info("run finished",
		slog.String("run_id", runID),
		slog.Int("evaluated", evaluated),
		slog.Int("skipped", skipped))

	return &Result{
		RunID:          runID,
		Evaluated:      evaluated,
		Skipped:        skipped,
		ReferenceWords: refWords,
		Services:       services,
		Set:            set,
	}, nil
}

// loadReference reads and normalizes the reference passage. A blank
// reference is a setup error.
func (p *Pipeline) loadReference() (string, int, error) {
	data, err := os.ReadFile(p.cfg.Reference.TextFile)
	if err != nil {
		return "", 0, fmt.Errorf("read reference text: %w", err)
	}
	reference := string(data)
	normalized := textmetrics.Normalize(reference)
	if normalized == "" {
		return "", 0, fmt.Errorf("reference text %s is empty after normalization", p.cfg.Reference.TextFile)
	}
	return reference, len(strings.Fields(normalized)), nil
}

func (p *Pipeline) evaluateSample(ctx context.Context, runID string, sample metadata.Sample, reference string, services []string) bool {
	log := p.logger.With(slog.Int("sample_id", sample.ID))

	audioPath := filepath.Join(p.cfg.Paths.SamplesDir, filepath.Base(sample.Filename))
	if _, err := os.Stat(audioPath); err != nil {
		log.Warn("skipping missing sample file", slog.String("path", audioPath))
		return false
	}

	metrics, err := p.analyzer.Analyze(ctx, audioPath)
	if err != nil {
		log.Warn("audio analysis failed", slog.String("error", err.Error()))
		return false
	}
	score := quality.Score(metrics)

	eval := resultstore.SampleEvaluation{
		SampleID:     sample.ID,
		Filename:     sample.Filename,
		Microphone:   sample.Microphone,
		DistanceCM:   sample.DistanceCM,
		Environment:  sample.Environment,
		Metrics:      metrics,
		QualityScore: score,
	}

	runDate := time.Now().UTC().Format("2006-01-02")
	for _, svc := range services {
		reply, err := p.requestTranscription(ctx, runID, sample, audioPath, svc)
		if err != nil {
			p.countFailure(ctx, svc)
			log.Warn("transcription failed",
				slog.String("service", svc),
				slog.String("error", err.Error()))
			continue
		}

		wer, err := textmetrics.WordErrorRate(reference, reply.Text)
		if err != nil {
			log.Warn("WER computation failed", slog.String("service", svc), slog.String("error", err.Error()))
			continue
		}
		cer, err := textmetrics.CharErrorRate(reference, reply.Text)
		if err != nil {
			log.Warn("CER computation failed", slog.String("service", svc), slog.String("error", err.Error()))
			continue
		}

		eval.Transcriptions = append(eval.Transcriptions, resultstore.Transcription{
			Service:   svc,
			Text:      reply.Text,
			WER:       wer,
			CER:       cer,
			ElapsedMS: reply.ElapsedMS,
			RunDate:   runDate,
		})
		log.Info("transcribed",
			slog.String("service", svc),
			slog.Float64("wer", wer),
			slog.Float64("cer", cer))
	}

	if err := p.store.SaveEvaluation(ctx, runID, eval); err != nil {
		log.Error("failed to save evaluation", slog.String("error", err.Error()))
		return false
	}
	if p.samplesEvaluated != nil {
		p.samplesEvaluated.Add(ctx, 1)
	}
	log.Info("sample evaluated",
		slog.String("microphone", sample.Microphone.Label()),
		slog.Float64("quality", score),
		slog.Int("transcriptions", len(eval.Transcriptions)))
	return true
}

func (p *Pipeline) requestTranscription(ctx context.Context, runID string, sample metadata.Sample, audioPath, service string) (*protocol.TranscribeReply, error) {
	timeout := 120 * time.Second
	for _, tc := range p.cfg.Transcribers {
		if tc.Name == service && tc.TimeoutS > 0 {
			timeout = time.Duration(tc.TimeoutS) * time.Second
		}
	}

	req := protocol.TranscribeRequest{
		RunID:    runID,
		SampleID: sample.ID,
		// Workers on other hosts need the absolute path or a shared mount.
		AudioPath: audioPath,
		Service:   service,
		Language:  p.cfg.Reference.Language,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	msg, err := p.bus.Conn().RequestWithContext(reqCtx, protocol.TranscribeSubject(service), data)
	elapsed := time.Since(start)
	if p.transcriptionLatency != nil {
		p.transcriptionLatency.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("service", service)))
	}
	if err != nil {
		return nil, fmt.Errorf("request transcription: %w", err)
	}

	var reply protocol.TranscribeReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Err != "" {
		return nil, fmt.Errorf("worker error: %s", reply.Err)
	}
	return &reply, nil
}

func (p *Pipeline) countFailure(ctx context.Context, service string) {
	if p.transcriptionFailures != nil {
		p.transcriptionFailures.Add(ctx, 1,
			metric.WithAttributes(attribute.String("service", service)))
	}
}

// Package worker serves transcription requests over the bus. Each enabled
// backend gets a queue subscription, so several worker processes can share
// one benchmark's load.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/micbench-labs/micbench/internal/bus"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/protocol"
	"github.com/micbench-labs/micbench/internal/transcribe"
)

type Service struct {
	bus    *bus.Client
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription
	wg     sync.WaitGroup
	ready  bool

	backends map[string]backend
}

type backend struct {
	transcriber transcribe.Transcriber
	timeout     time.Duration
}

// New builds a worker serving every enabled transcriber in cfg. Backends
// that fail to construct (for example a missing API key) are skipped with a
// warning so one absent credential does not block the rest of the benchmark.
func New(parent context.Context, cfg config.Config, busClient *bus.Client, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		bus:      busClient,
		logger:   logger.With(slog.String("component", "worker")),
		ctx:      ctx,
		cancel:   cancel,
		backends: make(map[string]backend),
	}
	for _, tc := range cfg.EnabledTranscribers() {
		t, err := transcribe.New(tc, cfg.Reference.Language)
		if err != nil {
			s.logger.Warn("skipping transcriber", slog.String("service", tc.Name), slog.String("error", err.Error()))
			continue
		}
		s.backends[tc.Name] = backend{transcriber: t, timeout: transcribe.Timeout(tc)}
	}
	return s
}

// Services lists the backend names this worker answers for.
func (s *Service) Services() []string {
	names := make([]string, 0, len(s.backends))
	for name := range s.backends {
		names = append(names, name)
	}
	return names
}

func (s *Service) Start() error {
	if len(s.backends) == 0 {
		return fmt.Errorf("no usable transcription backends")
	}
	for name := range s.backends {
		subject := protocol.TranscribeSubject(name)
		sub, err := s.bus.Conn().QueueSubscribe(subject, protocol.TranscribeQueue, s.handleRequest)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("serving transcription requests", slog.String("service", name))
	}
	s.ready = true
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.ready
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TranscribeRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode transcribe request", slog.String("error", err.Error()))
		return
	}

	be, ok := s.backends[req.Service]
	if !ok {
		s.respond(msg, protocol.TranscribeReply{
			SampleID: req.SampleID,
			Service:  req.Service,
			Err:      fmt.Sprintf("unknown service %q", req.Service),
		})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, be.timeout)
		defer cancel()

		s.publishProgress(req, "transcribing")
		result, err := be.transcriber.Transcribe(ctx, req.AudioPath)

		reply := protocol.TranscribeReply{
			SampleID: req.SampleID,
			Service:  req.Service,
		}
		if err != nil {
			s.logger.Warn("transcription failed",
				slog.String("service", req.Service),
				slog.Int("sample_id", req.SampleID),
				slog.String("error", err.Error()))
			reply.Err = err.Error()
		} else {
			reply.Text = result.Text
			reply.ElapsedMS = result.Elapsed.Milliseconds()
		}
		s.respond(msg, reply)
	}()
}

func (s *Service) respond(msg *nats.Msg, reply protocol.TranscribeReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal reply", slog.String("error", err.Error()))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond", slog.String("error", err.Error()))
	}
}

func (s *Service) publishProgress(req protocol.TranscribeRequest, stage string) {
	evt := protocol.Progress{
		RunID:     req.RunID,
		SampleID:  req.SampleID,
		Stage:     stage,
		Message:   req.Service,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectProgress, data); err != nil {
		s.logger.Warn("failed to publish progress", slog.String("error", err.Error()))
	}
}

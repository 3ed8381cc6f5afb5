// Package runtime wires the shared process infrastructure for benchmark
// commands: telemetry, the message bus (embedded server when configured),
// the result store, the local transcription worker, and an optional HTTP
// endpoint for health and metrics during long runs.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/micbench-labs/micbench/internal/bus"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/natsserver"
	"github.com/micbench-labs/micbench/internal/resultstore"
	"github.com/micbench-labs/micbench/internal/worker"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer     *http.Server
	telemetryClose func(context.Context) error
	embedded       *natsserver.EmbeddedServer
	busClient      *bus.Client
	store          *resultstore.Store
	worker         *worker.Service

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the infrastructure up. On error it tears down whatever
// already started.
func (r *Runtime) Start(ctx context.Context) error {
	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		r.teardown(ctx)
		return fmt.Errorf("start embedded bus: %w", err)
	}
	r.embedded = embedded

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		r.teardown(ctx)
		return fmt.Errorf("connect bus: %w", err)
	}
	r.busClient = busClient

	store, err := resultstore.Open(ctx, r.cfg.Store, r.logger)
	if err != nil {
		r.teardown(ctx)
		return fmt.Errorf("open result store: %w", err)
	}
	r.store = store

	r.worker = worker.New(ctx, r.cfg, busClient, r.logger)
	if err := r.worker.Start(); err != nil {
		r.teardown(ctx)
		return fmt.Errorf("start worker: %w", err)
	}

	if r.cfg.HTTP.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", r.handleHealth)
		mux.HandleFunc("/readyz", r.handleReady)
		if metricHandler != nil {
			mux.Handle("/metrics", metricHandler)
		}

		addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
		r.httpServer = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("http server failed", slog.String("error", err.Error()))
			}
		}()
		r.logger.Info("http endpoint listening", slog.String("addr", addr))
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.Bool("embedded_bus", r.cfg.Bus.Embedded),
		slog.Any("services", r.worker.Services()))
	return nil
}

// Bus returns the connected bus client.
func (r *Runtime) Bus() *bus.Client {
	return r.busClient
}

// Store returns the result store.
func (r *Runtime) Store() *resultstore.Store {
	return r.store
}

// Shutdown stops everything in reverse start order.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.teardown(shutdownCtx)
	return nil
}

func (r *Runtime) teardown(ctx context.Context) {
	if r.worker != nil {
		r.worker.Close()
		r.worker = nil
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("store close error", slog.String("error", err.Error()))
		}
		r.store = nil
	}
	if r.busClient != nil {
		r.busClient.Close()
		r.busClient = nil
	}
	if r.embedded != nil {
		r.embedded.Shutdown()
		r.embedded = nil
	}
	if r.telemetryClose != nil {
		if err := r.telemetryClose(ctx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
		r.telemetryClose = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

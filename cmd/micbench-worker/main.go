// micbench-worker serves transcription requests from a remote benchmark
// run. It connects to an external NATS server and answers the subjects of
// every transcriber enabled in its configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/micbench-labs/micbench/internal/bus"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/worker"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	// A standalone worker always joins an existing bus.
	cfg.Bus.Embedded = false

	busClient, err := bus.Connect(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to connect to bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(ctx, cfg, busClient, logger)
	if err := w.Start(); err != nil {
		logger.Error("failed to start worker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("worker ready", slog.Any("services", w.Services()))

	<-ctx.Done()
	logger.Info("worker stopping")
	w.Close()
	logger.Info("shutdown complete")
}

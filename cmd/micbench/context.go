package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/micbench-labs/micbench/internal/config"
)

// commandContext lazily loads configuration and the logger so that commands
// share one setup path.
type commandContext struct {
	configFlag *string

	cfg    *config.Config
	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensure loads .env, the config file, and builds the logger on first use.
func (c *commandContext) ensure() (config.Config, *slog.Logger, error) {
	if c.cfg != nil {
		return *c.cfg, c.logger, nil
	}

	// Optional; API keys usually live here.
	_ = godotenv.Load()

	// An empty path yields defaults plus env overrides.
	cfg, err := config.Load(*c.configFlag)
	if err != nil {
		return config.Config{}, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Telemetry.LogLevel),
	}))

	c.cfg = &cfg
	c.logger = logger
	return cfg, logger, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseSampleIDs parses a comma-separated id list like "1,3,14".
func parseSampleIDs(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid sample id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

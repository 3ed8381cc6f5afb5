// Package transcribe provides the speech-to-text backends benchmarked
// against each other: a local Whisper HTTP server, the OpenAI transcription
// API, an arbitrary external command, and a mock for tests.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/micbench-labs/micbench/internal/config"
)

// Result captures transcription output and how long the service took.
type Result struct {
	Text    string
	Elapsed time.Duration
}

// Transcriber abstracts a speech-to-text backend.
type Transcriber interface {
	// Name identifies the service in reports and on the bus.
	Name() string
	// Transcribe converts the audio file at path to text.
	Transcribe(ctx context.Context, path string) (Result, error)
}

// New builds a transcriber from config.
func New(cfg config.TranscriberConfig, language string) (Transcriber, error) {
	switch cfg.Mode {
	case "mock":
		return NewMock(cfg.Name), nil
	case "http":
		return NewHTTP(cfg, language), nil
	case "openai":
		return NewOpenAI(cfg, language)
	case "exec":
		return NewExec(cfg, language)
	default:
		return nil, fmt.Errorf("unknown transcriber mode %q", cfg.Mode)
	}
}

// Timeout returns the configured per-request timeout with a safe default.
func Timeout(cfg config.TranscriberConfig) time.Duration {
	if cfg.TimeoutS > 0 {
		return time.Duration(cfg.TimeoutS) * time.Second
	}
	return 120 * time.Second
}

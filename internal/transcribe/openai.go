package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/micbench-labs/micbench/internal/config"
)

const defaultAPIKeyEnv = "OPENAI_API_KEY"

// openaiTranscriber calls the OpenAI audio transcription endpoint.
type openaiTranscriber struct {
	cfg      config.TranscriberConfig
	language string
	apiKey   string
	client   *http.Client
}

// NewOpenAI builds the OpenAI backend. The API key is read from the
// environment at construction time so a missing key fails the whole run
// setup, not each sample.
func NewOpenAI(cfg config.TranscriberConfig, language string) (Transcriber, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = defaultAPIKeyEnv
	}
	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s is not set", cfg.Name, keyEnv)
	}
	return &openaiTranscriber{
		cfg:      cfg,
		language: language,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: Timeout(cfg)},
	}, nil
}

func (t *openaiTranscriber) Name() string { return t.cfg.Name }

func (t *openaiTranscriber) Transcribe(ctx context.Context, path string) (Result, error) {
	model := t.cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	body, contentType, err := multipartAudio(path, map[string]string{
		"model":    model,
		"language": t.language,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	start := time.Now()
	resp, err := t.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("%s: status %s: %s", t.cfg.Name, resp.Status, bytes.TrimSpace(payload))
	}

	var parsed whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("%s: decode response: %w", t.cfg.Name, err)
	}
	return Result{Text: parsed.Text, Elapsed: elapsed}, nil
}

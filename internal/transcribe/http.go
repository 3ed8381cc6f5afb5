package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/micbench-labs/micbench/internal/config"
)

// httpTranscriber posts audio to a local Whisper server (multipart upload,
// JSON {"text": ...} response).
type httpTranscriber struct {
	cfg      config.TranscriberConfig
	language string
	client   *http.Client
}

func NewHTTP(cfg config.TranscriberConfig, language string) Transcriber {
	return &httpTranscriber{
		cfg:      cfg,
		language: language,
		client:   &http.Client{Timeout: Timeout(cfg)},
	}
}

func (t *httpTranscriber) Name() string { return t.cfg.Name }

type whisperResponse struct {
	Text string `json:"text"`
}

func (t *httpTranscriber) Transcribe(ctx context.Context, path string) (Result, error) {
	body, contentType, err := multipartAudio(path, map[string]string{
		"language":    t.language,
		"punctuation": "true",
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", t.cfg.Name, err)
	}
	req.Header.Set("Content-Type", contentType)

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

// multipartAudio builds a multipart body with the audio file under the
// "file" field plus any extra form fields.
func multipartAudio(path string, fields map[string]string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/micbench-labs/micbench/internal/config"
)

// execTranscriber shells out to an external recognizer. The command gets the
// audio path via --audio and must print {"text": ...} JSON on stdout.
type execTranscriber struct {
	cfg      config.TranscriberConfig
	language string
	cmd      []string
}

type execResult struct {
	Text string `json:"text"`
}

func NewExec(cfg config.TranscriberConfig, language string) (Transcriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("%s: parse command: %w", cfg.Name, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: command is empty", cfg.Name)
	}
	return &execTranscriber{cfg: cfg, language: language, cmd: args}, nil
}

func (t *execTranscriber) Name() string { return t.cfg.Name }

func (t *execTranscriber) Transcribe(ctx context.Context, path string) (Result, error) {
	args := append([]string{}, t.cmd[1:]...)
	args = append(args, "--audio", path)
	if t.cfg.Model != "" {
		args = append(args, "--model", t.cfg.Model)
	}
	if t.language != "" {
		args = append(args, "--language", t.language)
	}

	command := exec.CommandContext(ctx, t.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("%s: command failed: %w: %s", t.cfg.Name, err, bytes.TrimSpace(stderr.Bytes()))
	}
	elapsed := time.Since(start)

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("%s: decode output: %w", t.cfg.Name, err)
	}
	return Result{Text: resp.Text, Elapsed: elapsed}, nil
}

package transcribe

import (
	"context"
	"fmt"
	"path/filepath"
)

type mockTranscriber struct {
	name string
}

// NewMock returns a transcriber that emits a deterministic placeholder text.
func NewMock(name string) Transcriber {
	return &mockTranscriber{name: name}
}

func (m *mockTranscriber) Name() string { return m.name }

func (m *mockTranscriber) Transcribe(_ context.Context, path string) (Result, error) {
	return Result{
		Text: fmt.Sprintf("[mock transcript of %s]", filepath.Base(path)),
	}, nil
}

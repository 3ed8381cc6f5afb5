package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/micbench-labs/micbench/internal/bus"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/protocol"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startBus(t *testing.T) *bus.Client {
	t.Helper()
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server did not start")
	}
	t.Cleanup(ns.Shutdown)

	client, err := bus.Connect(config.BusConfig{
		Servers:        []string{ns.ClientURL()},
		ConnectTimeout: 2000,
	}, newLogger())
	if err != nil {
		t.Fatalf("connect bus: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func mockConfig() config.Config {
	cfg := config.Default()
	cfg.Transcribers = []config.TranscriberConfig{
		{Name: "mock_service", Mode: "mock", Enabled: true, TimeoutS: 5},
	}
	return cfg
}

func request(t *testing.T, client *bus.Client, req protocol.TranscribeRequest) protocol.TranscribeReply {
	t.Helper()
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := client.Conn().Request(protocol.TranscribeSubject("mock_service"), data, 5*time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var reply protocol.TranscribeReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func TestServeTranscription(t *testing.T) {
	client := startBus(t)
	s := New(context.Background(), mockConfig(), client, newLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)

	reply := request(t, client, protocol.TranscribeRequest{
		RunID:     "run-1",
		SampleID:  3,
		Service:   "mock_service",
		AudioPath: "/tmp/sample.wav",
	})
	if reply.Err != "" {
		t.Fatalf("unexpected error: %s", reply.Err)
	}
	if reply.SampleID != 3 || reply.Service != "mock_service" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !strings.Contains(reply.Text, "sample.wav") {
		t.Fatalf("unexpected transcript: %q", reply.Text)
	}
}

func TestUnknownServiceReturnsError(t *testing.T) {
	client := startBus(t)
	s := New(context.Background(), mockConfig(), client, newLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)

	reply := request(t, client, protocol.TranscribeRequest{
		SampleID: 1,
		Service:  "nonexistent",
	})
	if reply.Err == "" {
		t.Fatal("expected error for unknown service")
	}
}

func TestStartWithoutBackends(t *testing.T) {
	client := startBus(t)
	cfg := mockConfig()
	cfg.Transcribers = nil
	s := New(context.Background(), cfg, client, newLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected error with no usable backends")
	}
}

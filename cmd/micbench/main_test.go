package main

import (
	"reflect"
	"testing"

	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/resultstore"
)

func TestParseSampleIDs(t *testing.T) {
	ids, err := parseSampleIDs(" 1, 3 ,14 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{1, 3, 14}) {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if ids, err := parseSampleIDs(""); err != nil || ids != nil {
		t.Fatalf("empty input should yield nil, got %v, %v", ids, err)
	}
	if _, err := parseSampleIDs("1,two"); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestServicesFrom(t *testing.T) {
	cfg := config.Config{Transcribers: []config.TranscriberConfig{
		{Name: "local_whisper_large_v3_turbo", Enabled: true},
		{Name: "disabled_service", Enabled: false},
	}}
	evals := []resultstore.SampleEvaluation{
		{Transcriptions: []resultstore.Transcription{
			{Service: "local_whisper_large_v3_turbo"},
			{Service: "legacy_service"},
		}},
	}

	got := servicesFrom(cfg, evals)
	want := []string{"local_whisper_large_v3_turbo", "legacy_service"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("servicesFrom = %v, want %v", got, want)
	}
}

func TestPrimaryService(t *testing.T) {
	evals := []resultstore.SampleEvaluation{
		{Transcriptions: []resultstore.Transcription{{Service: "b"}}},
	}
	if got := primaryService([]string{"a", "b"}, evals); got != "b" {
		t.Fatalf("primaryService = %q, want b", got)
	}
	if got := primaryService([]string{"a"}, nil); got != "" {
		t.Fatalf("expected empty primary, got %q", got)
	}
}

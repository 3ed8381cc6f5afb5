package metadata

import (
	"os"
	"path/filepath"
	"testing"
)

func validSet() Set {
	return Set{Samples: []Sample{
		{ID: 1, Filename: "samples/01_rode.wav", DistanceCM: 20, Microphone: Microphone{Manufacturer: "Rode", Model: "NT-USB", Category: "usb_desktop", PriceUSD: 169}},
		{ID: 2, Filename: "samples/02_airpods.m4a", Environment: "home office", Microphone: Microphone{Manufacturer: "Apple", Model: "AirPods Pro", Category: "bluetooth", PriceUSD: 249}},
	}}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metadata.json")
	content := []byte(`{
  "samples": [
    {"id": 1, "filename": "samples/01.wav", "distance_cm": 20,
     "microphone": {"manufacturer": "Rode", "model": "NT-USB", "category": "usb_desktop", "price_usd": 169}}
  ]
}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	set, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(set.Samples))
	}
	if set.Samples[0].Microphone.Label() != "Rode NT-USB" {
		t.Fatalf("unexpected label: %s", set.Samples[0].Microphone.Label())
	}
}

func TestValidateDuplicateID(t *testing.T) {
	set := validSet()
	set.Samples[1].ID = 1
	if err := set.Validate(); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestValidateUnknownCategory(t *testing.T) {
	set := validSet()
	set.Samples[0].Microphone.Category = "shotgun"
	if err := set.Validate(); err == nil {
		t.Fatal("expected unknown category error")
	}
}

func TestFilter(t *testing.T) {
	set := validSet()

	all, err := set.Filter(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected all samples, got %d", len(all))
	}

	subset, err := set.Filter([]int{2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subset) != 1 || subset[0].ID != 2 {
		t.Fatalf("expected sample 2, got %+v", subset)
	}

	if _, err := set.Filter([]int{2, 99}); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestVariantAndTitle(t *testing.T) {
	set := validSet()
	if v := set.Samples[0].Variant(); v != "20cm" {
		t.Fatalf("unexpected variant: %q", v)
	}
	if v := set.Samples[1].Variant(); v != "home office" {
		t.Fatalf("unexpected variant: %q", v)
	}
	want := "Sample 1: Rode NT-USB / 20cm"
	if got := set.Samples[0].Title(); got != want {
		t.Fatalf("unexpected title: %q", got)
	}
}

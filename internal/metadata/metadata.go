// Package metadata models the benchmark sample inventory: one entry per
// recording, each tied to the microphone that produced it.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Microphone holds the point-in-time facts about a device under test.
type Microphone struct {
	Manufacturer string  `json:"manufacturer"`
	Model        string  `json:"model"`
	Category     string  `json:"category"`
	Type         string  `json:"type,omitempty"`
	Connection   string  `json:"connection,omitempty"`
	PriceUSD     float64 `json:"price_usd,omitempty"`
}

// Sample describes a single recording of the reference text.
type Sample struct {
	ID          int        `json:"id"`
	Filename    string     `json:"filename"`
	DistanceCM  int        `json:"distance_cm,omitempty"`
	Environment string     `json:"environment,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Microphone  Microphone `json:"microphone"`
}

// Set is the parsed contents of metadata.json.
type Set struct {
	Samples []Sample `json:"samples"`
}

// KnownCategories lists the microphone categories used in reports. A sample
// with an unlisted category fails validation rather than silently forming a
// new reporting bucket.
var KnownCategories = []string{
	"headset",
	"lavalier",
	"usb_desktop",
	"xlr_studio",
	"laptop_builtin",
	"smartphone",
	"bluetooth",
	"conference",
}

// Load reads and validates a metadata file.
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read metadata: %w", err)
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("parse metadata: %w", err)
	}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

// Validate checks inventory invariants: unique positive IDs, filenames
// present, known categories, non-negative prices.
func (s Set) Validate() error {
	if len(s.Samples) == 0 {
		return fmt.Errorf("metadata contains no samples")
	}
	known := make(map[string]bool, len(KnownCategories))
	for _, c := range KnownCategories {
		known[c] = true
	}
	seen := make(map[int]bool, len(s.Samples))
	for _, sample := range s.Samples {
		if sample.ID <= 0 {
			return fmt.Errorf("sample %q: id must be positive", sample.Filename)
		}
		if seen[sample.ID] {
			return fmt.Errorf("duplicate sample id %d", sample.ID)
		}
		seen[sample.ID] = true
		if strings.TrimSpace(sample.Filename) == "" {
			return fmt.Errorf("sample %d: filename must not be empty", sample.ID)
		}
		if sample.Microphone.Manufacturer == "" || sample.Microphone.Model == "" {
			return fmt.Errorf("sample %d: microphone manufacturer and model are required", sample.ID)
		}
		if sample.Microphone.Category != "" && !known[sample.Microphone.Category] {
			return fmt.Errorf("sample %d: unknown microphone category %q", sample.ID, sample.Microphone.Category)
		}
		if sample.Microphone.PriceUSD < 0 {
			return fmt.Errorf("sample %d: price_usd must not be negative", sample.ID)
		}
	}
	return nil
}

// ByID returns the sample with the given id.
func (s Set) ByID(id int) (Sample, bool) {
	for _, sample := range s.Samples {
		if sample.ID == id {
			return sample, true
		}
	}
	return Sample{}, false
}

// Filter returns the samples whose IDs appear in ids, preserving inventory
// order. Unknown IDs are reported so a typo does not silently shrink a run.
func (s Set) Filter(ids []int) ([]Sample, error) {
	if len(ids) == 0 {
		return s.Samples, nil
	}
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Sample
	for _, sample := range s.Samples {
		if want[sample.ID] {
			out = append(out, sample)
			delete(want, sample.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]int, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		sort.Ints(missing)
		return nil, fmt.Errorf("unknown sample ids: %v", missing)
	}
	return out, nil
}

// Label returns the display name for the sample's microphone.
func (m Microphone) Label() string {
	return strings.TrimSpace(m.Manufacturer + " " + m.Model)
}

// Variant returns the short descriptor distinguishing recordings of the same
// microphone (distance, environment). Used for spectrogram titles.
func (s Sample) Variant() string {
	var parts []string
	if s.DistanceCM > 0 {
		parts = append(parts, fmt.Sprintf("%dcm", s.DistanceCM))
	}
	if s.Environment != "" {
		parts = append(parts, s.Environment)
	}
	if s.Notes != "" {
		parts = append(parts, s.Notes)
	}
	return strings.Join(parts, " / ")
}

// Title returns the full page title for a sample's spectrogram.
func (s Sample) Title() string {
	label := s.Microphone.Label()
	if v := s.Variant(); v != "" {
		return fmt.Sprintf("Sample %d: %s / %s", s.ID, label, v)
	}
	return fmt.Sprintf("Sample %d: %s", s.ID, label)
}

package protocol

import "time"

// TranscribeRequest asks a worker to transcribe one sample with one service.
type TranscribeRequest struct {
	RunID     string `json:"run_id"`
	SampleID  int    `json:"sample_id"`
	AudioPath string `json:"audio_path"`
	Service   string `json:"service"`
	Language  string `json:"language,omitempty"`
}

// TranscribeReply carries a worker's transcription result back to the
// pipeline. Err is set instead of Text when the backend failed.
type TranscribeReply struct {
	SampleID  int    `json:"sample_id"`
	Service   string `json:"service"`
	Text      string `json:"text,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Progress is broadcast as a run advances, for live observers.
type Progress struct {
	RunID     string    `json:"run_id"`
	SampleID  int       `json:"sample_id,omitempty"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// SubjectTranscribePrefix is completed with the service name; workers
	// queue-subscribe per service so multiple workers share the load.
	SubjectTranscribePrefix = "micbench.transcribe"
	SubjectProgress         = "micbench.progress"

	// TranscribeQueue is the queue group shared by workers of one service.
	TranscribeQueue = "micbench-workers"
)

// TranscribeSubject returns the request subject for a service.
func TranscribeSubject(service string) string {
	return SubjectTranscribePrefix + "." + service
}

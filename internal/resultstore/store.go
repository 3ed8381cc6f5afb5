// Package resultstore persists benchmark evaluations in SQLite. One row per
// sample holds the latest evaluation; re-running a subset of samples merges
// by replacing just those rows.
package resultstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/micbench-labs/micbench/internal/audioprobe"
	"github.com/micbench-labs/micbench/internal/config"
	"github.com/micbench-labs/micbench/internal/metadata"
)

// Transcription is one service's result for one sample.
type Transcription struct {
	Service   string  `json:"service"`
	Text      string  `json:"text"`
	WER       float64 `json:"wer"`
	CER       float64 `json:"cer"`
	ElapsedMS int64   `json:"processing_time_ms,omitempty"`
	RunDate   string  `json:"run_date,omitempty"`
}

// SampleEvaluation is the complete evaluation of one recording.
type SampleEvaluation struct {
	SampleID       int                 `json:"sample_id"`
	Filename       string              `json:"filename"`
	Microphone     metadata.Microphone `json:"microphone"`
	DistanceCM     int                 `json:"distance_cm,omitempty"`
	Environment    string              `json:"environment,omitempty"`
	Metrics        audioprobe.Metrics  `json:"audio_metrics"`
	QualityScore   float64             `json:"audio_quality_score"`
	Transcriptions []Transcription     `json:"transcriptions"`
}

// Transcription lookup by service name.
func (e SampleEvaluation) TranscriptionFor(service string) (Transcription, bool) {
	for _, t := range e.Transcriptions {
		if t.Service == service {
			return t, true
		}
	}
	return Transcription{}, false
}

// Store wraps the SQLite-backed results database.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store, creating the schema on first use.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("result store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.PruneRuns(ctx); err != nil {
		log.Warn("result store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    reference_words INTEGER NOT NULL,
    notes TEXT
);
CREATE TABLE IF NOT EXISTS evaluations (
    sample_id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    distance_cm INTEGER,
    environment TEXT,
    microphone BLOB NOT NULL,
    metrics BLOB NOT NULL,
    quality REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS transcriptions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    sample_id INTEGER NOT NULL,
    service TEXT NOT NULL,
    text TEXT NOT NULL,
    wer REAL NOT NULL,
    cer REAL NOT NULL,
    elapsed_ms INTEGER,
    run_date TEXT,
    UNIQUE(sample_id, service),
    FOREIGN KEY(sample_id) REFERENCES evaluations(sample_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_sample ON transcriptions(sample_id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records run bookkeeping.
func (s *Store) BeginRun(ctx context.Context, runID string, referenceWords int, notes string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(run_id, created_at, reference_words, notes) VALUES(?, ?, ?, ?)`,
		runID, s.clock().UTC().Format(time.RFC3339Nano), referenceWords, notes)
	return err
}

// SaveEvaluation upserts one sample's evaluation and replaces its
// transcriptions in a single transaction.
func (s *Store) SaveEvaluation(ctx context.Context, runID string, eval SampleEvaluation) error {
	micJSON, err := json.Marshal(eval.Microphone)
	if err != nil {
		return fmt.Errorf("marshal microphone: %w", err)
	}
	metricsJSON, err := json.Marshal(eval.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluations(sample_id, run_id, filename, distance_cm, environment, microphone, metrics, quality, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(sample_id) DO UPDATE SET
		   run_id=excluded.run_id, filename=excluded.filename,
		   distance_cm=excluded.distance_cm, environment=excluded.environment,
		   microphone=excluded.microphone, metrics=excluded.metrics,
		   quality=excluded.quality, updated_at=excluded.updated_at`,
		eval.SampleID, runID, eval.Filename, eval.DistanceCM, eval.Environment,
		micJSON, metricsJSON, eval.QualityScore, s.clock().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM transcriptions WHERE sample_id = ?`, eval.SampleID); err != nil {
		return fmt.Errorf("clear transcriptions: %w", err)
	}
	for _, t := range eval.Transcriptions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transcriptions(sample_id, service, text, wer, cer, elapsed_ms, run_date)
			 VALUES(?, ?, ?, ?, ?, ?, ?)`,
			eval.SampleID, t.Service, t.Text, t.WER, t.CER, t.ElapsedMS, t.RunDate)
		if err != nil {
			return fmt.Errorf("insert transcription: %w", err)
		}
	}

	return tx.Commit()
}

// ListEvaluations returns the latest evaluation of every sample, ordered by
// sample id.
func (s *Store) ListEvaluations(ctx context.Context) ([]SampleEvaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, filename, distance_cm, environment, microphone, metrics, quality
		 FROM evaluations ORDER BY sample_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evals []SampleEvaluation
	for rows.Next() {
		var e SampleEvaluation
		var micJSON, metricsJSON []byte
		if err := rows.Scan(&e.SampleID, &e.Filename, &e.DistanceCM, &e.Environment, &micJSON, &metricsJSON, &e.QualityScore); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(micJSON, &e.Microphone); err != nil {
			return nil, fmt.Errorf("unmarshal microphone for sample %d: %w", e.SampleID, err)
		}
		if err := json.Unmarshal(metricsJSON, &e.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics for sample %d: %w", e.SampleID, err)
		}
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range evals {
		transcriptions, err := s.listTranscriptions(ctx, evals[i].SampleID)
		if err != nil {
			return nil, err
		}
		evals[i].Transcriptions = transcriptions
	}
	return evals, nil
}

func (s *Store) listTranscriptions(ctx context.Context, sampleID int) ([]Transcription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service, text, wer, cer, elapsed_ms, run_date
		 FROM transcriptions WHERE sample_id = ? ORDER BY service ASC`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transcription
	for rows.Next() {
		var t Transcription
		var elapsed sql.NullInt64
		var runDate sql.NullString
		if err := rows.Scan(&t.Service, &t.Text, &t.WER, &t.CER, &elapsed, &runDate); err != nil {
			return nil, err
		}
		if elapsed.Valid {
			t.ElapsedMS = elapsed.Int64
		}
		if runDate.Valid {
			t.RunDate = runDate.String
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ClearEvaluations removes every stored evaluation; transcriptions go with
// them via the cascade. Used when a run starts from scratch instead of
// merging.
func (s *Store) ClearEvaluations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM evaluations`)
	return err
}

// PruneRuns keeps bookkeeping for the most recent runs only. Evaluations are
// untouched; they always reflect the latest result per sample.
func (s *Store) PruneRuns(ctx context.Context) error {
	if s.cfg.RetentionRuns <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id IN (
		SELECT run_id FROM runs ORDER BY created_at DESC LIMIT -1 OFFSET ?
	)`, s.cfg.RetentionRuns)
	return err
}

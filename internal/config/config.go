package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type PathsConfig struct {
	SamplesDir      string `yaml:"samples_dir"`
	MetadataFile    string `yaml:"metadata_file"`
	OutputDir       string `yaml:"output_dir"`
	SpectrogramsDir string `yaml:"spectrograms_dir"`
}

type ReferenceConfig struct {
	TextFile string `yaml:"text_file"`
	Language string `yaml:"language"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionRuns int    `yaml:"retention_runs"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// TranscriberConfig describes one speech-to-text backend participating in
// the benchmark. Mode selects the implementation: mock, http (local Whisper
// server), openai, or exec (external command).
type TranscriberConfig struct {
	Name      string `yaml:"name"`
	Mode      string `yaml:"mode"`
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Command   string `yaml:"command"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutS  int    `yaml:"timeout_s"`
}

type EvaluationConfig struct {
	Concurrency        int     `yaml:"concurrency"`
	SilenceThresholdDB float64 `yaml:"silence_threshold_db"`
	ClippingMarginDB   float64 `yaml:"clipping_margin_db"`
	FFmpegBinary       string  `yaml:"ffmpeg_binary"`
	FFprobeBinary      string  `yaml:"ffprobe_binary"`
}

type SpectrogramConfig struct {
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	CollectionPDF string `yaml:"collection_pdf"`
}

type Config struct {
	ProjectName  string              `yaml:"project_name"`
	Environment  string              `yaml:"environment"`
	Paths        PathsConfig         `yaml:"paths"`
	Reference    ReferenceConfig     `yaml:"reference"`
	Store        StoreConfig         `yaml:"store"`
	Bus          BusConfig           `yaml:"bus"`
	HTTP         HTTPConfig          `yaml:"http"`
	Telemetry    TelemetryConfig     `yaml:"telemetry"`
	Transcribers []TranscriberConfig `yaml:"transcribers"`
	Evaluation   EvaluationConfig    `yaml:"evaluation"`
	Spectrogram  SpectrogramConfig   `yaml:"spectrogram"`
}

func Default() Config {
	return Config{
		ProjectName: "micbench",
		Environment: "development",
		Paths: PathsConfig{
			SamplesDir:      "./samples",
			MetadataFile:    "./metadata.json",
			OutputDir:       "./results",
			SpectrogramsDir: "./spectrograms",
		},
		Reference: ReferenceConfig{
			TextFile: "./text/coffee.txt",
			Language: "en",
		},
		Store: StoreConfig{
			Path:          "./data/micbench.db",
			RetentionRuns: 50,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		HTTP: HTTPConfig{
			Enabled: false,
			Bind:    "0.0.0.0",
			Port:    8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Transcribers: []TranscriberConfig{
			{
				Name:     "local_whisper_large_v3_turbo",
				Mode:     "http",
				Enabled:  true,
				Endpoint: "http://localhost:9000/transcribe",
				TimeoutS: 300,
			},
			{
				Name:      "openai_whisper_1",
				Mode:      "openai",
				Enabled:   true,
				Endpoint:  "https://api.openai.com/v1/audio/transcriptions",
				Model:     "whisper-1",
				APIKeyEnv: "OPENAI_API_KEY",
				TimeoutS:  120,
			},
		},
		Evaluation: EvaluationConfig{
			Concurrency:        2,
			SilenceThresholdDB: -50,
			ClippingMarginDB:   0.5,
			FFmpegBinary:       "ffmpeg",
			FFprobeBinary:      "ffprobe",
		},
		Spectrogram: SpectrogramConfig{
			Width:         1600,
			Height:        800,
			CollectionPDF: "spectrograms_collection.pdf",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ProjectName, "MICBENCH_PROJECT_NAME")
	overrideString(&cfg.Environment, "MICBENCH_ENVIRONMENT")
	overrideString(&cfg.Paths.SamplesDir, "MICBENCH_SAMPLES_DIR")
	overrideString(&cfg.Paths.MetadataFile, "MICBENCH_METADATA_FILE")
	overrideString(&cfg.Paths.OutputDir, "MICBENCH_OUTPUT_DIR")
	overrideString(&cfg.Paths.SpectrogramsDir, "MICBENCH_SPECTROGRAMS_DIR")
	overrideString(&cfg.Reference.TextFile, "MICBENCH_REFERENCE_TEXT_FILE")
	overrideString(&cfg.Reference.Language, "MICBENCH_REFERENCE_LANGUAGE")
	overrideString(&cfg.Store.Path, "MICBENCH_STORE_PATH")
	overrideInt(&cfg.Store.RetentionRuns, "MICBENCH_STORE_RETENTION_RUNS")
	overrideBool(&cfg.Store.VacuumOnStart, "MICBENCH_STORE_VACUUM_ON_START")
	overrideBool(&cfg.Bus.Embedded, "MICBENCH_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MICBENCH_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MICBENCH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MICBENCH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MICBENCH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MICBENCH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MICBENCH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MICBENCH_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.HTTP.Enabled, "MICBENCH_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "MICBENCH_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MICBENCH_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MICBENCH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MICBENCH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MICBENCH_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MICBENCH_TELEMETRY_PROMETHEUS_BIND")
	overrideInt(&cfg.Evaluation.Concurrency, "MICBENCH_EVALUATION_CONCURRENCY")
	overrideFloat(&cfg.Evaluation.SilenceThresholdDB, "MICBENCH_EVALUATION_SILENCE_THRESHOLD_DB")
	overrideFloat(&cfg.Evaluation.ClippingMarginDB, "MICBENCH_EVALUATION_CLIPPING_MARGIN_DB")
	overrideString(&cfg.Evaluation.FFmpegBinary, "MICBENCH_FFMPEG_BINARY")
	overrideString(&cfg.Evaluation.FFprobeBinary, "MICBENCH_FFPROBE_BINARY")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// EnabledTranscribers returns the transcriber entries that should run.
func (c Config) EnabledTranscribers() []TranscriberConfig {
	var enabled []TranscriberConfig
	for _, t := range c.Transcribers {
		if t.Enabled {
			enabled = append(enabled, t)
		}
	}
	return enabled
}

func validate(cfg Config) error {
	if cfg.ProjectName == "" {
		return errors.New("project_name must not be empty")
	}
	if cfg.Paths.SamplesDir == "" {
		return errors.New("paths.samples_dir must not be empty")
	}
	if cfg.Paths.MetadataFile == "" {
		return errors.New("paths.metadata_file must not be empty")
	}
	if cfg.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must not be empty")
	}
	if cfg.Reference.TextFile == "" {
		return errors.New("reference.text_file must not be empty")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionRuns < 0 {
		return errors.New("store.retention_runs must be >= 0")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.HTTP.Enabled {
		if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
			return errors.New("http.port must be between 1 and 65535")
		}
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Evaluation.Concurrency <= 0 {
		return errors.New("evaluation.concurrency must be >= 1")
	}
	if cfg.Evaluation.FFmpegBinary == "" || cfg.Evaluation.FFprobeBinary == "" {
		return errors.New("evaluation.ffmpeg_binary and evaluation.ffprobe_binary must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Transcribers))
	for _, t := range cfg.Transcribers {
		if t.Name == "" {
			return errors.New("transcribers[].name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate transcriber name %q", t.Name)
		}
		seen[t.Name] = true
		switch t.Mode {
		case "mock", "http", "openai", "exec":
		default:
			return fmt.Errorf("transcriber %q: mode must be one of mock|http|openai|exec", t.Name)
		}
		if !t.Enabled {
			continue
		}
		if (t.Mode == "http" || t.Mode == "openai") && t.Endpoint == "" {
			return fmt.Errorf("transcriber %q: endpoint must be set when mode=%s", t.Name, t.Mode)
		}
		if t.Mode == "exec" && t.Command == "" {
			return fmt.Errorf("transcriber %q: command must be set when mode=exec", t.Name)
		}
		if t.TimeoutS < 0 {
			return fmt.Errorf("transcriber %q: timeout_s must be >= 0", t.Name)
		}
	}
	if cfg.Spectrogram.Width <= 0 || cfg.Spectrogram.Height <= 0 {
		return errors.New("spectrogram.width and spectrogram.height must be positive")
	}
	return nil
}

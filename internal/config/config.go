package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
	"github.com/bpwhelan/ASB-Auto-Subs/pkg/log"
)

// Config holds all application configuration
// Includes the Groq transcription backend, pipeline limits, directories and
// the thin shell around the pipeline (HTTP API, asbplayer, watchers).
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// Groq Configuration:
// - GROQ_API_KEY: API key for the Groq API (required)
// - GROQ_BASE_URL: OpenAI-compatible endpoint (default: https://api.groq.com/openai/v1)
//
// Transcription Configuration:
// - ASB_MODEL: Whisper model (default: whisper-large-v3-turbo)
// - ASB_LANGUAGE: fixed ISO language code (default: ja)
// - ASB_AUTO_DETECT: let the backend detect the language (default: false)
// - ASB_GRANULARITY: segment, word or segment,word (default: word)
// - ASB_PROMPT: optional transcription prompt
// - ASB_TEMPERATURE: sampling temperature (default: 0.0)
// - ASB_REQUEST_TIMEOUT: per-request timeout in seconds (default: 300)
//
// Pipeline Configuration:
// - ASB_MAX_UPLOAD_MB: per-request payload cap (default: 25)
// - ASB_CHUNK_MB: chunk size for hard splitting (default: 25)
//
// Directory Configuration:
// - ASB_DATA_DIR: state directory (default: /app/data)
// - ASB_WATCH_DIR: audio folder scanned on a schedule (optional)
// - ASB_OUTPUT_DIR: where SRT files go; empty keeps them beside the input
//
// Shell Configuration:
// - ASB_HTTP_ADDR: API listen address (default: 127.0.0.1:8765)
// - ASB_UI_DIR / ASB_UI_ENABLED: static UI serving
// - ASB_PLAYER_URL: asbplayer endpoint base (default: http://127.0.0.1:8766)
// - ASB_DELIVER: push finished subtitles to asbplayer (default: true)
// - ASB_WEBSOCKET_SERVER_CMD: external websocket server command (optional)
// - ASB_CLIPBOARD_WATCH: poll the clipboard for YouTube links (default: false)
// - ASB_SCAN_SCHEDULE: cron expression for folder scans (default: @every 5m)
// - ASB_LOG_LEVEL: debug, info, warn, error (default: info)

type Config struct {
	// Groq backend configuration
	Groq GroqConfig `json:"groq"`

	// Transcription request configuration
	Transcribe TranscribeConfig `json:"transcribe"`

	// Pipeline size limits
	Pipeline PipelineConfig `json:"pipeline"`

	// HTTP API configuration
	HTTP HTTPConfig `json:"http"`

	// asbplayer delivery configuration
	Player PlayerConfig `json:"player"`

	// Ingestion configuration (folder scans, clipboard)
	Watch WatchConfig `json:"watch"`

	// System configuration
	System SystemConfig `json:"system"`
}

// GroqConfig holds the transcription backend endpoint and credentials.
type GroqConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// TranscribeConfig holds the per-request transcription defaults. The mutable
// subset can be overridden at runtime through RuntimeSettings.
type TranscribeConfig struct {
	Model          string  `json:"model"`
	Language       string  `json:"language"`
	AutoDetect     bool    `json:"auto_detect"`
	Granularity    string  `json:"granularity"`
	Prompt         string  `json:"prompt"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// PipelineConfig holds the size gate and chunker limits in megabytes.
type PipelineConfig struct {
	MaxUploadMB int `json:"max_upload_mb"`
	ChunkMB     int `json:"chunk_mb"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Addr        string `json:"addr"`
	UIStaticDir string `json:"ui_static_dir"`
	UIEnabled   bool   `json:"ui_enabled"`
}

// PlayerConfig holds the asbplayer delivery configuration.
type PlayerConfig struct {
	URL                string `json:"url"`
	Deliver            bool   `json:"deliver"`
	WebsocketServerCmd string `json:"websocket_server_cmd"`
}

// WatchConfig holds the ingestion configuration.
type WatchConfig struct {
	Dir            string `json:"dir"`
	ScanSchedule   string `json:"scan_schedule"`
	ClipboardWatch bool   `json:"clipboard_watch"`
}

// SystemConfig holds the system configuration.
type SystemConfig struct {
	DataDir   string `json:"data_dir"`
	OutputDir string `json:"output_dir"`
	LogLevel  string `json:"log_level"`
}

// DBPath returns the sqlite database location inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.System.DataDir, "asbsubs.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.System.DataDir, "asbsubs.lock")
}

// MaxUploadBytes converts the configured megabyte cap to bytes.
func (c PipelineConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// ChunkBytes converts the configured chunk size to bytes.
func (c PipelineConfig) ChunkBytes() int64 {
	return int64(c.ChunkMB) * 1024 * 1024
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		Groq: GroqConfig{
			APIKey:  getEnvString("GROQ_API_KEY", ""),
			BaseURL: getEnvString("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		},
		Transcribe: TranscribeConfig{
			Model:          getEnvString("ASB_MODEL", "whisper-large-v3-turbo"),
			Language:       getEnvString("ASB_LANGUAGE", "ja"),
			AutoDetect:     getEnvBool("ASB_AUTO_DETECT", false),
			Granularity:    getEnvString("ASB_GRANULARITY", "word"),
			Prompt:         getEnvString("ASB_PROMPT", ""),
			Temperature:    getEnvFloat("ASB_TEMPERATURE", 0.0),
			TimeoutSeconds: getEnvInt("ASB_REQUEST_TIMEOUT", 300),
		},
		Pipeline: PipelineConfig{
			MaxUploadMB: getEnvInt("ASB_MAX_UPLOAD_MB", 25),
			ChunkMB:     getEnvInt("ASB_CHUNK_MB", 25),
		},
		HTTP: HTTPConfig{
			Addr:        getEnvString("ASB_HTTP_ADDR", "127.0.0.1:8765"),
			UIStaticDir: getEnvString("ASB_UI_DIR", "/app/web"),
			UIEnabled:   getEnvBool("ASB_UI_ENABLED", true),
		},
		Player: PlayerConfig{
			URL:                getEnvString("ASB_PLAYER_URL", "http://127.0.0.1:8766"),
			Deliver:            getEnvBool("ASB_DELIVER", true),
			WebsocketServerCmd: getEnvString("ASB_WEBSOCKET_SERVER_CMD", ""),
		},
		Watch: WatchConfig{
			Dir:            getEnvString("ASB_WATCH_DIR", ""),
			ScanSchedule:   getEnvString("ASB_SCAN_SCHEDULE", "@every 5m"),
			ClipboardWatch: getEnvBool("ASB_CLIPBOARD_WATCH", false),
		},
		System: SystemConfig{
			DataDir:   getEnvString("ASB_DATA_DIR", "/app/data"),
			OutputDir: getEnvString("ASB_OUTPUT_DIR", ""),
			LogLevel:  getEnvString("ASB_LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("config loaded: data_dir=%s watch_dir=%q http_addr=%s model=%s",
		config.System.DataDir, config.Watch.Dir, config.HTTP.Addr, config.Transcribe.Model)

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Groq.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	if c.Pipeline.MaxUploadMB <= 0 {
		return fmt.Errorf("ASB_MAX_UPLOAD_MB must be positive, got %d", c.Pipeline.MaxUploadMB)
	}
	if c.Pipeline.ChunkMB <= 0 {
		return fmt.Errorf("ASB_CHUNK_MB must be positive, got %d", c.Pipeline.ChunkMB)
	}
	if c.Transcribe.TimeoutSeconds <= 0 {
		return fmt.Errorf("ASB_REQUEST_TIMEOUT must be positive, got %d", c.Transcribe.TimeoutSeconds)
	}
	if _, err := transcribe.ParseGranularities(c.Transcribe.Granularity); err != nil {
		return fmt.Errorf("ASB_GRANULARITY: %w", err)
	}
	if !c.Transcribe.AutoDetect {
		if err := transcribe.ValidateLanguage(c.Transcribe.Language); err != nil {
			return fmt.Errorf("ASB_LANGUAGE: %w", err)
		}
	}
	if _, err := cron.ParseStandard(c.Watch.ScanSchedule); err != nil {
		return fmt.Errorf("ASB_SCAN_SCHEDULE: invalid cron expression: %w", err)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

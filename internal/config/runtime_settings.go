package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/transcribe"
)

const runtimeSettingsFileName = "settings.json"

// RuntimeSettings is the mutable subset of the configuration: everything a
// user may change through the API without restarting the daemon.
type RuntimeSettings struct {
	Language     string `json:"language"`
	AutoDetect   bool   `json:"auto_detect"`
	Granularity  string `json:"granularity"`
	Model        string `json:"model"`
	Prompt       string `json:"prompt"`
	Deliver      bool   `json:"deliver"`
	ScanSchedule string `json:"scan_schedule"`
}

// RuntimeSettingsFilePath resolves the settings file location, defaulting to
// settings.json inside the data dir.
func RuntimeSettingsFilePath(dataDir string) string {
	return getEnvString("ASB_SETTINGS_FILE", filepath.Join(dataDir, runtimeSettingsFileName))
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if _, err := transcribe.ParseGranularities(s.Granularity); err != nil {
		return fmt.Errorf("invalid granularity: %w", err)
	}
	if !s.AutoDetect {
		if strings.TrimSpace(s.Language) == "" {
			return fmt.Errorf("language is required unless auto_detect is set")
		}
		if err := transcribe.ValidateLanguage(s.Language); err != nil {
			return err
		}
	}
	if strings.TrimSpace(s.ScanSchedule) == "" {
		return fmt.Errorf("scan_schedule is required")
	}
	if _, err := cron.ParseStandard(s.ScanSchedule); err != nil {
		return fmt.Errorf("invalid scan_schedule: %w", err)
	}
	return nil
}

// RuntimeSettings snapshots the mutable subset of the loaded configuration,
// used to seed the settings file on first start.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		Language:     c.Transcribe.Language,
		AutoDetect:   c.Transcribe.AutoDetect,
		Granularity:  c.Transcribe.Granularity,
		Model:        c.Transcribe.Model,
		Prompt:       c.Transcribe.Prompt,
		Deliver:      c.Player.Deliver,
		ScanSchedule: c.Watch.ScanSchedule,
	}
}

// WithRuntimeSettings applies persisted settings over the env-derived config.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if strings.TrimSpace(settings.Language) != "" {
			c.Transcribe.Language = settings.Language
		}
		if strings.TrimSpace(settings.Granularity) != "" {
			c.Transcribe.Granularity = settings.Granularity
		}
		if strings.TrimSpace(settings.Model) != "" {
			c.Transcribe.Model = settings.Model
		}
		if strings.TrimSpace(settings.ScanSchedule) != "" {
			c.Watch.ScanSchedule = settings.ScanSchedule
		}
		c.Transcribe.Prompt = settings.Prompt
		c.Transcribe.AutoDetect = settings.AutoDetect
		c.Player.Deliver = settings.Deliver
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RuntimeSettingsStore keeps the current settings in memory and mirrors every
// update to the settings file.
type RuntimeSettingsStore struct {
	path string

	mu      sync.RWMutex
	current RuntimeSettings
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    path,
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
		return RuntimeSettings{}, err
	}

	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	return next, nil
}

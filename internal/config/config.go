// Package config provides the configuration schema, loader, and file watcher
// for the Maya companion client.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Maya process.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the corresponding slog level. Unknown or empty values
// map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration is a time.Duration that unmarshals from YAML strings such as
// "500ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for Maya.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Persona PersonaConfig `yaml:"persona"`
	Camera  CameraConfig  `yaml:"camera"`
}

// ServerConfig holds network and logging settings for the local status and
// metrics endpoint.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP endpoint listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// JournalPath is the file session records are appended to, one JSON line
	// per finished session. Empty disables the journal.
	JournalPath string `yaml:"journal_path"`
}

// GeminiConfig holds the Gemini Live connection settings.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. When empty, the
	// GEMINI_API_KEY environment variable is used instead; see
	// [GeminiConfig.ResolveAPIKey].
	APIKey string `yaml:"api_key"`

	// Model overrides the default live model identifier.
	Model string `yaml:"model"`

	// BaseURL overrides the websocket endpoint. Leave empty for production.
	BaseURL string `yaml:"base_url"`

	// Voice selects the prebuilt voice identity (e.g., "Kore", "Puck").
	Voice string `yaml:"voice"`

	// TranscribeOutput requests text transcription of spoken responses.
	TranscribeOutput bool `yaml:"transcribe_output"`
}

// PersonaConfig describes the companion's identity.
type PersonaConfig struct {
	// Name is the companion's display name, used in logs and the status page.
	Name string `yaml:"name"`

	// Instructions is the free-text persona description sent as the system
	// instruction on every session.
	Instructions string `yaml:"instructions"`
}

// CameraConfig holds the still-frame camera settings for the snapshot uplink.
type CameraConfig struct {
	// SnapshotURL is the HTTP endpoint returning the camera's current JPEG
	// frame. When empty, sessions run audio-only.
	SnapshotURL string `yaml:"snapshot_url"`

	// SnapshotInterval is the time between snapshot uplinks. Zero means the
	// default cadence of one per second.
	SnapshotInterval Duration `yaml:"snapshot_interval"`

	// Quality is the JPEG re-encode quality in [1, 100]. Zero means default.
	Quality int `yaml:"quality"`
}

// Default returns a Config with the defaults used when no config file is
// provided: info logging on :8080, the built-in model and voice, audio-only.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Gemini: GeminiConfig{
			Voice: "Kore",
		},
		Persona: PersonaConfig{
			Name: "Maya",
		},
	}
}

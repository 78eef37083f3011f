package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aurora-labs/maya/internal/config"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

gemini:
  api_key: test-key
  model: gemini-2.5-flash-native-audio-preview-09-2025
  voice: Kore
  transcribe_output: true

persona:
  name: Maya
  instructions: |
    You are Maya, a warm and curious companion.

camera:
  snapshot_url: http://192.168.1.40:8080/shot.jpg
  snapshot_interval: 1s
  quality: 70
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Gemini.Voice != "Kore" {
		t.Errorf("gemini.voice: got %q, want Kore", cfg.Gemini.Voice)
	}
	if !cfg.Gemini.TranscribeOutput {
		t.Error("gemini.transcribe_output: got false, want true")
	}
	if cfg.Persona.Name != "Maya" {
		t.Errorf("persona.name: got %q", cfg.Persona.Name)
	}
	if !strings.Contains(cfg.Persona.Instructions, "warm and curious") {
		t.Errorf("persona.instructions: got %q", cfg.Persona.Instructions)
	}
	if cfg.Camera.SnapshotInterval.Std() != time.Second {
		t.Errorf("camera.snapshot_interval: got %v, want 1s", cfg.Camera.SnapshotInterval.Std())
	}
	if cfg.Camera.Quality != 70 {
		t.Errorf("camera.quality: got %d, want 70", cfg.Camera.Quality)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	// An empty config should succeed (no required top-level fields).
	_, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_adr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	yaml := `
camera:
  snapshot_url: http://cam.local/shot.jpg
  snapshot_interval: every second
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unparseable duration, got nil")
	}
	if !strings.Contains(err.Error(), "duration") {
		t.Errorf("error should mention duration, got: %v", err)
	}
}

// ── Log levels ────────────────────────────────────────────────────────────────

func TestLogLevel_Level(t *testing.T) {
	cases := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := c.in.Level(); got != c.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", c.in, got, c.want)
		}
	}
}

// ── API key resolution ────────────────────────────────────────────────────────

func TestResolveAPIKey_ConfigWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	g := config.GeminiConfig{APIKey: "file-key"}
	if got := g.ResolveAPIKey(); got != "file-key" {
		t.Errorf("ResolveAPIKey() = %q, want file-key", got)
	}
}

func TestResolveAPIKey_EnvFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	g := config.GeminiConfig{}
	if got := g.ResolveAPIKey(); got != "env-key" {
		t.Errorf("ResolveAPIKey() = %q, want env-key", got)
	}
}

// ── Defaults ──────────────────────────────────────────────────────────────────

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
	if cfg.Server.ListenAddr == "" {
		t.Error("default listen_addr is empty")
	}
	if cfg.Gemini.Voice == "" {
		t.Error("default voice is empty")
	}
}

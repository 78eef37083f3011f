package config_test

import (
	"testing"

	"github.com/aurora-labs/maya/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Persona: config.PersonaConfig{Name: "Maya", Instructions: "be kind"},
	}
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("expected empty diff for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.SessionAffecting() {
		t.Error("log level change should not be session-affecting")
	}
}

func TestDiff_PersonaChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Persona: config.PersonaConfig{Instructions: "be kind"}}
	new := &config.Config{Persona: config.PersonaConfig{Instructions: "be curt"}}

	d := config.Diff(old, new)
	if !d.PersonaChanged {
		t.Error("expected PersonaChanged=true")
	}
	if !d.SessionAffecting() {
		t.Error("persona change should be session-affecting")
	}
}

func TestDiff_VoiceChangeIsGeminiChange(t *testing.T) {
	t.Parallel()
	old := &config.Config{Gemini: config.GeminiConfig{Voice: "Kore"}}
	new := &config.Config{Gemini: config.GeminiConfig{Voice: "Puck"}}

	d := config.Diff(old, new)
	if !d.GeminiChanged {
		t.Error("expected GeminiChanged=true")
	}
}

func TestDiff_CameraChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Camera: config.CameraConfig{SnapshotURL: "http://a/shot.jpg"}}
	new := &config.Config{Camera: config.CameraConfig{SnapshotURL: "http://b/shot.jpg"}}

	d := config.Diff(old, new)
	if !d.CameraChanged {
		t.Error("expected CameraChanged=true")
	}
}

func TestDiff_ListenAddrIgnored(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{ListenAddr: ":8080"}}
	new := &config.Config{Server: config.ServerConfig{ListenAddr: ":9090"}}

	d := config.Diff(old, new)
	if !d.Empty() {
		t.Errorf("listen_addr change should not appear in diff, got %+v", d)
	}
}

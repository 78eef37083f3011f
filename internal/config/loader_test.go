package config_test

import (
	"strings"
	"testing"

	"github.com/aurora-labs/maya/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidSnapshotURL(t *testing.T) {
	t.Parallel()
	yaml := `
camera:
  snapshot_url: "not a url"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid snapshot_url, got nil")
	}
	if !strings.Contains(err.Error(), "snapshot_url") {
		t.Errorf("error should mention snapshot_url, got: %v", err)
	}
}

func TestValidate_NonHTTPSnapshotURL(t *testing.T) {
	t.Parallel()
	yaml := `
camera:
  snapshot_url: "rtsp://cam.local/stream"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for rtsp snapshot_url, got nil")
	}
}

func TestValidate_QualityOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
camera:
  snapshot_url: http://cam.local/shot.jpg
  quality: 150
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for quality 150, got nil")
	}
	if !strings.Contains(err.Error(), "quality") {
		t.Errorf("error should mention quality, got: %v", err)
	}
}

func TestValidate_NegativeInterval(t *testing.T) {
	t.Parallel()
	yaml := `
camera:
  snapshot_url: http://cam.local/shot.jpg
  snapshot_interval: -1s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative snapshot_interval, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: chatty
camera:
  snapshot_url: "::bad::"
  quality: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "snapshot_url") {
		t.Errorf("error should mention snapshot_url, got: %v", err)
	}
}

func TestValidate_UnknownVoiceIsNotAnError(t *testing.T) {
	t.Parallel()
	// Unknown voices only warn; new voices ship server-side.
	yaml := `
gemini:
  api_key: k
  voice: Andromeda
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error for unknown voice: %v", err)
	}
}

func TestValidVoiceNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidVoiceNames) == 0 {
		t.Fatal("ValidVoiceNames should not be empty")
	}
	found := false
	for _, n := range config.ValidVoiceNames {
		if n == "Kore" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidVoiceNames should contain "Kore"`)
	}
}

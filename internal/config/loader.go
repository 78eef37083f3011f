package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidVoiceNames lists the Gemini Live prebuilt voice identities known at the
// time of writing. [Validate] warns about names outside this list rather than
// rejecting them, since new voices ship without a client release.
var ValidVoiceNames = []string{
	"Aoede", "Charon", "Fenrir", "Kore", "Leda", "Orus", "Puck", "Zephyr",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Gemini
	if cfg.Gemini.Voice != "" && !slices.Contains(ValidVoiceNames, cfg.Gemini.Voice) {
		slog.Warn("unknown voice name — may be a typo or a voice newer than this client",
			"voice", cfg.Gemini.Voice,
			"known", ValidVoiceNames,
		)
	}
	if cfg.Gemini.APIKey == "" && os.Getenv(apiKeyEnv) == "" {
		slog.Warn("no Gemini API key in config or environment; session start will fail",
			"env", apiKeyEnv,
		)
	}

	// Persona
	if cfg.Persona.Instructions == "" {
		slog.Warn("persona.instructions is empty; the companion will use the model's default behaviour")
	}

	// Camera
	if cfg.Camera.SnapshotURL != "" {
		u, err := url.Parse(cfg.Camera.SnapshotURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("camera.snapshot_url %q is not a valid http(s) URL", cfg.Camera.SnapshotURL))
		}
	}
	if cfg.Camera.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("camera.snapshot_interval must not be negative"))
	}
	if q := cfg.Camera.Quality; q != 0 && (q < 1 || q > 100) {
		errs = append(errs, fmt.Errorf("camera.quality %d is out of range [1, 100]", q))
	}

	return errors.Join(errs...)
}

// apiKeyEnv is the environment variable consulted when gemini.api_key is not
// set in the config file.
const apiKeyEnv = "GEMINI_API_KEY"

// ResolveAPIKey returns the configured API key, falling back to the
// GEMINI_API_KEY environment variable when the config value is empty.
func (g GeminiConfig) ResolveAPIKey() string {
	if g.APIKey != "" {
		return g.APIKey
	}
	return os.Getenv(apiKeyEnv)
}

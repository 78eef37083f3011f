package config

// ConfigDiff describes what changed between two configs, grouped by how the
// change can be applied: log level takes effect immediately, everything else
// on the next session start.
type ConfigDiff struct {
	// LogLevelChanged is set when server.log_level differs. The new level can
	// be applied to a running process via a slog.LevelVar.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is set when the persona name or instructions differ.
	PersonaChanged bool

	// GeminiChanged is set when any connection setting (key, model, endpoint,
	// voice, transcription) differs.
	GeminiChanged bool

	// CameraChanged is set when the snapshot source or cadence differs.
	CameraChanged bool
}

// SessionAffecting reports whether the diff contains changes that only take
// effect on the next session start.
func (d ConfigDiff) SessionAffecting() bool {
	return d.PersonaChanged || d.GeminiChanged || d.CameraChanged
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SessionAffecting()
}

// Diff compares old and new configs and returns what changed.
// Server listen address changes are ignored; they require a restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Persona != new.Persona {
		d.PersonaChanged = true
	}
	if old.Gemini != new.Gemini {
		d.GeminiChanged = true
	}
	if old.Camera != new.Camera {
		d.CameraChanged = true
	}

	return d
}

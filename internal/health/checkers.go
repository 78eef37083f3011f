package health

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/aurora-labs/maya/internal/resilience"
)

// APIKey returns the required probe verifying a Gemini API key is available.
// Without one neither live sessions nor assist calls can run, so its failure
// makes the client unready. resolve is typically
// [config.GeminiConfig.ResolveAPIKey].
func APIKey(resolve func() string) Checker {
	return Checker{
		Name: "api_key",
		Check: func(_ context.Context) error {
			if resolve() == "" {
				return errors.New("no API key configured")
			}
			return nil
		},
	}
}

// frameGrabber matches the camera's Grab method.
type frameGrabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Camera returns the optional probe that fetches one frame from the snapshot
// source, discarding the content. Sessions run audio-only without a camera,
// so its failure degrades readiness rather than failing it.
func Camera(cam frameGrabber) Checker {
	return Checker{
		Name:     "camera",
		Optional: true,
		Check: func(ctx context.Context) error {
			_, err := cam.Grab(ctx)
			return err
		},
	}
}

// Assist returns the optional probe reporting the assist circuit breaker.
// An open breaker means the one-shot Gemini surface is currently shedding
// calls; the live session is unaffected.
func Assist(state func() resilience.State) Checker {
	return Checker{
		Name:     "assist",
		Optional: true,
		Check: func(_ context.Context) error {
			if s := state(); s == resilience.StateOpen {
				return fmt.Errorf("circuit %s", s)
			}
			return nil
		},
	}
}

// Package ipcam implements a still-frame camera that pulls the current JPEG
// snapshot from an IP camera's HTTP endpoint.
//
// Most network cameras (and phone camera apps acting as one) expose a
// "current frame" URL returning a single JPEG. One Grab performs one GET;
// there is no streaming connection to manage.
package ipcam

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/aurora-labs/maya/pkg/capture"
)

// defaultTimeout bounds a single snapshot fetch. A camera slower than this
// would stall the 1 Hz snapshot cadence.
const defaultTimeout = 3 * time.Second

// Option is a functional option for configuring a Camera.
type Option func(*Camera)

// WithHTTPClient overrides the HTTP client used for snapshot fetches.
// Primarily used in tests to point at an httptest server with a custom
// transport.
func WithHTTPClient(c *http.Client) Option {
	return func(cam *Camera) { cam.client = c }
}

// Camera fetches still frames from a snapshot URL.
type Camera struct {
	url    string
	client *http.Client
}

// New creates a Camera for the given snapshot URL.
func New(url string, opts ...Option) *Camera {
	cam := &Camera{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(cam)
	}
	return cam
}

// Grab fetches and decodes the current frame. A non-200 response or a body
// that is not a decodable JPEG is an error; the caller decides whether to
// skip or surface it. A 401/403 response is reported as
// [capture.ErrPermissionDenied] so session start fails loudly instead of
// silently streaming without video.
func (c *Camera) Grab(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("ipcam: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipcam: fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("ipcam: snapshot fetch: %w: status %d", capture.ErrPermissionDenied, resp.StatusCode)
	default:
		return nil, fmt.Errorf("ipcam: snapshot fetch: unexpected status %d", resp.StatusCode)
	}

	img, err := jpeg.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ipcam: decode snapshot: %w", err)
	}
	return img, nil
}

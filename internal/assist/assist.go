// Package assist provides one-shot Gemini helpers that sit beside the live
// session: grounded answers, image analysis and generation, video generation,
// and short spoken feedback.
//
// Unlike the live transport these are plain call/response RPCs with no
// session state; each helper issues a single request (plus polling, for
// video) and returns.
package assist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Model identifiers per task. Grounded answers favour speed; image analysis
// favours quality.
const (
	groundedModel  = "gemini-3-flash-preview"
	analysisModel  = "gemini-3-pro-preview"
	imageEditModel = "gemini-2.5-flash-image"
	imageGenModel  = "gemini-3-pro-image-preview"
	videoModel     = "veo-3.1-fast-generate-preview"
	ttsModel       = "gemini-2.5-flash-preview-tts"
)

// defaultPollInterval is the wait between video operation polls.
const defaultPollInterval = 5 * time.Second

// ErrNoContent is returned when a response contains no usable part of the
// requested kind.
var ErrNoContent = errors.New("assist: response contains no content")

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithInstructions sets the persona system instruction injected into grounded
// answers.
func WithInstructions(s string) Option {
	return func(c *Client) { c.instructions = s }
}

// WithPollInterval overrides the video operation polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithHTTPOptions overrides the underlying HTTP options. Primarily used in
// tests to point the client at an httptest server.
func WithHTTPOptions(o genai.HTTPOptions) Option {
	return func(c *Client) { c.httpOptions = &o }
}

// Client wraps a genai client with the fixed set of one-shot helpers.
type Client struct {
	genai        *genai.Client
	instructions string
	pollInterval time.Duration
	httpOptions  *genai.HTTPOptions
}

// New creates a Client authenticated with apiKey.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	c := &Client{pollInterval: defaultPollInterval}
	for _, o := range opts {
		o(c)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.httpOptions != nil {
		cfg.HTTPOptions = *c.httpOptions
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("assist: create client: %w", err)
	}
	c.genai = gc
	return c, nil
}

// Source is one grounding citation.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GroundedResult is the answer text plus its deduplicated citations.
type GroundedResult struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// GroundedAnswer asks a question with Google Search grounding enabled and
// returns the answer alongside its web sources. Duplicate source URIs are
// collapsed, keeping first occurrence order.
func (c *Client) GroundedAnswer(ctx context.Context, prompt string) (*GroundedResult, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	if c.instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.instructions, genai.RoleUser)
	}

	resp, err := c.genai.Models.GenerateContent(ctx, groundedModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("assist: grounded answer: %w", err)
	}

	res := &GroundedResult{Text: resp.Text()}
	seen := make(map[string]bool)
	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			res.Sources = append(res.Sources, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
		}
	}
	return res, nil
}

// AnalyzeImage describes or answers a question about a JPEG frame.
func (c *Client) AnalyzeImage(ctx context.Context, jpegData []byte, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: jpegData}},
			{Text: prompt},
		},
	}}
	resp, err := c.genai.Models.GenerateContent(ctx, analysisModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("assist: analyze image: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}

// EditImage applies a text-described edit to a JPEG frame and returns the
// edited image bytes.
func (c *Client) EditImage(ctx context.Context, jpegData []byte, prompt string) ([]byte, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: jpegData}},
			{Text: prompt},
		},
	}}
	resp, err := c.genai.Models.GenerateContent(ctx, imageEditModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("assist: edit image: %w", err)
	}
	return firstInlineData(resp)
}

// GenerateImage renders a new image from a text prompt. aspectRatio may be
// empty for the model default.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	var cfg *genai.GenerateContentConfig
	if aspectRatio != "" {
		cfg = &genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
		}
	}
	resp, err := c.genai.Models.GenerateContent(ctx, imageGenModel, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("assist: generate image: %w", err)
	}
	return firstInlineData(resp)
}

// GenerateVideo animates a JPEG frame according to prompt and returns the URI
// of the finished video. The underlying operation is polled until done; the
// call blocks for the full render, so the caller should bound ctx.
func (c *Client) GenerateVideo(ctx context.Context, jpegData []byte, prompt string) (string, error) {
	if prompt == "" {
		prompt = "Animate the scene with cinematic motion"
	}
	image := &genai.Image{ImageBytes: jpegData, MIMEType: "image/jpeg"}
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     "720p",
		AspectRatio:    "9:16",
	}

	op, err := c.genai.Models.GenerateVideos(ctx, videoModel, prompt, image, cfg)
	if err != nil {
		return "", fmt.Errorf("assist: generate video: %w", err)
	}
	op, err = waitForVideo(ctx, op, c.genai.Operations, c.pollInterval)
	if err != nil {
		return "", err
	}

	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return "", ErrNoContent
	}
	return op.Response.GeneratedVideos[0].Video.URI, nil
}

// SpeakFeedback synthesises a short spoken phrase and returns the PCM audio
// bytes. voice may be empty for the model default.
func (c *Client) SpeakFeedback(ctx context.Context, text, voice string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
	}
	if voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	resp, err := c.genai.Models.GenerateContent(ctx, ttsModel, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("assist: speak feedback: %w", err)
	}
	return firstInlineData(resp)
}

// videoPoller is the polling surface of genai's operations client.
type videoPoller interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// waitForVideo polls op at the given interval until it completes or ctx ends.
func waitForVideo(ctx context.Context, op *genai.GenerateVideosOperation, poller videoPoller, interval time.Duration) (*genai.GenerateVideosOperation, error) {
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("assist: generate video: %w", ctx.Err())
		case <-time.After(interval):
		}
		var err error
		op, err = poller.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("assist: poll video operation: %w", err)
		}
	}
	return op, nil
}

// firstInlineData returns the first inline-data payload in resp.
func firstInlineData(resp *genai.GenerateContentResponse) ([]byte, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoContent
}

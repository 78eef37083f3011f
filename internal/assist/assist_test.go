package assist

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

// fakeAPI is an httptest server that records generateContent requests and
// replies with a canned JSON body.
type fakeAPI struct {
	srv *httptest.Server

	mu       sync.Mutex
	paths    []string
	bodies   []map[string]any
	response string
	status   int
}

func newFakeAPI(t *testing.T, response string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{response: response, status: http.StatusOK}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.bodies = append(f.bodies, body)
		status := f.status
		resp := f.response
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) lastPath(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.paths) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.paths[len(f.paths)-1]
}

func (f *fakeAPI) lastBody(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		t.Fatal("no requests recorded")
	}
	return f.bodies[len(f.bodies)-1]
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	opts = append(opts, WithHTTPOptions(genai.HTTPOptions{BaseURL: api.srv.URL}))
	c, err := New(context.Background(), "test-key", opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// ── Grounded answers ─────────────────────────────────────────────────────────

const groundedResponse = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "The aurora is visible tonight."}]},
    "groundingMetadata": {"groundingChunks": [
      {"web": {"uri": "https://spaceweather.example", "title": "Space Weather"}},
      {"web": {"uri": "https://spaceweather.example", "title": "Space Weather (dup)"}},
      {"web": {"uri": "https://aurora.example", "title": "Aurora Watch"}}
    ]}
  }]
}`

func TestGroundedAnswer_TextAndDedupedSources(t *testing.T) {
	api := newFakeAPI(t, groundedResponse)
	c := newTestClient(t, api)

	res, err := c.GroundedAnswer(context.Background(), "any aurora tonight?")
	if err != nil {
		t.Fatalf("GroundedAnswer: %v", err)
	}
	if res.Text != "The aurora is visible tonight." {
		t.Errorf("text = %q", res.Text)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("sources = %d, want 2 after dedup", len(res.Sources))
	}
	if res.Sources[0].URI != "https://spaceweather.example" || res.Sources[1].URI != "https://aurora.example" {
		t.Errorf("sources out of order: %+v", res.Sources)
	}
}

func TestGroundedAnswer_RequestShape(t *testing.T) {
	api := newFakeAPI(t, groundedResponse)
	c := newTestClient(t, api, WithInstructions("You are Maya."))

	if _, err := c.GroundedAnswer(context.Background(), "hello"); err != nil {
		t.Fatalf("GroundedAnswer: %v", err)
	}

	if path := api.lastPath(t); !strings.Contains(path, groundedModel) {
		t.Errorf("request path %q does not target %q", path, groundedModel)
	}
	body := api.lastBody(t)
	tools, ok := body["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatal("request is missing the googleSearch tool")
	}
	if _, ok := tools[0].(map[string]any)["googleSearch"]; !ok {
		t.Errorf("first tool is not googleSearch: %v", tools[0])
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Error("request is missing the persona system instruction")
	}
}

func TestGroundedAnswer_APIError(t *testing.T) {
	api := newFakeAPI(t, `{"error": {"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"}}`)
	api.status = http.StatusTooManyRequests
	c := newTestClient(t, api)

	_, err := c.GroundedAnswer(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

// ── Image helpers ────────────────────────────────────────────────────────────

func TestAnalyzeImage_SendsInlineDataAndPrompt(t *testing.T) {
	api := newFakeAPI(t, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "A cat on a desk."}]}}]}`)
	c := newTestClient(t, api)

	got, err := c.AnalyzeImage(context.Background(), []byte{0xff, 0xd8, 0xff}, "what do you see?")
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if got != "A cat on a desk." {
		t.Errorf("text = %q", got)
	}

	body := api.lastBody(t)
	raw, _ := json.Marshal(body)
	if !strings.Contains(string(raw), "image/jpeg") {
		t.Error("request does not carry the JPEG inline data")
	}
	if !strings.Contains(string(raw), "what do you see?") {
		t.Error("request does not carry the prompt")
	}
}

func TestEditImage_ReturnsImageBytes(t *testing.T) {
	pixels := []byte{0x89, 0x50, 0x4e, 0x47}
	resp := `{"candidates": [{"content": {"role": "model", "parts": [
		{"inlineData": {"mimeType": "image/png", "data": "` + base64.StdEncoding.EncodeToString(pixels) + `"}}
	]}}]}`
	api := newFakeAPI(t, resp)
	c := newTestClient(t, api)

	got, err := c.EditImage(context.Background(), []byte{0xff, 0xd8}, "add a hat")
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if string(got) != string(pixels) {
		t.Errorf("image bytes = %x, want %x", got, pixels)
	}
}

func TestEditImage_NoImageInResponse(t *testing.T) {
	api := newFakeAPI(t, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "sorry"}]}}]}`)
	c := newTestClient(t, api)

	_, err := c.EditImage(context.Background(), []byte{0xff, 0xd8}, "add a hat")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestGenerateImage_TargetsImageModel(t *testing.T) {
	pixels := []byte{1, 2, 3}
	resp := `{"candidates": [{"content": {"role": "model", "parts": [
		{"inlineData": {"mimeType": "image/png", "data": "` + base64.StdEncoding.EncodeToString(pixels) + `"}}
	]}}]}`
	api := newFakeAPI(t, resp)
	c := newTestClient(t, api)

	if _, err := c.GenerateImage(context.Background(), "an aurora over mountains", "9:16"); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if path := api.lastPath(t); !strings.Contains(path, imageGenModel) {
		t.Errorf("request path %q does not target %q", path, imageGenModel)
	}
}

// ── Spoken feedback ──────────────────────────────────────────────────────────

func TestSpeakFeedback_ReturnsAudioBytes(t *testing.T) {
	pcm := []byte{0, 1, 0, 2, 0, 3}
	resp := `{"candidates": [{"content": {"role": "model", "parts": [
		{"inlineData": {"mimeType": "audio/pcm", "data": "` + base64.StdEncoding.EncodeToString(pcm) + `"}}
	]}}]}`
	api := newFakeAPI(t, resp)
	c := newTestClient(t, api)

	got, err := c.SpeakFeedback(context.Background(), "Saved!", "Kore")
	if err != nil {
		t.Fatalf("SpeakFeedback: %v", err)
	}
	if string(got) != string(pcm) {
		t.Errorf("audio = %x, want %x", got, pcm)
	}

	body := api.lastBody(t)
	raw, _ := json.Marshal(body)
	if !strings.Contains(string(raw), "Kore") {
		t.Error("request does not carry the voice name")
	}
	if !strings.Contains(string(raw), "AUDIO") {
		t.Error("request does not ask for the audio modality")
	}
}

// ── Video polling ────────────────────────────────────────────────────────────

type stubPoller struct {
	mu      sync.Mutex
	calls   int
	results []*genai.GenerateVideosOperation
	err     error
}

func (p *stubPoller) GetVideosOperation(_ context.Context, _ *genai.GenerateVideosOperation, _ *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	res := p.results[p.calls]
	p.calls++
	return res, nil
}

func doneVideoOp(uri string) *genai.GenerateVideosOperation {
	return &genai.GenerateVideosOperation{
		Done: true,
		Response: &genai.GenerateVideosResponse{
			GeneratedVideos: []*genai.GeneratedVideo{
				{Video: &genai.Video{URI: uri}},
			},
		},
	}
}

func TestWaitForVideo_PollsUntilDone(t *testing.T) {
	poller := &stubPoller{results: []*genai.GenerateVideosOperation{
		{Done: false},
		doneVideoOp("https://video.example/clip.mp4"),
	}}

	op, err := waitForVideo(context.Background(), &genai.GenerateVideosOperation{}, poller, time.Millisecond)
	if err != nil {
		t.Fatalf("waitForVideo: %v", err)
	}
	if !op.Done {
		t.Fatal("returned operation is not done")
	}
	if got := op.Response.GeneratedVideos[0].Video.URI; got != "https://video.example/clip.mp4" {
		t.Errorf("uri = %q", got)
	}
	if poller.calls != 2 {
		t.Errorf("polled %d times, want 2", poller.calls)
	}
}

func TestWaitForVideo_AlreadyDoneSkipsPolling(t *testing.T) {
	poller := &stubPoller{}
	op, err := waitForVideo(context.Background(), doneVideoOp("u"), poller, time.Millisecond)
	if err != nil {
		t.Fatalf("waitForVideo: %v", err)
	}
	if !op.Done || poller.calls != 0 {
		t.Errorf("done=%v polls=%d, want done with no polls", op.Done, poller.calls)
	}
}

func TestWaitForVideo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	poller := &stubPoller{results: []*genai.GenerateVideosOperation{{Done: false}}}
	_, err := waitForVideo(ctx, &genai.GenerateVideosOperation{}, poller, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWaitForVideo_PollError(t *testing.T) {
	poller := &stubPoller{err: errors.New("backend unavailable")}
	_, err := waitForVideo(context.Background(), &genai.GenerateVideosOperation{}, poller, time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "backend unavailable") {
		t.Errorf("err = %v, want poll error", err)
	}
}

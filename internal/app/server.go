package app

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aurora-labs/maya/internal/assist"
	"github.com/aurora-labs/maya/internal/controller"
	"github.com/aurora-labs/maya/internal/health"
	"github.com/aurora-labs/maya/internal/observe"
	"github.com/aurora-labs/maya/internal/resilience"
)

// routes builds the local HTTP surface: health probes, Prometheus metrics,
// the controller status/control endpoints, and the one-shot assist calls.
func (a *App) routes() *http.ServeMux {
	mux := http.NewServeMux()

	checkers := []health.Checker{
		health.APIKey(a.cfg.Gemini.ResolveAPIKey),
	}
	if a.camera != nil {
		checkers = append(checkers, health.Camera(a.camera))
	}
	if a.assist != nil {
		checkers = append(checkers, health.Assist(a.assistBreaker.State))
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("POST /session/start", a.handleSessionStart)
	mux.HandleFunc("POST /session/stop", a.handleSessionStop)
	mux.HandleFunc("POST /assist/answer", a.handleAssistAnswer)
	mux.HandleFunc("POST /assist/analyze", a.handleAssistAnalyze)
	mux.HandleFunc("POST /assist/speak", a.handleAssistSpeak)

	return mux
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.ctrl.Status())
}

func (a *App) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.Start(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrSessionInProgress) {
			status = http.StatusConflict
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, a.ctrl.Status())
}

func (a *App) handleSessionStop(w http.ResponseWriter, _ *http.Request) {
	a.ctrl.Stop()
	writeJSON(w, http.StatusOK, a.ctrl.Status())
}

// ── Assist endpoints ─────────────────────────────────────────────────────────

type answerRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) handleAssistAnswer(w http.ResponseWriter, r *http.Request) {
	if a.assist == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assist is not configured"})
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be JSON with a non-empty prompt"})
		return
	}

	var res *assist.GroundedResult
	err := a.assistBreaker.Do(func() error {
		var callErr error
		res, callErr = a.assist.GroundedAnswer(r.Context(), req.Prompt)
		return callErr
	})
	if err != nil {
		observe.Logger(r.Context()).Error("grounded answer failed", "err", err)
		writeJSON(w, assistErrorStatus(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analyzeRequest struct {
	// Image is the base64-encoded JPEG to analyse.
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type analyzeResponse struct {
	Text string `json:"text"`
}

func (a *App) handleAssistAnalyze(w http.ResponseWriter, r *http.Request) {
	if a.assist == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assist is not configured"})
		return
	}
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be JSON with a base64 image"})
		return
	}
	jpegData, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "image is not valid base64"})
		return
	}

	var text string
	err = a.assistBreaker.Do(func() error {
		var callErr error
		text, callErr = a.assist.AnalyzeImage(r.Context(), jpegData, req.Prompt)
		return callErr
	})
	if err != nil {
		observe.Logger(r.Context()).Error("image analysis failed", "err", err)
		writeJSON(w, assistErrorStatus(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Text: text})
}

type speakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type speakResponse struct {
	// Audio is base64-encoded PCM16.
	Audio string `json:"audio"`
}

func (a *App) handleAssistSpeak(w http.ResponseWriter, r *http.Request) {
	if a.assist == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "assist is not configured"})
		return
	}
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be JSON with non-empty text"})
		return
	}

	var pcm []byte
	err := a.assistBreaker.Do(func() error {
		var callErr error
		pcm, callErr = a.assist.SpeakFeedback(r.Context(), req.Text, req.Voice)
		return callErr
	})
	if err != nil {
		observe.Logger(r.Context()).Error("spoken feedback failed", "err", err)
		writeJSON(w, assistErrorStatus(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, speakResponse{Audio: base64.StdEncoding.EncodeToString(pcm)})
}

// assistErrorStatus maps an assist call failure to an HTTP status: a tripped
// breaker is a local 503, anything else means the upstream call failed.
func assistErrorStatus(err error) int {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}

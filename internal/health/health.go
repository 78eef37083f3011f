// Package health serves the liveness and readiness probes for the Maya
// client.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz
// evaluates the registered probes and distinguishes two kinds of failure:
// a required probe failing (no usable API key) makes the client unready and
// the endpoint answers 503, while an optional probe failing (camera
// unreachable, assist surface shedding) only degrades it — sessions still
// run audio-only, so the endpoint answers 200 with status "degraded".
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds one readiness probe. The camera probe performs a real
// snapshot fetch, which the ipcam client already caps at 3 seconds.
const probeTimeout = 3 * time.Second

// Readiness levels reported in the response body.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// Checker is one named readiness probe.
type Checker struct {
	// Name keys the probe's result in the JSON response.
	Name string

	// Optional marks a probe whose failure degrades readiness instead of
	// failing it.
	Optional bool

	// Check probes the dependency, returning nil when it is usable. It must
	// respect context cancellation.
	Check func(ctx context.Context) error
}

// report is the response body for both endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The probe set is fixed at
// construction; Handler itself holds no mutable state.
type Handler struct {
	checkers []Checker
}

// New creates a Handler that runs the given probes, in order, on every
// /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: statusOK})
}

// Readyz runs every probe and folds the results into one readiness level:
// "ok" when all pass, "degraded" (still 200) when only optional probes fail,
// "fail" (503) when a required probe fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status: statusOK,
		Checks: make(map[string]string, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err == nil {
			rep.Checks[c.Name] = statusOK
			continue
		}
		rep.Checks[c.Name] = "fail: " + err.Error()
		if c.Optional {
			if rep.Status == statusOK {
				rep.Status = statusDegraded
			}
		} else {
			rep.Status = statusFail
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, rep)
}

// Register adds both probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

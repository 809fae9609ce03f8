// Package httpapi serves tracked-team results as JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pfrederiksen/liquipedia-cs/internal/logger"
	"github.com/pfrederiksen/liquipedia-cs/internal/match"
	"github.com/pfrederiksen/liquipedia-cs/internal/poller"
)

// Service is the read side of the pipeline. *pipeline.Pipeline implements it.
type Service interface {
	Results(ctx context.Context) []match.TeamResult
	RefreshAll(ctx context.Context) []match.TeamResult
	GetTeamResult(ctx context.Context, page string) match.TeamResult
	Team(page string) (match.Team, bool)
}

// Handler wires HTTP routes to the pipeline.
type Handler struct {
	svc      Service
	log      *logger.Logger
	gatherer prometheus.Gatherer
	statusFn func() poller.Status
}

// NewHandler creates a Handler. gatherer and statusFn may be nil.
func NewHandler(svc Service, log *logger.Logger, gatherer prometheus.Gatherer, statusFn func() poller.Status) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{svc: svc, log: log, gatherer: gatherer, statusFn: statusFn}
}

// Routes returns the API mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /api/teams", h.teams)
	mux.HandleFunc("GET /api/teams/{page}", h.team)
	mux.HandleFunc("POST /api/refresh", h.refresh)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.statusFn != nil {
		body["poller"] = h.statusFn()
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) teams(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, outputs(h.svc.Results(r.Context())))
}

func (h *Handler) team(w http.ResponseWriter, r *http.Request) {
	page := r.PathValue("page")
	if _, ok := h.svc.Team(page); !ok {
		h.writeError(w, http.StatusNotFound, "team not tracked: "+page)
		return
	}
	h.writeJSON(w, http.StatusOK, h.svc.GetTeamResult(r.Context(), page).Output())
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	h.log.Info("Refresh requested over HTTP", logger.Fields{"remote": r.RemoteAddr})
	h.writeJSON(w, http.StatusOK, outputs(h.svc.RefreshAll(r.Context())))
}

func outputs(results []match.TeamResult) []match.SensorOutput {
	out := make([]match.SensorOutput, 0, len(results))
	for _, r := range results {
		out = append(out, r.Output())
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("Failed to encode response", nil, err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// Package httpadapter exposes the session, model and podcast APIs over
// HTTP. Handlers translate between the wire shapes and the inbound
// ports; semantic errors map to statuses in error_mapping.go.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vmalyshev/studycast/internal/core/ports"
	"github.com/vmalyshev/studycast/internal/observability/metrics"
)

type Router struct {
	sessions ports.SessionOrchestrator
	podcasts ports.PodcastOrchestrator
	catalog  ports.ModelCatalog
	storage  ports.ObjectStorage
	metrics  *metrics.HTTPServerMetrics
	service  string

	maxUploadBytes int64
	requestsPerMin int
	logger         *slog.Logger
}

type RouterConfig struct {
	Sessions ports.SessionOrchestrator
	Podcasts ports.PodcastOrchestrator
	Catalog  ports.ModelCatalog
	Storage  ports.ObjectStorage
	Metrics  *metrics.HTTPServerMetrics
	Service  string

	MaxUploadBytes int64
	RequestsPerMin int
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Service == "" {
		cfg.Service = "studycast-api"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	return &Router{
		sessions:       cfg.Sessions,
		podcasts:       cfg.Podcasts,
		catalog:        cfg.Catalog,
		storage:        cfg.Storage,
		metrics:        cfg.Metrics,
		service:        cfg.Service,
		maxUploadBytes: cfg.MaxUploadBytes,
		requestsPerMin: cfg.RequestsPerMin,
		logger:         logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/models", rt.listModels)

	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions", rt.listSessions)
	mux.HandleFunc("GET /v1/sessions/{id}/info", rt.sessionInfo)
	mux.HandleFunc("POST /v1/sessions/{id}/query", rt.querySession)
	mux.HandleFunc("POST /v1/sessions/{id}/documents", rt.uploadDocuments)
	mux.HandleFunc("PUT /v1/sessions/{id}/model", rt.switchModel)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)

	mux.HandleFunc("POST /v1/sessions/{id}/podcast", rt.requestEpisode)
	mux.HandleFunc("GET /v1/podcasts/{id}", rt.getEpisode)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	if rt.requestsPerMin > 0 {
		handler = rateLimitMiddleware(rt.requestsPerMin, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": rt.catalog.List()})
}

func (rt *Router) querySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	answer, err := rt.sessions.Query(r.Context(), sessionID, req.Question)
	if err != nil {
		rt.respondError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordQuery(rt.service, rt.sessionModel(r, sessionID), time.Since(start))
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// sessionModel resolves the serving model for metric labels; the
// listing is small enough to scan.
func (rt *Router) sessionModel(r *http.Request, sessionID string) string {
	for _, s := range rt.sessions.List(r.Context()) {
		if s.ID == sessionID {
			return s.Model
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rt *Router) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

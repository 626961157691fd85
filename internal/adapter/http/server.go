// Package http exposes the service API plus the health, readiness, and
// metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldsignals/disaster-feed-sync/internal/domain"
	"github.com/fieldsignals/disaster-feed-sync/internal/source"
	"github.com/fieldsignals/disaster-feed-sync/internal/store"
)

// Syncer triggers sync cycles.
type Syncer interface {
	Sync(ctx context.Context, hint source.LocationHint)
	Syncing() bool
}

// Server exposes the incident API over HTTP.
type Server struct {
	httpServer *http.Server
	store      *store.Store
	classify   domain.Classifier
	syncer     Syncer
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes registered.
func NewServer(addr string, st *store.Store, classify domain.Classifier, syncer Syncer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:    st,
		classify: classify,
		syncer:   syncer,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/incidents", s.handleListIncidents)
	mux.HandleFunc("POST /api/incidents", s.handleReportIncident)
	mux.HandleFunc("POST /api/incidents/{id}/resolve", s.handleResolveIncident)
	mux.HandleFunc("GET /api/logs", s.handleListLogs)
	mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	mux.HandleFunc("GET /api/user", s.handleGetUser)
	mux.HandleFunc("PUT /api/user", s.handleSetUser)
	mux.HandleFunc("GET /api/sync", s.handleSyncStatus)
	mux.HandleFunc("POST /api/sync", s.handleTriggerSync)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/purge", s.handlePurge)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.CheckReadiness(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Incidents())
}

// reportRequest is a manually injected signal (operator report or voice
// transcript).
type reportRequest struct {
	Text     string `json:"text"`
	Author   string `json:"author"`
	Source   string `json:"source"`
	ImageURL string `json:"imageUrl"`
}

// handleReportIncident classifies the report and stores it. Unlike feed
// candidates, a manual report is kept even when the oracle judges it
// irrelevant; the operator chose to file it.
func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	src := domain.SourceManual
	if strings.EqualFold(req.Source, string(domain.SourceVoice)) {
		src = domain.SourceVoice
	}
	author := req.Author
	if author == "" {
		author = "Operator"
	}

	res, err := s.classify.Classify(r.Context(), req.Text, nil)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "classification interrupted")
		return
	}

	now := domain.NowMillis()
	inc := domain.Incident{
		ID:                domain.NewIncidentID(src, now),
		Author:            author,
		Timestamp:         now,
		Text:              req.Text,
		ImageURL:          req.ImageURL,
		Status:            res.Analysis.Urgency,
		RiskScore:         res.Analysis.RiskScore,
		Reasoning:         res.Analysis.Reasoning,
		RecommendedAction: res.Analysis.RecommendedAction,
		Location:          res.Analysis.LocationDetected,
		Source:            src,
	}
	s.store.Insert(inc)
	writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleResolveIncident(w http.ResponseWriter, r *http.Request) {
	resolved, err := s.store.Resolve(r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrNoUser):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, resolved)
	}
}

func (s *Server) handleListLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Logs())
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Notifications())
}

func (s *Server) handleGetUser(w http.ResponseWriter, _ *http.Request) {
	u := s.store.User()
	if u == nil {
		writeError(w, http.StatusNotFound, "no active user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSetUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if u.ID == "" || u.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}
	s.store.SetUser(u)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"syncing": s.syncer.Syncing()}
	if last := s.store.LastSync(); !last.IsZero() {
		status["lastSync"] = last.UnixMilli()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleTriggerSync starts a cycle in the background and returns immediately.
// A cycle already in flight makes the trigger a no-op.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	var hint source.LocationHint
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&hint); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	go s.syncer.Sync(context.WithoutCancel(r.Context()), hint)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync triggered"})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ExportPacket())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.ImportPacket(body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePurge wipes all persisted state, the logout teardown path.
func (s *Server) handlePurge(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Purge(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package api exposes the analyzer over HTTP: a synchronous JSON endpoint,
// a Server-Sent Events stream, and quota/health probes.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joescharf/repolens/internal/analyzer"
	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/llm"
	"github.com/joescharf/repolens/internal/quota"
)

// Server provides the REST API handlers.
type Server struct {
	svc       *analyzer.Service
	quota     quota.Store
	logger    *slog.Logger
	tierLimit int
	window    time.Duration
	devMode   bool
}

// Config carries the server's metering settings.
type Config struct {
	TierLimit int
	Window    time.Duration
	DevMode   bool
}

// NewServer creates the API server. The quota store must not be nil; use
// a FallbackStore when no durable backend is configured.
func NewServer(svc *analyzer.Service, qs quota.Store, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TierLimit <= 0 {
		cfg.TierLimit = quota.FreeTierLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = quota.Window
	}
	return &Server{
		svc:       svc,
		quota:     qs,
		logger:    logger,
		tierLimit: cfg.TierLimit,
		window:    cfg.Window,
		devMode:   cfg.DevMode,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/analyze", s.analyze)
	mux.HandleFunc("POST /api/v1/analyze/stream", s.analyzeStream)
	mux.HandleFunc("GET /api/v1/quota", s.quotaStatus)
	mux.HandleFunc("GET /healthz", s.healthz)

	return corsMiddleware(s.logMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "client", clientKey(r), "duration", time.Since(start))
	})
}

// clientKey derives the metering identity for a request: the first
// X-Forwarded-For hop when present, else the remote address host.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody builds the {success:false, error:{...}} envelope.
func (s *Server) errorBody(err error) map[string]any {
	e := map[string]any{
		"code":    apperr.CodeOf(err),
		"message": apperr.MessageOf(err),
	}
	if s.devMode {
		e["detail"] = err.Error()
	}
	return map[string]any{"success": false, "error": e}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusOf(err), s.errorBody(err))
}

// admit runs the quota gate. Requests carrying a provider-format
// credential bypass metering entirely; the credential is only checked for
// format here, never verified against the provider.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, overrideKey string) bool {
	if llm.IsOverrideKey(overrideKey) {
		return true
	}

	key := clientKey(r)
	adm, err := s.quota.Admit(r.Context(), key, s.tierLimit, s.window)
	if err != nil {
		// The fallback store absorbs backend failures; an error here means
		// even the in-memory path broke, which should fail the request.
		s.writeError(w, err)
		return false
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.tierLimit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(adm.Remaining))
	w.Header().Set("X-RateLimit-Reset", adm.ResetAt.UTC().Format(time.RFC3339))

	if !adm.Allowed {
		s.logger.Warn("quota denied", "client", key, "limit", s.tierLimit, "resetAt", adm.ResetAt)
		body := s.errorBody(apperr.ErrQuotaExceeded)
		e := body["error"].(map[string]any)
		e["limit"] = s.tierLimit
		e["remaining"] = adm.Remaining
		e["resetAt"] = adm.ResetAt.UTC().Format(time.RFC3339)
		e["suggestion"] = "Supply your own provider API key in the apiKey field to bypass metering"
		writeJSON(w, http.StatusTooManyRequests, body)
		return false
	}
	return true
}

// decodeRequest parses and structurally validates the analysis request.
func decodeRequest(r *http.Request) (analyzer.Request, error) {
	var req analyzer.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apperr.ErrValidation.WithMessage("invalid JSON body")
	}
	if strings.TrimSpace(req.RepoURL) == "" {
		return req, apperr.ErrValidation.WithMessage("repoUrl is required")
	}
	if len(req.FilePaths) > analyzer.MaxExplicitPaths {
		return req, apperr.ErrValidation.WithMessage("filePaths exceeds the maximum of %d entries", analyzer.MaxExplicitPaths)
	}
	return req, nil
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.admit(w, r, req.APIKey) {
		return
	}

	report, err := s.svc.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": report})
}

func (s *Server) analyzeStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.admit(w, r, req.APIKey) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, fmt.Errorf("response writer does not support streaming"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(e analyzer.Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	writeEvent(analyzer.Event{Stage: analyzer.StageConnected, Message: "Connected", Progress: 0})

	// The request context is cancelled when the client disconnects, which
	// stops the orchestrator mid-run without caching a partial result.
	for e := range s.svc.Stream(r.Context(), req) {
		writeEvent(e)
	}
}

func (s *Server) quotaStatus(w http.ResponseWriter, r *http.Request) {
	standing, err := s.quota.Peek(r.Context(), clientKey(r), s.tierLimit, s.window)
	if err != nil {
		s.writeError(w, err)
		return
	}
	remote, err := s.svc.QuotaStatus(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	data := map[string]any{
		"tierLimit": s.tierLimit,
		"window":    s.window.String(),
		"remaining": standing.Remaining,
		"github":    remote,
	}
	if !standing.ResetAt.IsZero() {
		data["resetAt"] = standing.ResetAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

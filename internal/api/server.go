package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aegis/trust-service/internal/actions"
	"github.com/aegis/trust-service/internal/blocklist"
	"github.com/aegis/trust-service/internal/metrics"
	"github.com/aegis/trust-service/internal/moderation"
	"github.com/aegis/trust-service/internal/ratelimit"
	"github.com/aegis/trust-service/internal/security"
	"github.com/aegis/trust-service/internal/session"
)

// EventCounter answers long-horizon questions the in-memory audit trail
// cannot: how often an event type was seen from a client IP over windows
// longer than the retained buffer. Satisfied by the Postgres archive.
type EventCounter interface {
	CountRecentEvents(ctx context.Context, eventType, clientIP string, window time.Duration) (int, error)
}

// Server holds the HTTP surface and its collaborators. blocks, sessions,
// and counter may be nil when no Redis or Postgres is configured; the
// affected endpoints then report the feature as unavailable or return
// zero-state.
type Server struct {
	service  *actions.Service
	events   *security.EventLog
	blocks   *blocklist.Store // optional
	sessions *session.Store   // optional
	counter  EventCounter     // optional
	limiter  ratelimit.Checker
	stream   *Stream
}

// NewServer wires the handlers to their collaborators and subscribes the
// live event stream to the audit trail.
func NewServer(service *actions.Service, events *security.EventLog, blocks *blocklist.Store, sessions *session.Store, counter EventCounter, limiter ratelimit.Checker) *Server {
	return &Server{
		service:  service,
		events:   events,
		blocks:   blocks,
		sessions: sessions,
		counter:  counter,
		limiter:  limiter,
		stream:   NewStream(events),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /moderation", s.instrument("/moderation", "POST",
		s.rateLimit(ratelimit.RuleModerate, s.handleModeratePost)))
	mux.HandleFunc("GET /moderation", s.instrument("/moderation", "GET",
		s.handleModerateGet))
	mux.HandleFunc("GET /security", s.instrument("/security", "GET",
		s.handleSecurityGet))
	mux.HandleFunc("POST /security", s.instrument("/security", "POST",
		s.rateLimit(ratelimit.RuleSecurityAdmin, s.handleSecurityPost)))
	mux.HandleFunc("GET /security/stream", s.stream.handleUpgrade)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// Close disconnects live stream clients. Used during graceful shutdown.
func (s *Server) Close() {
	s.stream.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"retainedEvents": s.events.Len(),
		"streamClients":  s.stream.Count(),
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", "err", err)
	}
}

func writeBadRequest(w http.ResponseWriter, details string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request", Details: details})
}

// writeError maps domain sentinels to status codes. Anything unrecognized
// becomes a 500 with a generic message; the cause is logged server-side only.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, moderation.ErrInvalidContent):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid content", Details: err.Error()})
	case errors.Is(err, actions.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: err.Error()})
	default:
		slog.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

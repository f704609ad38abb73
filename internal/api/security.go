package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aegis/trust-service/internal/blocklist"
	"github.com/aegis/trust-service/internal/security"
	"github.com/aegis/trust-service/internal/session"
)

// archiveWindow is how far back the durable archive is consulted when the
// in-memory buffer alone answers a suspicion check.
const archiveWindow = 24 * time.Hour

// suspicionResponse extends the in-memory report with archived history and
// the outcome of offense escalation. ArchivedAttempts is omitted when no
// archive is configured or the lookup fails.
type suspicionResponse struct {
	security.SuspicionReport
	ArchivedAttempts     *int `json:"archivedAttempts,omitempty"`
	AutoBlocked          bool `json:"autoBlocked,omitempty"`
	BlockDurationSeconds int  `json:"blockDurationSeconds,omitempty"`
}

func (s *Server) handleSecurityGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch q.Get("view") {
	case "metrics", "":
		writeJSON(w, http.StatusOK, s.events.Metrics())
	case "events":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"events": s.events.Recent(parseLimit(q.Get("limit"))),
		})
	case "blocks":
		if s.blocks == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"blocks": []blocklist.BlockedIP{},
			})
			return
		}
		list, err := s.blocks.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []blocklist.BlockedIP{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": list})
	default:
		writeBadRequest(w, "unknown view (supported: metrics, events, blocks)")
	}
}

func (s *Server) handleSecurityPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	_, cmd, err := ParseSecurityCommand(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	switch c := cmd.(type) {
	case CheckSuspiciousCmd:
		if c.ClientIP == "" || c.Email == "" {
			writeBadRequest(w, "clientIP and email are required")
			return
		}
		window := time.Duration(c.WindowSeconds) * time.Second
		resp := suspicionResponse{
			SuspicionReport: s.events.DetectSuspicious(c.ClientIP, c.Email, window),
		}

		if s.counter != nil {
			n, err := s.counter.CountRecentEvents(r.Context(),
				string(security.EventLoginFailure), c.ClientIP, archiveWindow)
			if err != nil {
				slog.Warn("archived attempt count failed", "ip", c.ClientIP, "err", err)
			} else {
				resp.ArchivedAttempts = &n
			}
		}

		if resp.Suspicious {
			s.events.Log(security.EventSuspicious, r, security.EventOptions{
				Email:    c.Email,
				Severity: security.SeverityHigh,
				Details:  map[string]string{"checkedIP": c.ClientIP, "reason": resp.Reason},
			})

			// Each positive check counts as an offense; the block kicks in
			// once the counter crosses the threshold.
			if s.blocks != nil {
				blocked, duration, err := s.blocks.RecordOffense(r.Context(), c.ClientIP, "repeated login failures")
				switch {
				case err != nil:
					slog.Warn("offense record failed", "ip", c.ClientIP, "err", err)
				case blocked:
					resp.AutoBlocked = true
					resp.BlockDurationSeconds = int(duration.Seconds())
					s.events.Log(security.EventIPBlocked, r, security.EventOptions{
						Email:    c.Email,
						Severity: security.SeverityHigh,
						Details: map[string]string{
							"blockedIP":       c.ClientIP,
							"reason":          "repeated login failures",
							"durationSeconds": strconv.Itoa(int(duration.Seconds())),
						},
					})
				}
			}
		}
		writeJSON(w, http.StatusOK, resp)

	case BlockIPCmd:
		if s.blocks == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "blocklist not configured"})
			return
		}
		if c.IP == "" {
			writeBadRequest(w, "ip is required")
			return
		}
		duration := time.Duration(c.DurationSeconds) * time.Second
		if duration <= 0 {
			duration = blocklist.Block15Min
		}
		reason := c.Reason
		if reason == "" {
			reason = "manual block"
		}
		if err := s.blocks.Block(r.Context(), c.IP, duration, reason); err != nil {
			writeError(w, err)
			return
		}
		s.events.Log(security.EventIPBlocked, r, security.EventOptions{
			Severity: security.SeverityHigh,
			Details:  map[string]string{"blockedIP": c.IP, "reason": reason},
		})
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"blocked":         c.IP,
			"durationSeconds": int(duration.Seconds()),
		})

	case UnblockIPCmd:
		if s.blocks == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "blocklist not configured"})
			return
		}
		if c.IP == "" {
			writeBadRequest(w, "ip is required")
			return
		}
		if err := s.blocks.Unblock(r.Context(), c.IP); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"unblocked": c.IP})

	case IssueSessionCmd:
		if c.UserID == "" {
			writeBadRequest(w, "userId is required")
			return
		}
		ttl := time.Duration(c.TTLSeconds) * time.Second
		token, err := security.NewSessionToken(ttl, map[string]string{"userId": c.UserID})
		if err != nil {
			writeError(w, err)
			return
		}

		persisted := false
		if s.sessions != nil {
			now := time.Now().Unix()
			rec := session.Record{
				ID:        token.ID,
				UserID:    c.UserID,
				ClientIP:  security.ClientIP(r),
				CreatedAt: now,
				LastSeen:  now,
			}
			if err := s.sessions.Create(r.Context(), rec, time.Until(token.ExpiresAt)); err != nil {
				writeError(w, err)
				return
			}
			persisted = true
		}

		s.events.Log(security.EventSessionIssued, r, security.EventOptions{
			UserID:  c.UserID,
			Details: map[string]string{"tokenId": token.ID},
		})
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"session":   token,
			"persisted": persisted,
		})

	case ValidateSessionCmd:
		if s.sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session store not configured"})
			return
		}
		if c.TokenID == "" {
			writeBadRequest(w, "tokenId is required")
			return
		}
		rec, err := s.sessions.Get(r.Context(), c.TokenID)
		if err != nil {
			writeError(w, err)
			return
		}
		if rec == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: "unknown or expired session token"})
			return
		}
		// A successful lookup refreshes the sliding expiry.
		if err := s.sessions.Touch(r.Context(), c.TokenID, session.DefaultTTL); err != nil {
			slog.Warn("session touch failed", "token_id", c.TokenID, "err", err)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"valid":   true,
			"session": rec,
		})

	case RevokeSessionCmd:
		if s.sessions == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "session store not configured"})
			return
		}
		if c.TokenID == "" {
			writeBadRequest(w, "tokenId is required")
			return
		}
		rec, err := s.sessions.Get(r.Context(), c.TokenID)
		if err != nil {
			writeError(w, err)
			return
		}
		if rec == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Details: "unknown or expired session token"})
			return
		}
		if err := s.sessions.Revoke(r.Context(), c.TokenID); err != nil {
			writeError(w, err)
			return
		}
		s.events.Log(security.EventSessionRevoked, r, security.EventOptions{
			UserID:  rec.UserID,
			Details: map[string]string{"tokenId": c.TokenID},
		})
		writeJSON(w, http.StatusOK, map[string]interface{}{"revoked": c.TokenID})
	}
}

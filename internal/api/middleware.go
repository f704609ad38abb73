package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/aegis/trust-service/internal/metrics"
	"github.com/aegis/trust-service/internal/ratelimit"
	"github.com/aegis/trust-service/internal/security"
)

// instrument records request latency per route and method.
func (s *Server) instrument(route, method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		metrics.RequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// rateLimit enforces a fixed-window rule keyed by client IP. Denied requests
// get a 429 with a Retry-After header and leave a trace in the audit trail.
func (s *Server) rateLimit(rule ratelimit.Rule, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.ClientIP(r)
		decision := s.limiter.CheckContext(r.Context(), ip, rule)
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			s.events.Log(security.EventRateLimited, r, security.EventOptions{
				Severity: security.SeverityMedium,
				Details:  map[string]string{"rule": rule.Name},
			})

			// Denials count as offenses so persistent abusers graduate from
			// 429s to an outright block.
			if s.blocks != nil {
				blocked, duration, err := s.blocks.RecordOffense(r.Context(), ip, "rate limit abuse: "+rule.Name)
				switch {
				case err != nil:
					slog.Warn("offense record failed", "ip", ip, "err", err)
				case blocked:
					s.events.Log(security.EventIPBlocked, r, security.EventOptions{
						Severity: security.SeverityHigh,
						Details: map[string]string{
							"blockedIP":       ip,
							"reason":          "rate limit abuse: " + rule.Name,
							"durationSeconds": strconv.Itoa(int(duration.Seconds())),
						},
					})
				}
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, struct {
				Error      string `json:"error"`
				RetryAfter int    `json:"retryAfter"`
			}{
				Error:      "rate limit exceeded",
				RetryAfter: retryAfter,
			})
			return
		}
		next(w, r)
	}
}

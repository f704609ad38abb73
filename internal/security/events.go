// Package security records authentication and abuse-relevant events into a
// bounded in-memory audit trail and derives short-term threat signals from
// it. The trail is per-process and intentionally non-durable: it exists for
// operational visibility, with best-effort archival handled elsewhere.
package security

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aegis/trust-service/internal/metrics"
)

// EventType identifies the kind of security event.
type EventType string

const (
	EventLoginSuccess   EventType = "LOGIN_SUCCESS"
	EventLoginFailure   EventType = "LOGIN_FAILURE"
	EventSignup         EventType = "SIGNUP"
	EventPasswordReset  EventType = "PASSWORD_RESET"
	EventSessionIssued  EventType = "SESSION_ISSUED"
	EventSessionRevoked EventType = "SESSION_REVOKED"
	EventRateLimited    EventType = "RATE_LIMIT_EXCEEDED"
	EventIPBlocked      EventType = "IP_BLOCKED"
	EventUnauthorized   EventType = "UNAUTHORIZED_ACCESS"
	EventSuspicious     EventType = "SUSPICIOUS_ACTIVITY"
)

// Severity ranks how alarming an event is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one audit record. Entries are append-only and never updated.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"event"`
	ClientIP  string            `json:"clientIP"`
	UserAgent string            `json:"userAgent,omitempty"`
	Email     string            `json:"email,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	Severity  Severity          `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

// EventOptions carries the optional fields of a logged event.
type EventOptions struct {
	Email    string
	UserID   string
	Severity Severity
	Details  map[string]string
}

// AlertPublisher fans CRITICAL events out to external consumers.
// Best-effort: failures are logged and swallowed.
type AlertPublisher interface {
	PublishSecurityAlert(data []byte) error
}

// MaxEvents bounds the audit trail; the oldest entry is evicted first once
// the bound is exceeded.
const MaxEvents = 1000

// suspiciousThreshold is the number of failed-auth events for one
// (IP, email) pair within the detection window that flags the pair.
const suspiciousThreshold = 3

// DefaultSuspicionWindow is the trailing window used by DetectSuspicious
// when the caller does not supply one.
const DefaultSuspicionWindow = 5 * time.Minute

// EventLog is a bounded FIFO audit trail. It is goroutine-safe; reads return
// snapshots so dashboard polling never observes a partially written entry.
type EventLog struct {
	mu        sync.RWMutex
	events    []Event
	listeners []func(Event)
	alerts    AlertPublisher // optional
	now       func() time.Time
}

// NewEventLog creates an empty EventLog. alerts may be nil.
func NewEventLog(alerts AlertPublisher) *EventLog {
	return &EventLog{alerts: alerts, now: time.Now}
}

// Subscribe registers a listener invoked synchronously for every logged
// event. Listeners must not block; they exist for in-process fan-out such as
// the dashboard stream.
func (l *EventLog) Subscribe(fn func(Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Log appends an event extracted from the request context. Missing severity
// defaults to LOW. CRITICAL events additionally emit an alert-level log line
// and a best-effort publish so operational tooling sees them immediately.
func (l *EventLog) Log(eventType EventType, r *http.Request, opts EventOptions) Event {
	if opts.Severity == "" {
		opts.Severity = SeverityLow
	}

	ev := Event{
		Timestamp: l.now(),
		Type:      eventType,
		ClientIP:  ClientIP(r),
		Severity:  opts.Severity,
		Email:     opts.Email,
		UserID:    opts.UserID,
		Details:   opts.Details,
	}
	if r != nil {
		ev.UserAgent = r.UserAgent()
	}

	l.mu.Lock()
	l.events = append(l.events, ev)
	if len(l.events) > MaxEvents {
		l.events = l.events[1:]
	}
	listeners := l.listeners
	l.mu.Unlock()

	metrics.SecurityEvents.WithLabelValues(string(eventType), string(ev.Severity)).Inc()

	if ev.Severity == SeverityCritical {
		slog.Error("SECURITY ALERT",
			"event", string(ev.Type), "client_ip", ev.ClientIP,
			"email", ev.Email, "user_id", ev.UserID)
		l.publishAlert(ev)
	}

	for _, fn := range listeners {
		fn(ev)
	}
	return ev
}

func (l *EventLog) publishAlert(ev Event) {
	if l.alerts == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("alert marshal failed", "err", err)
		return
	}
	if err := l.alerts.PublishSecurityAlert(data); err != nil {
		slog.Warn("alert publish failed", "err", err)
	}
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (l *EventLog) Recent(limit int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, len(l.events))
	copy(out, l.events)
	// Stored oldest-first; reverse for newest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// SuspicionReport is the outcome of a suspicious-activity check.
type SuspicionReport struct {
	Suspicious     bool   `json:"isSuspicious"`
	Reason         string `json:"reason,omitempty"`
	RecentAttempts int    `json:"recentAttempts"`
}

// DetectSuspicious counts failed-authentication events matching both
// clientIP and email within the trailing window and flags the pair at
// suspiciousThreshold attempts. The check is per (IP, email) pair: an
// attacker rotating either dimension is caught by the aggregate metrics,
// not by this function.
func (l *EventLog) DetectSuspicious(clientIP, email string, window time.Duration) SuspicionReport {
	if window <= 0 {
		window = DefaultSuspicionWindow
	}
	cutoff := l.now().Add(-window)

	l.mu.RLock()
	defer l.mu.RUnlock()

	attempts := 0
	for _, ev := range l.events {
		if ev.Type != EventLoginFailure {
			continue
		}
		if ev.ClientIP != clientIP || ev.Email != email {
			continue
		}
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		attempts++
	}

	report := SuspicionReport{RecentAttempts: attempts}
	if attempts >= suspiciousThreshold {
		report.Suspicious = true
		report.Reason = "repeated authentication failures"
	}
	return report
}

// IPCount pairs a client IP with its event count.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// Metrics aggregates the trailing 24 hours of the audit trail.
type Metrics struct {
	Window             string            `json:"window"`
	TotalEvents        int               `json:"totalEvents"`
	ByType             map[EventType]int `json:"byType"`
	BySeverity         map[Severity]int  `json:"bySeverity"`
	TopIPs             []IPCount         `json:"topIPs"`
	SuspiciousActivity int               `json:"suspiciousActivity"`
}

// Metrics computes last-24h aggregates: counts by type and severity, the
// top-10 IPs by event count, and the number of HIGH or CRITICAL events.
func (l *EventLog) Metrics() Metrics {
	cutoff := l.now().Add(-24 * time.Hour)

	l.mu.RLock()
	defer l.mu.RUnlock()

	m := Metrics{
		Window:     "24h",
		ByType:     make(map[EventType]int),
		BySeverity: make(map[Severity]int),
	}
	ipCounts := make(map[string]int)

	for _, ev := range l.events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		m.TotalEvents++
		m.ByType[ev.Type]++
		m.BySeverity[ev.Severity]++
		ipCounts[ev.ClientIP]++
		if ev.Severity == SeverityHigh || ev.Severity == SeverityCritical {
			m.SuspiciousActivity++
		}
	}

	for ip, count := range ipCounts {
		m.TopIPs = append(m.TopIPs, IPCount{IP: ip, Count: count})
	}
	sort.Slice(m.TopIPs, func(i, j int) bool {
		if m.TopIPs[i].Count != m.TopIPs[j].Count {
			return m.TopIPs[i].Count > m.TopIPs[j].Count
		}
		return m.TopIPs[i].IP < m.TopIPs[j].IP
	})
	if len(m.TopIPs) > 10 {
		m.TopIPs = m.TopIPs[:10]
	}
	return m
}

// ClientIP extracts the client address from proxy headers, preferring the
// first hop of X-Forwarded-For, then X-Real-IP, then X-Vercel-Forwarded-For.
// Returns "unknown" when no header identifies the client.
func ClientIP(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Vercel-Forwarded-For")); ip != "" {
		return ip
	}
	return "unknown"
}

// Package metrics provides Prometheus instrumentation for the trust service.
// It exposes counters for moderation verdicts and security events, gauges for
// queue depth, and histograms for request latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ModerationVerdicts counts classification outcomes, labeled by verdict:
	// "approve", "review", or "reject".
	ModerationVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_moderation_verdicts_total",
		Help: "Total number of content classification verdicts",
	}, []string{"verdict"})

	// ModerationActions counts recorded moderation actions, labeled by kind
	// ("approved", "rejected", "flagged", "edited") and origin ("auto", "manual").
	ModerationActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_moderation_actions_total",
		Help: "Total number of moderation actions recorded",
	}, []string{"kind", "origin"})

	// PendingReviews tracks the current number of items awaiting human review.
	PendingReviews = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trust_pending_reviews",
		Help: "Current number of content items awaiting human review",
	})

	// SecurityEvents counts security audit events, labeled by type and severity.
	SecurityEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_security_events_total",
		Help: "Total number of security events recorded",
	}, []string{"type", "severity"})

	// RateLimitDenials counts requests denied by the rate limiter, labeled by rule.
	RateLimitDenials = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_rate_limit_denials_total",
		Help: "Total number of requests denied by the rate limiter",
	}, []string{"rule"})

	// ArchiveFailures counts best-effort persistence failures. These never fail
	// the primary operation, so the counter is the main visibility into them.
	ArchiveFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trust_archive_failures_total",
		Help: "Total number of best-effort archive write failures",
	}, []string{"op"})

	// RequestDuration records HTTP handler latency in seconds.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trust_http_request_duration_seconds",
		Help:    "HTTP request handling latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"route", "method"})
)

func init() {
	prometheus.MustRegister(
		ModerationVerdicts,
		ModerationActions,
		PendingReviews,
		SecurityEvents,
		RateLimitDenials,
		ArchiveFailures,
		RequestDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package messaging provides a NATS client wrapper for fanning moderation
// decisions and security alerts out to downstream consumers (dashboards,
// notification workers). This service only publishes; consumers subscribe to
// the subjects below from their own processes.
package messaging

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used by the trust service.
const (
	SubjectSecurityAlert      = "alerts.security"
	SubjectModerationDecision = "moderation.decision" // + .<kind>
)

// NATSClient wraps the NATS connection with helper methods for publishing.
type NATSClient struct {
	conn *nats.Conn
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "trustd",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			} else {
				slog.Info("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("nats connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	slog.Info("nats connected", "url", nc.ConnectedUrl())

	return &NATSClient{conn: nc}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// PublishSecurityAlert publishes a critical security event to the alert
// subject.
func (c *NATSClient) PublishSecurityAlert(data []byte) error {
	return c.Publish(SubjectSecurityAlert, data)
}

// PublishModerationDecision publishes a recorded moderation action under
// moderation.decision.<kind> so consumers can filter by outcome.
func (c *NATSClient) PublishModerationDecision(kind string, data []byte) error {
	return c.Publish(SubjectModerationDecision+"."+kind, data)
}

// Close drains the NATS connection so buffered publishes flush before the
// process exits.
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		slog.Warn("nats connection drain failed", "err", err)
	}
	slog.Info("nats client closed")
}

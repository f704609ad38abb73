package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/aegis/trust-service/internal/security"
)

// streamWriteTimeout bounds a broadcast write to one client so a stalled
// dashboard cannot back up the audit trail's listener.
const streamWriteTimeout = 5 * time.Second

// Stream pushes security events to connected dashboard clients over
// WebSocket. One reader goroutine per connection watches for close frames;
// writes happen on the audit trail's listener path under the stream mutex.
type Stream struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewStream creates a Stream subscribed to the given event log.
func NewStream(events *security.EventLog) *Stream {
	s := &Stream{conns: make(map[net.Conn]struct{})}
	events.Subscribe(s.broadcast)
	return s
}

// Count returns the number of connected clients.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// handleUpgrade upgrades the HTTP request to a WebSocket connection and
// registers it for event fan-out.
func (s *Stream) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("stream upgrade failed", "client_ip", security.ClientIP(r), "err", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	total := len(s.conns)
	s.mu.Unlock()

	slog.Info("stream client connected", "client_ip", security.ClientIP(r), "total", total)
	go s.reader(conn)
}

// reader drains incoming frames so control frames (ping, close) are handled;
// clients are not expected to send data. Any read error removes the client.
func (s *Stream) reader(conn net.Conn) {
	for {
		if _, _, err := wsutil.ReadClientData(conn); err != nil {
			s.remove(conn)
			return
		}
	}
}

// broadcast sends one event to every connected client. A failed write drops
// that client; the event log itself is unaffected.
func (s *Stream) broadcast(ev security.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("stream event marshal failed", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.conns {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := wsutil.WriteServerMessage(conn, ws.OpText, data); err != nil {
			delete(s.conns, conn)
			conn.Close()
			continue
		}
		_ = conn.SetWriteDeadline(time.Time{})
	}
}

func (s *Stream) remove(conn net.Conn) {
	s.mu.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		conn.Close()
	}
	s.mu.Unlock()
}

// Close disconnects every client. Used during graceful shutdown.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
		delete(s.conns, conn)
	}
}

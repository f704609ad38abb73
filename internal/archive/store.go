// Package archive provides PostgreSQL-backed persistence for moderation
// actions and security events. All writes are issued best-effort by the
// callers: a failed archive write warns and increments a counter but never
// fails the in-memory operation that triggered it.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/aegis/trust-service/internal/actions"
	"github.com/aegis/trust-service/internal/security"
)

// Store persists moderation outcomes in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the given DSN and verifies the
// connection before returning.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveAction inserts a moderation action into the durable ledger.
func (s *Store) SaveAction(ctx context.Context, a actions.Action) error {
	const query = `
		INSERT INTO moderation_actions
			(id, content_id, moderator_id, kind, reason, original_content, moderated_content, is_automated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.ContentID,
		nullable(a.ModeratorID),
		string(a.Kind),
		a.Reason,
		a.OriginalContent,
		nullable(a.ModeratedContent),
		a.Automated,
		a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archive: insert action: %w", err)
	}
	return nil
}

// UpdateContentStatus upserts the latest moderation status for a content item.
func (s *Store) UpdateContentStatus(ctx context.Context, contentID, status string) error {
	const query = `
		INSERT INTO content_status (content_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (content_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, contentID, status); err != nil {
		return fmt.Errorf("archive: update content status: %w", err)
	}
	return nil
}

// SaveEvent inserts a security event into the durable audit table. Details
// are marshalled to JSONB.
func (s *Store) SaveEvent(ctx context.Context, ev security.Event) error {
	var detailsJSON []byte
	if len(ev.Details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("archive: marshal details: %w", err)
		}
	}

	const query = `
		INSERT INTO security_events
			(event_type, client_ip, user_agent, email, user_id, severity, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		string(ev.Type),
		ev.ClientIP,
		nullable(ev.UserAgent),
		nullable(ev.Email),
		nullable(ev.UserID),
		string(ev.Severity),
		detailsJSON,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("archive: insert event: %w", err)
	}
	return nil
}

// CountRecentEvents returns the number of archived events of one type for a
// client IP within the given time window. Useful for longer-horizon abuse
// review than the in-memory trail covers.
func (s *Store) CountRecentEvents(ctx context.Context, eventType, clientIP string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM security_events
		WHERE event_type = $1
		  AND client_ip = $2
		  AND created_at >= NOW() - $3::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, eventType, clientIP, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("archive: count recent events: %w", err)
	}
	return count, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

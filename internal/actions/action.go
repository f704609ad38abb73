// Package actions maintains the moderation action ledger: an append-only log
// of every moderation decision (automated and manual) plus the queue of
// content items awaiting human review.
package actions

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aegis/trust-service/internal/moderation"
)

// Kind identifies what a moderation action did to the content.
type Kind string

const (
	KindApproved Kind = "approved"
	KindRejected Kind = "rejected"
	KindFlagged  Kind = "flagged"
	KindEdited   Kind = "edited"
)

// ErrNotFound is returned when an operation references a content ID that is
// not in the pending-review queue.
var ErrNotFound = errors.New("actions: content not pending review")

// Action is one immutable entry in the moderation ledger. Entries are
// created exactly once and never mutated.
type Action struct {
	ID               string    `json:"id"`
	ContentID        string    `json:"contentId"`
	ModeratorID      string    `json:"moderatorId,omitempty"`
	Kind             Kind      `json:"action"`
	Reason           string    `json:"reason"`
	OriginalContent  string    `json:"originalContent"`
	ModeratedContent string    `json:"moderatedContent,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Automated        bool      `json:"isAutomated"`
}

// newActionID returns a ULID: millisecond timestamp prefix plus random
// suffix, so IDs sort roughly by creation time and never collide.
func newActionID() string {
	return ulid.Make().String()
}

// PendingReview is a content item held for a human decision, together with
// the automated result that put it there.
type PendingReview struct {
	Item     moderation.ContentItem `json:"content"`
	Result   moderation.Result      `json:"moderationResult"`
	QueuedAt time.Time              `json:"queuedAt"`
}

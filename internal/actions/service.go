package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aegis/trust-service/internal/metrics"
	"github.com/aegis/trust-service/internal/moderation"
)

// Archiver persists moderation outcomes to a durable store. All calls are
// best-effort: the Service logs failures as warnings and never propagates
// them, so the in-memory ledger stays authoritative for the request.
type Archiver interface {
	SaveAction(ctx context.Context, a Action) error
	UpdateContentStatus(ctx context.Context, contentID, status string) error
}

// Publisher fans recorded decisions out to interested consumers (message
// bus, dashboards). Best-effort, same contract as Archiver.
type Publisher interface {
	PublishModerationDecision(kind string, data []byte) error
}

// Service ties the classifier to the ledger: auto-classify on ingest, then
// optionally human-resolve items held for review.
type Service struct {
	moderator *moderation.Moderator
	store     *Store
	archive   Archiver  // optional
	publisher Publisher // optional
	now       func() time.Time
}

// NewService creates a Service. archive and publisher may be nil, in which
// case the service runs purely in-memory.
func NewService(m *moderation.Moderator, store *Store, archive Archiver, publisher Publisher) *Service {
	return &Service{
		moderator: m,
		store:     store,
		archive:   archive,
		publisher: publisher,
		now:       time.Now,
	}
}

// Outcome is the result of submitting one content item for moderation.
// Success reports that the submission itself was processed; it says nothing
// about the verdict. Callers that fail before classification never see an
// Outcome at all.
type Outcome struct {
	Success        bool              `json:"success"`
	Result         moderation.Result `json:"moderationResult"`
	Action         Action            `json:"action"`
	RequiresReview bool              `json:"requiresReview"`
}

// BatchOutcome is the result of submitting a batch.
type BatchOutcome struct {
	Results        map[string]moderation.Result `json:"results"`
	Stats          moderation.Stats             `json:"stats"`
	PendingReviews int                          `json:"pendingReviews"`
}

// Moderate classifies an item, records the automated action, and queues the
// item for human review when the verdict calls for it.
func (s *Service) Moderate(ctx context.Context, item moderation.ContentItem) (Outcome, error) {
	result, err := s.moderator.Moderate(item)
	if err != nil {
		return Outcome{}, err
	}
	return s.record(ctx, item, result), nil
}

// ModerateBatch classifies each item independently and queues every
// review-verdict item. Per-item actions are recorded just as in Moderate.
func (s *Service) ModerateBatch(ctx context.Context, items []moderation.ContentItem) BatchOutcome {
	results := s.moderator.ModerateBatch(items)

	flat := make([]moderation.Result, 0, len(results))
	pending := 0
	for _, item := range items {
		result, ok := results[item.ID]
		if !ok {
			continue
		}
		s.record(ctx, item, result)
		flat = append(flat, result)
		if result.Verdict == moderation.VerdictReview {
			pending++
		}
	}

	return BatchOutcome{
		Results:        results,
		Stats:          moderation.Summarize(flat),
		PendingReviews: pending,
	}
}

// record appends the automated action, updates the pending queue, and kicks
// off best-effort archival and fan-out.
func (s *Service) record(ctx context.Context, item moderation.ContentItem, result moderation.Result) Outcome {
	now := s.now()
	kind := KindApproved
	reason := "passed automated checks"
	switch result.Verdict {
	case moderation.VerdictReject:
		kind = KindRejected
		reason = fmt.Sprintf("automated rejection: %v", result.MatchedRules)
	case moderation.VerdictReview:
		kind = KindFlagged
		reason = fmt.Sprintf("held for review: %v", result.MatchedRules)
	}

	action := Action{
		ID:              newActionID(),
		ContentID:       item.ID,
		Kind:            kind,
		Reason:          reason,
		OriginalContent: item.Content,
		Timestamp:       now,
		Automated:       true,
	}
	if result.ModeratedContent != item.Content {
		action.ModeratedContent = result.ModeratedContent
	}

	s.store.Append(action)
	metrics.ModerationVerdicts.WithLabelValues(string(result.Verdict)).Inc()
	metrics.ModerationActions.WithLabelValues(string(kind), "auto").Inc()

	if result.Verdict == moderation.VerdictReview {
		s.store.AddPending(PendingReview{Item: item, Result: result, QueuedAt: now})
		metrics.PendingReviews.Set(float64(s.store.PendingCount()))
	}

	s.persist(ctx, action)
	s.publish(action)

	return Outcome{
		Success:        true,
		Result:         result,
		Action:         action,
		RequiresReview: result.Verdict == moderation.VerdictReview,
	}
}

// Flag records a manual flag on a pending item. The item stays in the
// review queue: flagging asks for a second opinion, it does not resolve.
func (s *Service) Flag(ctx context.Context, contentID, moderatorID, reason string) (Action, error) {
	pending, ok := s.store.GetPending(contentID)
	if !ok {
		return Action{}, ErrNotFound
	}

	action := Action{
		ID:              newActionID(),
		ContentID:       contentID,
		ModeratorID:     moderatorID,
		Kind:            KindFlagged,
		Reason:          reason,
		OriginalContent: pending.Item.Content,
		Timestamp:       s.now(),
	}
	s.store.Append(action)
	metrics.ModerationActions.WithLabelValues(string(KindFlagged), "manual").Inc()

	s.persist(ctx, action)
	s.publish(action)
	return action, nil
}

// Approve resolves a pending item as acceptable and removes it from the
// review queue.
func (s *Service) Approve(ctx context.Context, contentID, moderatorID, reason string) (Action, error) {
	return s.resolve(ctx, contentID, moderatorID, reason, KindApproved, "approved")
}

// Reject resolves a pending item as unacceptable and removes it from the
// review queue.
func (s *Service) Reject(ctx context.Context, contentID, moderatorID, reason string) (Action, error) {
	return s.resolve(ctx, contentID, moderatorID, reason, KindRejected, "rejected")
}

func (s *Service) resolve(ctx context.Context, contentID, moderatorID, reason string, kind Kind, status string) (Action, error) {
	pending, ok := s.store.GetPending(contentID)
	if !ok {
		return Action{}, ErrNotFound
	}

	action := Action{
		ID:              newActionID(),
		ContentID:       contentID,
		ModeratorID:     moderatorID,
		Kind:            kind,
		Reason:          reason,
		OriginalContent: pending.Item.Content,
		Timestamp:       s.now(),
	}
	if pending.Result.ModeratedContent != pending.Item.Content {
		action.ModeratedContent = pending.Result.ModeratedContent
	}

	s.store.Append(action)
	s.store.RemovePending(contentID)
	metrics.ModerationActions.WithLabelValues(string(kind), "manual").Inc()
	metrics.PendingReviews.Set(float64(s.store.PendingCount()))

	s.persist(ctx, action)
	s.publish(action)

	if s.archive != nil {
		if err := s.archive.UpdateContentStatus(ctx, contentID, status); err != nil {
			slog.Warn("content status update failed", "content_id", contentID, "err", err)
			metrics.ArchiveFailures.WithLabelValues("update_status").Inc()
		}
	}
	return action, nil
}

// PendingReviews returns the review backlog, oldest first.
func (s *Service) PendingReviews(limit int) []PendingReview {
	return s.store.Pending(limit)
}

// Actions returns ledger entries, newest first, optionally filtered by
// moderator.
func (s *Service) Actions(limit int, moderatorID string) []Action {
	return s.store.Actions(limit, moderatorID)
}

// Stats returns windowed aggregates over the ledger.
func (s *Service) Stats() LedgerStats {
	return s.store.Stats(s.now())
}

// persist archives an action best-effort. Failure is a warning, never an
// error: the in-memory ledger remains the source of truth for the request.
func (s *Service) persist(ctx context.Context, a Action) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveAction(ctx, a); err != nil {
		slog.Warn("action archive failed", "action_id", a.ID, "content_id", a.ContentID, "err", err)
		metrics.ArchiveFailures.WithLabelValues("save_action").Inc()
	}
}

func (s *Service) publish(a Action) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		slog.Warn("action marshal for publish failed", "action_id", a.ID, "err", err)
		return
	}
	if err := s.publisher.PublishModerationDecision(string(a.Kind), data); err != nil {
		slog.Warn("decision publish failed", "action_id", a.ID, "err", err)
	}
}

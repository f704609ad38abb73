package actions

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxActions bounds the in-memory ledger. The ledger is the hot copy
// for dashboards; the durable record is the best-effort archive, so capping
// memory here loses nothing that matters.
const DefaultMaxActions = 10000

// Store holds the action ledger and the pending-review queue for one
// process. It is goroutine-safe; reads return copies so callers never
// observe a partially written entry.
type Store struct {
	mu         sync.RWMutex
	actions    []Action
	maxActions int
	pending    map[string]PendingReview
}

// NewStore creates an empty Store with the default retention bound.
func NewStore() *Store {
	return NewStoreWithCapacity(DefaultMaxActions)
}

// NewStoreWithCapacity creates an empty Store retaining at most capacity
// actions; the oldest entries are evicted first once the bound is hit.
func NewStoreWithCapacity(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultMaxActions
	}
	return &Store{
		maxActions: capacity,
		pending:    make(map[string]PendingReview),
	}
}

// Append adds an action to the ledger, evicting the oldest entry when the
// retention bound is exceeded.
func (s *Store) Append(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, a)
	if len(s.actions) > s.maxActions {
		s.actions = s.actions[1:]
	}
}

// Actions returns up to limit actions, newest first. A moderatorID filters
// to manual actions by that moderator; empty means no filter. limit <= 0
// means no limit.
func (s *Store) Actions(limit int, moderatorID string) []Action {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Action, 0, len(s.actions))
	for _, a := range s.actions {
		if moderatorID != "" && a.ModeratorID != moderatorID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len returns the number of actions currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.actions)
}

// AddPending queues a content item for human review, replacing any existing
// entry for the same content ID.
func (s *Store) AddPending(p PendingReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.Item.ID] = p
}

// GetPending returns the pending entry for a content ID, if any.
func (s *Store) GetPending(contentID string) (PendingReview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[contentID]
	return p, ok
}

// RemovePending removes a content ID from the review queue. It reports
// whether an entry was present.
func (s *Store) RemovePending(contentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[contentID]
	delete(s.pending, contentID)
	return ok
}

// Pending returns up to limit queued reviews, oldest first so moderators
// work the backlog in arrival order. limit <= 0 means no limit.
func (s *Store) Pending(limit int) []PendingReview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PendingReview, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.Before(out[j].QueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PendingCount returns the review queue depth.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Bucket holds per-kind action counts for one time window.
type Bucket struct {
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Flagged   int `json:"flagged"`
	Edited    int `json:"edited"`
	Automated int `json:"automated"`
	Total     int `json:"total"`
}

func (b *Bucket) add(a Action) {
	switch a.Kind {
	case KindApproved:
		b.Approved++
	case KindRejected:
		b.Rejected++
	case KindFlagged:
		b.Flagged++
	case KindEdited:
		b.Edited++
	}
	if a.Automated {
		b.Automated++
	}
	b.Total++
}

// LedgerStats aggregates the ledger over trailing windows.
type LedgerStats struct {
	Last24h Bucket `json:"last24h"`
	Last7d  Bucket `json:"last7d"`
	Total   Bucket `json:"total"`
	Pending int    `json:"pendingCount"`
}

// Stats computes windowed aggregates relative to now.
func (s *Store) Stats(now time.Time) LedgerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ls LedgerStats
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)

	for _, a := range s.actions {
		ls.Total.add(a)
		if a.Timestamp.After(week) {
			ls.Last7d.add(a)
		}
		if a.Timestamp.After(day) {
			ls.Last24h.add(a)
		}
	}
	ls.Pending = len(s.pending)
	return ls
}

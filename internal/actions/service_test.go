package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aegis/trust-service/internal/moderation"
)

// fakeArchive records calls and optionally fails every write.
type fakeArchive struct {
	mu       sync.Mutex
	fail     bool
	actions  []Action
	statuses map[string]string
}

func newFakeArchive(fail bool) *fakeArchive {
	return &fakeArchive{fail: fail, statuses: make(map[string]string)}
}

func (f *fakeArchive) SaveAction(_ context.Context, a Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("archive unavailable")
	}
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeArchive) UpdateContentStatus(_ context.Context, contentID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("archive unavailable")
	}
	f.statuses[contentID] = status
	return nil
}

func newTestService(t *testing.T, archive Archiver) *Service {
	t.Helper()
	mod := moderation.NewModeratorWithFilter(
		moderation.NewFilterWithTerms([]string{"badword"}, []string{"scam"}))
	return NewService(mod, NewStore(), archive, nil)
}

func TestService_ModerateApproved(t *testing.T) {
	svc := newTestService(t, nil)

	out, err := svc.Moderate(context.Background(), moderation.ContentItem{ID: "c1", Content: "lovely show"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Success {
		t.Error("processed submission must report success")
	}
	if out.RequiresReview {
		t.Error("clean content must not require review")
	}
	if out.Action.Kind != KindApproved || !out.Action.Automated {
		t.Errorf("expected automated approved action, got %+v", out.Action)
	}
	if svc.store.PendingCount() != 0 {
		t.Error("clean content must not be queued")
	}
	if got := svc.Actions(0, ""); len(got) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(got))
	}
}

func TestService_ModerateReviewQueuesPending(t *testing.T) {
	svc := newTestService(t, nil)

	out, err := svc.Moderate(context.Background(), moderation.ContentItem{ID: "c1", Content: "is this a scam"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.RequiresReview {
		t.Fatal("watch-term content must require review")
	}
	if out.Action.Kind != KindFlagged {
		t.Errorf("expected flagged action, got %q", out.Action.Kind)
	}
	if _, ok := svc.store.GetPending("c1"); !ok {
		t.Error("expected c1 in pending queue")
	}
}

func TestService_ModerateInvalidItem(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Moderate(context.Background(), moderation.ContentItem{Content: "no id"})
	if !errors.Is(err, moderation.ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
	if svc.store.Len() != 0 {
		t.Error("invalid item must not be recorded")
	}
}

// Approving a pending item removes it from the queue and appends exactly one
// manual action.
func TestService_ApproveResolvesPending(t *testing.T) {
	archive := newFakeArchive(false)
	svc := newTestService(t, archive)
	ctx := context.Background()

	if _, err := svc.Moderate(ctx, moderation.ContentItem{ID: "c1", Content: "total scam"}); err != nil {
		t.Fatalf("moderate: %v", err)
	}
	before := svc.store.Len()

	action, err := svc.Approve(ctx, "c1", "mod42", "reviewed, acceptable")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if action.Kind != KindApproved || action.Automated {
		t.Errorf("expected manual approved action, got %+v", action)
	}
	if action.ModeratorID != "mod42" {
		t.Errorf("expected moderator id recorded, got %q", action.ModeratorID)
	}
	if len(svc.PendingReviews(0)) != 0 {
		t.Error("approve must clear the pending entry")
	}
	if svc.store.Len() != before+1 {
		t.Errorf("expected exactly one new action, ledger grew by %d", svc.store.Len()-before)
	}
	if archive.statuses["c1"] != "approved" {
		t.Errorf("expected content status approved, got %q", archive.statuses["c1"])
	}
}

func TestService_RejectResolvesPending(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Moderate(ctx, moderation.ContentItem{ID: "c1", Content: "obvious scam"}); err != nil {
		t.Fatalf("moderate: %v", err)
	}

	if _, err := svc.Reject(ctx, "c1", "mod1", "confirmed spam"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, ok := svc.store.GetPending("c1"); ok {
		t.Error("reject must clear the pending entry")
	}
}

// Flagging keeps the item pending: it asks for a second opinion rather than
// resolving the review.
func TestService_FlagKeepsPending(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Moderate(ctx, moderation.ContentItem{ID: "c1", Content: "a scam maybe"}); err != nil {
		t.Fatalf("moderate: %v", err)
	}

	action, err := svc.Flag(ctx, "c1", "mod1", "needs another look")
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if action.Kind != KindFlagged {
		t.Errorf("expected flagged, got %q", action.Kind)
	}
	if _, ok := svc.store.GetPending("c1"); !ok {
		t.Error("flag must leave the item pending")
	}

	// Still resolvable afterwards.
	if _, err := svc.Approve(ctx, "c1", "mod2", "fine after all"); err != nil {
		t.Fatalf("approve after flag: %v", err)
	}
}

func TestService_ResolveUnknownContent(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for name, fn := range map[string]func() error{
		"flag":    func() error { _, err := svc.Flag(ctx, "ghost", "m", "r"); return err },
		"approve": func() error { _, err := svc.Approve(ctx, "ghost", "m", "r"); return err },
		"reject":  func() error { _, err := svc.Reject(ctx, "ghost", "m", "r"); return err },
	} {
		if err := fn(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: expected ErrNotFound, got %v", name, err)
		}
	}
}

// Archive failure is best-effort: the operation succeeds and the in-memory
// ledger is updated regardless.
func TestService_ArchiveFailureNonFatal(t *testing.T) {
	svc := newTestService(t, newFakeArchive(true))
	ctx := context.Background()

	out, err := svc.Moderate(ctx, moderation.ContentItem{ID: "c1", Content: "looks like a scam"})
	if err != nil {
		t.Fatalf("moderate must not fail on archive errors: %v", err)
	}
	if !out.RequiresReview {
		t.Error("expected review outcome")
	}
	if _, err := svc.Approve(ctx, "c1", "mod1", "ok"); err != nil {
		t.Fatalf("approve must not fail on archive errors: %v", err)
	}
	if svc.store.Len() != 2 {
		t.Errorf("expected 2 ledger entries, got %d", svc.store.Len())
	}
}

func TestService_ModerateBatch(t *testing.T) {
	svc := newTestService(t, nil)

	out := svc.ModerateBatch(context.Background(), []moderation.ContentItem{
		{ID: "a", Content: "all good here"},
		{ID: "b", Content: "badword"},
		{ID: "c", Content: "such a scam"},
	})

	if out.Stats.Total != 3 || out.Stats.Approved != 1 || out.Stats.Rejected != 1 || out.Stats.Review != 1 {
		t.Errorf("unexpected stats: %+v", out.Stats)
	}
	if out.PendingReviews != 1 {
		t.Errorf("expected 1 pending review, got %d", out.PendingReviews)
	}
	if svc.store.Len() != 3 {
		t.Errorf("expected 3 ledger entries, got %d", svc.store.Len())
	}
	if _, ok := svc.store.GetPending("c"); !ok {
		t.Error("expected item c queued for review")
	}
}

func TestService_StatsWindows(t *testing.T) {
	svc := newTestService(t, nil)
	base := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	if _, err := svc.Moderate(context.Background(), moderation.ContentItem{ID: "c1", Content: "fine"}); err != nil {
		t.Fatal(err)
	}

	st := svc.Stats()
	if st.Last24h.Total != 1 || st.Total.Total != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

package moderation

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestModerate_CleanContentApproved(t *testing.T) {
	m := NewModerator()

	res, err := m.Moderate(ContentItem{ID: "c1", Content: "really enjoyed this episode"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Approved || res.Verdict != VerdictApprove {
		t.Errorf("expected approve, got approved=%v verdict=%q", res.Approved, res.Verdict)
	}
	if res.ModeratedContent != "really enjoyed this episode" {
		t.Errorf("clean content must pass through unchanged, got %q", res.ModeratedContent)
	}
	if len(res.MatchedRules) != 0 {
		t.Errorf("expected no matched rules, got %v", res.MatchedRules)
	}
}

func TestModerate_EmptyContentTriviallyApproved(t *testing.T) {
	m := NewModerator()

	res, err := m.Moderate(ContentItem{ID: "c1", Content: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Approved || res.Verdict != VerdictApprove {
		t.Errorf("empty content must be trivially approved, got %+v", res)
	}
}

func TestModerate_MissingID(t *testing.T) {
	m := NewModerator()

	_, err := m.Moderate(ContentItem{Content: "hello"})
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestModerate_RejectMasksContent(t *testing.T) {
	m := NewModeratorWithFilter(NewFilterWithTerms([]string{"badword"}, nil))

	res, err := m.Moderate(ContentItem{ID: "c1", Content: "what a badword move"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Approved || res.Verdict != VerdictReject {
		t.Errorf("expected reject, got approved=%v verdict=%q", res.Approved, res.Verdict)
	}
	if res.ModeratedContent != "what a ******* move" {
		t.Errorf("expected masked content, got %q", res.ModeratedContent)
	}
	if len(res.MatchedRules) == 0 || res.MatchedRules[0] != "banned_term:badword" {
		t.Errorf("expected banned_term rule, got %v", res.MatchedRules)
	}
}

// Reject must dominate: content matching both a reject term and
// review-grade spam heuristics is rejected, never approved or held.
func TestModerate_SeverityOrdering(t *testing.T) {
	m := NewModeratorWithFilter(NewFilterWithTerms([]string{"badword"}, nil))

	res, err := m.Moderate(ContentItem{ID: "c1", Content: "badword FREE FREE FREE http://a.com http://b.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReject {
		t.Errorf("expected reject to dominate, got %q", res.Verdict)
	}
	if res.Approved {
		t.Error("rejected content must not be approved")
	}
	if len(res.MatchedRules) < 2 {
		t.Errorf("expected both term and spam rules reported, got %v", res.MatchedRules)
	}
}

func TestModerate_SpamEscalatesToReview(t *testing.T) {
	m := NewModerator()

	res, err := m.Moderate(ContentItem{ID: "c1", Content: "BUY NOW http://spam.com http://spam2.com FREE FREE FREE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Verdict != VerdictReview {
		t.Errorf("expected review, got %q", res.Verdict)
	}
	if res.Approved {
		t.Error("content held for review must not be approved")
	}
}

// Classification is a pure function: the same input always yields the same
// result.
func TestModerate_Idempotent(t *testing.T) {
	m := NewModerator()
	item := ContentItem{ID: "c1", Content: "some scam with WAY TOO MANY CAPITAL LETTERS HERE"}

	first, err := m.Moderate(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Moderate(item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n first=%+v\nsecond=%+v", first, second)
	}
}

// The verdict/approved invariant holds for arbitrary inputs.
func TestModerate_VerdictApprovedConsistency(t *testing.T) {
	m := NewModerator()
	inputs := []string{
		"hello there",
		"kill yourself",
		"free money for everyone",
		"AAAAAAAAAAAAAAAAAAAA",
		"http://a.com http://b.com http://c.com",
		strings.Repeat("spam ", 50),
		"",
	}

	for _, in := range inputs {
		res, err := m.Moderate(ContentItem{ID: "x", Content: in})
		if err != nil {
			t.Fatalf("Moderate(%q) error: %v", in, err)
		}
		if res.Verdict == VerdictApprove && !res.Approved {
			t.Errorf("Moderate(%q): approve verdict with Approved=false", in)
		}
		if res.Verdict == VerdictReject && res.Approved {
			t.Errorf("Moderate(%q): reject verdict with Approved=true", in)
		}
	}
}

func TestModerateBatch_Independent(t *testing.T) {
	m := NewModeratorWithFilter(NewFilterWithTerms([]string{"badword"}, nil))

	items := []ContentItem{
		{ID: "a", Content: "clean as can be"},
		{ID: "b", Content: "badword"},
		{ID: "c", Content: "FREE FREE FREE http://x.com http://y.com"},
		{Content: "no id, dropped"},
	}

	results := m.ModerateBatch(items)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results["a"].Verdict != VerdictApprove {
		t.Errorf("item a: expected approve, got %q", results["a"].Verdict)
	}
	if results["b"].Verdict != VerdictReject {
		t.Errorf("item b: expected reject, got %q", results["b"].Verdict)
	}
	if results["c"].Verdict != VerdictReview {
		t.Errorf("item c: expected review, got %q", results["c"].Verdict)
	}

	// Order independence: reversing the batch changes nothing per item.
	reversed := []ContentItem{items[2], items[1], items[0]}
	again := m.ModerateBatch(reversed)
	for id, res := range again {
		if !reflect.DeepEqual(res, results[id]) {
			t.Errorf("item %s: result changed with batch order", id)
		}
	}
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Verdict: VerdictApprove},
		{Verdict: VerdictApprove},
		{Verdict: VerdictReject},
		{Verdict: VerdictReview},
	}

	s := Summarize(results)
	if s.Approved != 2 || s.Rejected != 1 || s.Review != 1 || s.Total != 4 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

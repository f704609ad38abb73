package moderation

import (
	"fmt"
	"log/slog"
)

// Moderator classifies content items. It is a pure function of its term
// configuration and the input text: no I/O, no shared mutable state, safe
// for concurrent use.
type Moderator struct {
	filter *Filter
}

// NewModerator creates a Moderator with the built-in term lists.
func NewModerator() *Moderator {
	return &Moderator{filter: NewFilter()}
}

// NewModeratorWithFilter creates a Moderator using a custom Filter.
func NewModeratorWithFilter(f *Filter) *Moderator {
	return &Moderator{filter: f}
}

// Moderate classifies a single content item.
//
// An item with an empty ID returns ErrInvalidContent. Empty content is
// trivially approved since no rule can trigger on it. When several rules
// match, the most severe verdict wins (reject > review > approve), and every
// matched rule is reported.
//
// Moderate never panics: an unexpected failure inside a rule degrades to a
// review verdict so the content is held for a human rather than approved or
// dropped by a broken rule.
func (m *Moderator) Moderate(item ContentItem) (result Result, err error) {
	if item.ID == "" {
		return Result{}, ErrInvalidContent
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("rule evaluation failed, holding content for review",
				"content_id", item.ID, "panic", r)
			result = Result{
				Approved:         false,
				Verdict:          VerdictReview,
				ModeratedContent: item.Content,
				MatchedRules:     []string{"rule_failure"},
			}
			err = nil
		}
	}()

	if item.Content == "" {
		return Result{Approved: true, Verdict: VerdictApprove}, nil
	}

	verdict := VerdictApprove
	var rules []string
	moderated := item.Content

	if tm := m.filter.Check(item.Content); tm.Matched {
		verdict = tm.Verdict
		rules = append(rules, fmt.Sprintf("banned_term:%s", tm.Term))
		moderated = m.filter.Mask(item.Content)
	}

	if spam := checkSpamPatterns(item.Content); len(spam) > 0 {
		if VerdictReview.severity() > verdict.severity() {
			verdict = VerdictReview
		}
		rules = append(rules, spam...)
	}

	return Result{
		Approved:         verdict == VerdictApprove,
		Verdict:          verdict,
		ModeratedContent: moderated,
		MatchedRules:     rules,
	}, nil
}

// ModerateBatch classifies each item independently and returns results keyed
// by content ID. Items are isolated: one item's verdict never influences
// another's. Items without an ID are skipped, since there is nothing to key
// their result on; the rest of the batch still runs.
func (m *Moderator) ModerateBatch(items []ContentItem) map[string]Result {
	results := make(map[string]Result, len(items))
	for _, item := range items {
		res, err := m.Moderate(item)
		if err != nil {
			continue // unidentifiable item, nothing to key the result on
		}
		results[item.ID] = res
	}
	return results
}

// Summarize aggregates verdict counts over a set of results.
func Summarize(results []Result) Stats {
	s := Stats{Total: len(results)}
	for _, r := range results {
		switch r.Verdict {
		case VerdictReject:
			s.Rejected++
		case VerdictReview:
			s.Review++
		default:
			s.Approved++
		}
	}
	return s
}

// Package moderation provides rule-based classification of user-generated
// content. It screens comments and reviews for prohibited terms and spam
// patterns and produces a tri-state verdict (approve, review, reject).
package moderation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// defaultRejectTerms is the built-in blocklist. A match on any of these
// yields a reject verdict and the term is masked in the moderated content.
var defaultRejectTerms = []string{
	"nigger", "faggot", "kike", "spic", "chink",
	"kill yourself", "kys", "go die",
}

// defaultWatchTerms are borderline terms that escalate to human review
// rather than an outright reject.
var defaultWatchTerms = []string{
	"scam", "hack", "crack", "onlyfans", "gambling",
	"free money", "get rich",
}

// Filter matches content against tiered term lists. Single words are matched
// on token boundaries (so "class" never matches "ass"); multi-word phrases
// are matched as whole-word subsequences. Matching is case-insensitive and a
// second pass runs with leetspeak substitutions normalized out.
type Filter struct {
	rejectWords   map[string]struct{}
	rejectPhrases []string
	watchWords    map[string]struct{}
	watchPhrases  []string
}

// TermMatch describes a blocklist hit.
type TermMatch struct {
	Matched bool
	Verdict Verdict
	Term    string
}

// NewFilter creates a Filter with the built-in term lists.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultRejectTerms, defaultWatchTerms)
}

// NewFilterWithTerms creates a Filter from explicit term lists. Empty and
// whitespace-only entries are discarded. Entries containing spaces are
// treated as phrases.
func NewFilterWithTerms(reject, watch []string) *Filter {
	f := &Filter{
		rejectWords: make(map[string]struct{}),
		watchWords:  make(map[string]struct{}),
	}
	for _, t := range reject {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			f.rejectPhrases = append(f.rejectPhrases, t)
		} else {
			f.rejectWords[t] = struct{}{}
		}
	}
	for _, t := range watch {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			f.watchPhrases = append(f.watchPhrases, t)
		} else {
			f.watchWords[t] = struct{}{}
		}
	}
	return f
}

// Check matches text against both term tiers and returns the hit with the
// most severe verdict. The zero TermMatch means no term matched.
func (f *Filter) Check(text string) TermMatch {
	lower := strings.ToLower(text)

	// Two tokenizations: one splitting on punctuation (plain words), one
	// keeping leet characters inside tokens so "b@dw0rd" survives as a
	// single token for normalization.
	plain := tokenizePlain(lower)
	leet := make([]string, 0, len(plain))
	for _, tok := range tokenizeLeet(lower) {
		leet = append(leet, normalizeLeet(tok))
	}

	if term, ok := f.matchWords(f.rejectWords, plain, leet); ok {
		return TermMatch{Matched: true, Verdict: VerdictReject, Term: term}
	}
	if term, ok := matchPhrases(f.rejectPhrases, plain, leet); ok {
		return TermMatch{Matched: true, Verdict: VerdictReject, Term: term}
	}
	if term, ok := f.matchWords(f.watchWords, plain, leet); ok {
		return TermMatch{Matched: true, Verdict: VerdictReview, Term: term}
	}
	if term, ok := matchPhrases(f.watchPhrases, plain, leet); ok {
		return TermMatch{Matched: true, Verdict: VerdictReview, Term: term}
	}
	return TermMatch{}
}

// Mask replaces every blocklisted token in text with asterisks, one per
// character. Only token-boundary matches are masked, mirroring Check.
func (f *Filter) Mask(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	isWordRune := func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}
	flush := func(tok string) {
		lower := strings.ToLower(tok)
		trimmed := strings.TrimFunc(lower, func(r rune) bool { return !isWordRune(r) })
		hit := false
		for _, cand := range []string{lower, normalizeLeet(lower), trimmed, normalizeLeet(trimmed)} {
			if _, ok := f.rejectWords[cand]; ok {
				hit = true
				break
			}
			if _, ok := f.watchWords[cand]; ok {
				hit = true
				break
			}
		}
		if hit {
			b.WriteString(strings.Repeat("*", utf8.RuneCountInString(tok)))
		} else {
			b.WriteString(tok)
		}
	}

	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				flush(text[start:i])
				start = -1
			}
			b.WriteRune(r)
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		flush(text[start:])
	}
	return b.String()
}

func (f *Filter) matchWords(words map[string]struct{}, plain, leet []string) (string, bool) {
	for _, tok := range plain {
		if _, ok := words[tok]; ok {
			return tok, true
		}
	}
	for _, tok := range leet {
		if _, ok := words[tok]; ok {
			return tok, true
		}
	}
	return "", false
}

func matchPhrases(phrases []string, plain, leet []string) (string, bool) {
	for _, p := range phrases {
		if containsPhrase(plain, p) || containsPhrase(leet, p) {
			return p, true
		}
	}
	return "", false
}

// containsPhrase reports whether the phrase's words appear consecutively in
// tokens. Phrase words must match whole tokens, so "kill yourself" does not
// match "kill yourselves".
func containsPhrase(tokens []string, phrase string) bool {
	want := strings.Fields(phrase)
	if len(want) == 0 || len(tokens) < len(want) {
		return false
	}
outer:
	for i := 0; i+len(want) <= len(tokens); i++ {
		for j, w := range want {
			if tokens[i+j] != w {
				continue outer
			}
		}
		return true
	}
	return false
}

// leetMap maps common character substitutions back to their letters.
var leetMap = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't',
	'@': 'a', '$': 's', '!': 'i',
}

// normalizeLeet replaces leetspeak substitutions in a token with the letters
// they stand in for.
func normalizeLeet(token string) string {
	var b strings.Builder
	b.Grow(len(token))
	for _, r := range token {
		if sub, ok := leetMap[r]; ok {
			b.WriteRune(sub)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// tokenizePlain splits text into lowercase word tokens, treating any
// non-letter, non-digit rune as a delimiter.
func tokenizePlain(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenizeLeet splits text on whitespace only, keeping leet characters
// inside tokens so they can be normalized before lookup.
func tokenizeLeet(text string) []string {
	return strings.FieldsFunc(text, unicode.IsSpace)
}

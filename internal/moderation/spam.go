package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

// Compiled regex patterns for spam detection.
// These are compiled once at package init and reused for every call,
// making them safe and efficient for concurrent use.
var (
	// urlPattern matches http/https URLs, www. URLs, and common TLD patterns.
	// The bare-domain variant requires a trailing "/" to avoid false positives
	// on version strings like "v2.0" or decimal numbers like "3.14".
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// mentionPattern matches @handle style user mentions.
	mentionPattern = regexp.MustCompile(`@[A-Za-z0-9_]{2,}`)
)

// Heuristic thresholds. Ratios only apply above a minimum length so short
// shouting ("OK!!") is not flagged.
const (
	maxURLs          = 2   // this many URLs or more escalates to review
	maxMentions      = 5   // this many @mentions or more escalates to review
	capsRatioLimit   = 0.7 // uppercase / letters above this escalates
	capsMinLetters   = 10  // caps ratio ignored below this many letters
	charFloodRun     = 5   // consecutive identical characters
	wordFloodRepeats = 3   // consecutive identical words
)

// spamCheck pairs a detection function with the rule name reported in
// Result.MatchedRules.
type spamCheck struct {
	name  string
	match func(string) bool
}

// spamChecks is the ordered list of heuristics applied by checkSpamPatterns.
// Every matching rule is recorded; all spam hits carry a review verdict, so
// order only affects reporting.
var spamChecks = []spamCheck{
	{name: "url_count", match: hasExcessiveURLs},
	{name: "mention_count", match: hasExcessiveMentions},
	{name: "caps_ratio", match: hasExcessiveCaps},
	{name: "char_flood", match: hasCharFlood},
	{name: "word_flood", match: hasWordFlood},
}

// hasExcessiveURLs returns true if text contains maxURLs or more links.
func hasExcessiveURLs(text string) bool {
	return len(urlPattern.FindAllStringIndex(text, maxURLs)) >= maxURLs
}

// hasExcessiveMentions returns true if text contains maxMentions or more
// @mentions.
func hasExcessiveMentions(text string) bool {
	return len(mentionPattern.FindAllStringIndex(text, maxMentions)) >= maxMentions
}

// hasExcessiveCaps returns true if the ratio of uppercase letters to all
// letters exceeds capsRatioLimit. Content with fewer than capsMinLetters
// letters never matches.
func hasExcessiveCaps(text string) bool {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < capsMinLetters {
		return false
	}
	return float64(upper)/float64(letters) > capsRatioLimit
}

// hasCharFlood returns true if text contains charFloodRun or more consecutive
// identical characters. Go's regexp package (RE2) does not support
// backreferences, so this is a simple linear scan.
func hasCharFlood(text string) bool {
	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= charFloodRun {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood returns true if the same word appears wordFloodRepeats or more
// times consecutively (case-insensitive). Words are delimited by whitespace.
func hasWordFlood(text string) bool {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	if len(words) < wordFloodRepeats {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= wordFloodRepeats {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}

// checkSpamPatterns runs every heuristic against text and returns the names
// of all matching rules. Spam matches always escalate to review, never
// reject, so a human confirms before content is dropped.
func checkSpamPatterns(text string) []string {
	var matched []string
	for _, sc := range spamChecks {
		if sc.match(text) {
			matched = append(matched, sc.name)
		}
	}
	return matched
}

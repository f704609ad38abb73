package moderation

import (
	"strings"
	"testing"
)

// TestSpam_URLCount verifies that multiple links escalate while a single
// link passes.
func TestSpam_URLCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		matched bool
	}{
		{"two http urls", "see http://evil.com and http://evil2.com", true},
		{"http plus www", "http://spam.xyz/click plus www.phishing.net", true},
		{"bare domains with path", "evil.com/free and site.ru/malware", true},
		{"single url ok", "check out http://example.com", false},
		{"no urls", "just a normal sentence", false},
		{"decimal not a url", "rated it 3.14 out of 5", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasExcessiveURLs(tt.input); got != tt.matched {
				t.Errorf("hasExcessiveURLs(%q) = %v, want %v", tt.input, got, tt.matched)
			}
		})
	}
}

func TestSpam_MentionCount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		matched bool
	}{
		{"five mentions", "@a1 @b2 @c3 @d4 @e5 check this out", true},
		{"four mentions ok", "@a1 @b2 @c3 @d4 hello", false},
		{"email not enough", "reach me at me@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasExcessiveMentions(tt.input); got != tt.matched {
				t.Errorf("hasExcessiveMentions(%q) = %v, want %v", tt.input, got, tt.matched)
			}
		})
	}
}

func TestSpam_CapsRatio(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		matched bool
	}{
		{"all caps", "THIS IS ABSOLUTELY OUTRAGEOUS", true},
		{"mostly caps", "BUY NOW BEFORE it is GONE FOREVER", true},
		{"normal sentence", "This is a normal sentence with some words", false},
		{"short shout ignored", "WOW OK", false},
		{"no letters", "1234567890 !!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasExcessiveCaps(tt.input); got != tt.matched {
				t.Errorf("hasExcessiveCaps(%q) = %v, want %v", tt.input, got, tt.matched)
			}
		})
	}
}

func TestSpam_CharFlood(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		matched bool
	}{
		{"repeated o in word", "hellooooooo", true},
		{"exactly five", "aaaaa", true},
		{"four is fine", "aaaa", false},
		{"spread out", "banana bandana", false},
		{"exclamation flood", "wow!!!!!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasCharFlood(tt.input); got != tt.matched {
				t.Errorf("hasCharFlood(%q) = %v, want %v", tt.input, got, tt.matched)
			}
		})
	}
}

func TestSpam_WordFlood(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		matched bool
	}{
		{"triple word", "free free free", true},
		{"case insensitive", "FREE free Free", true},
		{"double is fine", "free free stuff", false},
		{"non consecutive", "free stuff free stuff free", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasWordFlood(tt.input); got != tt.matched {
				t.Errorf("hasWordFlood(%q) = %v, want %v", tt.input, got, tt.matched)
			}
		})
	}
}

func TestCheckSpamPatterns_ReportsAllMatches(t *testing.T) {
	text := "BUY NOW http://spam.com http://spam2.com FREE FREE FREE"
	matched := checkSpamPatterns(text)

	want := map[string]bool{"url_count": true, "word_flood": true}
	for _, rule := range matched {
		delete(want, rule)
	}
	if len(want) > 0 {
		t.Errorf("checkSpamPatterns(%q) = %v, missing %v", text, matched, want)
	}
}

func TestCheckSpamPatterns_Clean(t *testing.T) {
	text := "really enjoyed the pacing of this season, the finale landed well"
	if matched := checkSpamPatterns(text); len(matched) != 0 {
		t.Errorf("expected no spam rules, got %v", matched)
	}
}

func BenchmarkCheckSpamPatterns(b *testing.B) {
	msg := strings.Repeat("a normal message without anything suspicious in it. ", 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checkSpamPatterns(msg)
	}
}

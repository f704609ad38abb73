package moderation

import "errors"

// Verdict is the tri-state outcome of classifying a piece of content.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReview  Verdict = "review"
	VerdictReject  Verdict = "reject"
)

// severity returns the precedence rank of a verdict. Higher wins when
// multiple rules match the same content (reject > review > approve).
func (v Verdict) severity() int {
	switch v {
	case VerdictReject:
		return 2
	case VerdictReview:
		return 1
	default:
		return 0
	}
}

// ErrInvalidContent is returned when a ContentItem is missing its identifier.
var ErrInvalidContent = errors.New("moderation: content item missing id")

// ContentItem is a piece of user-generated content submitted for review.
// AuthorID and ContentType are contextual metadata carried through to the
// action log; the classifier does not validate them.
type ContentItem struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	AuthorID    string `json:"authorId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Result is the outcome of classifying one ContentItem.
//
// Invariants: Verdict==approve implies Approved, Verdict==reject implies
// !Approved. A review verdict leaves the item not approved until a human
// decides.
type Result struct {
	Approved         bool     `json:"isApproved"`
	Verdict          Verdict  `json:"suggestedAction"`
	ModeratedContent string   `json:"moderatedContent"`
	MatchedRules     []string `json:"matchedRules,omitempty"`
}

// Stats summarizes a set of classification results.
type Stats struct {
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Review   int `json:"review"`
	Total    int `json:"total"`
}

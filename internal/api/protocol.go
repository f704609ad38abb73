// Package api exposes the moderation and security subsystems over HTTP.
// Mutating endpoints accept a JSON command envelope with an "action"
// discriminator; read endpoints are plain query-parameter GETs.
package api

import (
	"encoding/json"
	"fmt"

	"github.com/aegis/trust-service/internal/moderation"
)

// Moderation command actions.
const (
	ActionModerate      = "moderate"
	ActionBatchModerate = "batch-moderate"
	ActionReview        = "review"
	ActionApprove       = "approve"
	ActionReject        = "reject"
)

// Security command actions.
const (
	ActionCheckSuspicious = "check-suspicious"
	ActionBlockIP         = "block-ip"
	ActionUnblockIP       = "unblock-ip"
	ActionIssueSession    = "issue-session"
	ActionValidateSession = "validate-session"
	ActionRevokeSession   = "revoke-session"
)

// Envelope holds the command action and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Action string          `json:"action"`
	Raw    json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "action"
// field so that the rest of the payload can be decoded later into the
// appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("api: failed to unmarshal envelope: %w", err)
	}
	if partial.Action == "" {
		return fmt.Errorf("api: missing or empty \"action\" field")
	}
	e.Action = partial.Action
	return nil
}

// ModerateCmd submits a single content item for automated moderation.
type ModerateCmd struct {
	Action      string `json:"action"`
	ContentID   string `json:"contentId"`
	Content     string `json:"content"`
	AuthorID    string `json:"authorId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Item converts the command into the moderation input type.
func (c ModerateCmd) Item() moderation.ContentItem {
	return moderation.ContentItem{
		ID:          c.ContentID,
		Content:     c.Content,
		AuthorID:    c.AuthorID,
		ContentType: c.ContentType,
	}
}

// BatchModerateCmd submits several content items at once.
type BatchModerateCmd struct {
	Action   string                   `json:"action"`
	Contents []moderation.ContentItem `json:"contents"`
}

// ReviewCmd resolves or flags a pending review item. Used for the review,
// approve, and reject actions.
type ReviewCmd struct {
	Action      string `json:"action"`
	ContentID   string `json:"contentId"`
	ModeratorID string `json:"moderatorId"`
	Reason      string `json:"reason,omitempty"`
}

// CheckSuspiciousCmd asks whether an (IP, email) pair shows repeated
// authentication failures.
type CheckSuspiciousCmd struct {
	Action        string `json:"action"`
	ClientIP      string `json:"clientIP"`
	Email         string `json:"email"`
	WindowSeconds int    `json:"windowSeconds,omitempty"`
}

// BlockIPCmd blocks an IP for a given duration.
type BlockIPCmd struct {
	Action          string `json:"action"`
	IP              string `json:"ip"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// UnblockIPCmd removes an active block.
type UnblockIPCmd struct {
	Action string `json:"action"`
	IP     string `json:"ip"`
}

// IssueSessionCmd issues a new session token for a user.
type IssueSessionCmd struct {
	Action     string `json:"action"`
	UserID     string `json:"userId"`
	TTLSeconds int    `json:"ttlSeconds,omitempty"`
}

// ValidateSessionCmd looks up an issued session token. A successful lookup
// refreshes the token's sliding expiry.
type ValidateSessionCmd struct {
	Action  string `json:"action"`
	TokenID string `json:"tokenId"`
}

// RevokeSessionCmd revokes an issued session token.
type RevokeSessionCmd struct {
	Action  string `json:"action"`
	TokenID string `json:"tokenId"`
}

// ParseModerationCommand parses a POST /moderation body into a typed command.
// It returns the action string, the decoded struct, and any error encountered
// during parsing. An error is returned for unknown actions.
func ParseModerationCommand(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("api: failed to parse command: %w", err)
	}

	var (
		cmd interface{}
		err error
	)

	switch env.Action {
	case ActionModerate:
		var c ModerateCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionBatchModerate:
		var c BatchModerateCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionReview, ActionApprove, ActionReject:
		var c ReviewCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	default:
		return env.Action, nil, fmt.Errorf(
			"api: unknown action %q (supported: %s, %s, %s, %s, %s)",
			env.Action, ActionModerate, ActionBatchModerate, ActionReview, ActionApprove, ActionReject)
	}

	if err != nil {
		return env.Action, nil, fmt.Errorf("api: failed to decode %q payload: %w", env.Action, err)
	}
	return env.Action, cmd, nil
}

// ParseSecurityCommand parses a POST /security body into a typed command.
func ParseSecurityCommand(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("api: failed to parse command: %w", err)
	}

	var (
		cmd interface{}
		err error
	)

	switch env.Action {
	case ActionCheckSuspicious:
		var c CheckSuspiciousCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionBlockIP:
		var c BlockIPCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionUnblockIP:
		var c UnblockIPCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionIssueSession:
		var c IssueSessionCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionValidateSession:
		var c ValidateSessionCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	case ActionRevokeSession:
		var c RevokeSessionCmd
		err = json.Unmarshal(env.Raw, &c)
		cmd = c
	default:
		return env.Action, nil, fmt.Errorf(
			"api: unknown action %q (supported: %s, %s, %s, %s, %s, %s)",
			env.Action, ActionCheckSuspicious, ActionBlockIP, ActionUnblockIP,
			ActionIssueSession, ActionValidateSession, ActionRevokeSession)
	}

	if err != nil {
		return env.Action, nil, fmt.Errorf("api: failed to decode %q payload: %w", env.Action, err)
	}
	return env.Action, cmd, nil
}

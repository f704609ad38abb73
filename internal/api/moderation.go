package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/aegis/trust-service/internal/actions"
)

// maxBodyBytes caps command payload size.
const maxBodyBytes = 1 << 20

// defaultListLimit applies when a list query gives no explicit limit.
const defaultListLimit = 50

func (s *Server) handleModeratePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	action, cmd, err := ParseModerationCommand(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	switch c := cmd.(type) {
	case ModerateCmd:
		outcome, err := s.service.Moderate(r.Context(), c.Item())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, outcome)

	case BatchModerateCmd:
		if len(c.Contents) == 0 {
			writeBadRequest(w, "contents must not be empty")
			return
		}
		writeJSON(w, http.StatusOK, s.service.ModerateBatch(r.Context(), c.Contents))

	case ReviewCmd:
		if c.ContentID == "" {
			writeBadRequest(w, "contentId is required")
			return
		}
		var (
			recorded actions.Action
			rerr     error
		)
		switch action {
		case ActionReview:
			recorded, rerr = s.service.Flag(r.Context(), c.ContentID, c.ModeratorID, c.Reason)
		case ActionApprove:
			recorded, rerr = s.service.Approve(r.Context(), c.ContentID, c.ModeratorID, c.Reason)
		case ActionReject:
			recorded, rerr = s.service.Reject(r.Context(), c.ContentID, c.ModeratorID, c.Reason)
		}
		if rerr != nil {
			writeError(w, rerr)
			return
		}
		writeJSON(w, http.StatusOK, recorded)
	}
}

func (s *Server) handleModerateGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := parseLimit(q.Get("limit"))

	switch q.Get("type") {
	case "pending":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pendingReviews": s.service.PendingReviews(limit),
		})
	case "actions":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"actions": s.service.Actions(limit, q.Get("moderatorId")),
		})
	case "stats":
		writeJSON(w, http.StatusOK, s.service.Stats())
	case "":
		// Combined snapshot for dashboard bootstrap.
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"pendingReviews": s.service.PendingReviews(limit),
			"recentActions":  s.service.Actions(limit, ""),
			"stats":          s.service.Stats(),
		})
	default:
		writeBadRequest(w, "unknown type (supported: pending, actions, stats)")
	}
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	return n
}

package handlers

import (
	"net/http"
	"strconv"
	"time"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	RegisteredUsers int64  `json:"registered_users"`
	PresentUsers    int    `json:"present_users"`
	SharedMessages  int    `json:"shared_messages"`
	LastActivity    string `json:"last_activity"`
}

// Stats returns platform statistics for the landing page.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	registered, err := h.users.CountUsers(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("count users failed")
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	shared, err := h.conversations.ReadShared(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("read shared log failed")
		h.Error(w, http.StatusInternalServerError, "failed to read shared log")
		return
	}

	lastActivity := "no activity yet"
	if len(shared) > 0 {
		last := shared[len(shared)-1]
		lastActivity = formatTimeAgo(time.UnixMilli(last.Timestamp))
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		RegisteredUsers: registered,
		PresentUsers:    h.registry.Count(),
		SharedMessages:  len(shared),
		LastActivity:    lastActivity,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return strconv.Itoa(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return strconv.Itoa(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return strconv.Itoa(days) + " days ago"
	}
}

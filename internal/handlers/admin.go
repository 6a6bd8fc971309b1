package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Pimiscool14/WebChat/internal/auth"
	"github.com/Pimiscool14/WebChat/internal/models"
)

// BanRequest is the admin ban request body. A zero duration with
// permanent=false is rejected.
type BanRequest struct {
	Target    string `json:"target"`
	Minutes   int    `json:"minutes,omitempty"`
	Hours     int    `json:"hours,omitempty"`
	Days      int    `json:"days,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

// UnbanRequest is the admin unban request body.
type UnbanRequest struct {
	Target string `json:"target"`
}

// Ban blocks future binds for an identity and force-disconnects its current
// connection, if any.
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Target == "" {
		h.Error(w, http.StatusBadRequest, "target is required")
		return
	}

	user, err := h.users.GetUser(r.Context(), req.Target)
	if err != nil {
		h.log.Error().Err(err).Msg("ban lookup failed")
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "no such user")
		return
	}

	ban := models.Ban{Identity: req.Target}
	if !req.Permanent {
		d := time.Duration(req.Minutes)*time.Minute +
			time.Duration(req.Hours)*time.Hour +
			time.Duration(req.Days)*24*time.Hour
		if d <= 0 {
			h.Error(w, http.StatusBadRequest, "ban needs a duration or permanent=true")
			return
		}
		until := time.Now().Add(d)
		ban.Until = &until
	}

	if err := h.users.SetBan(r.Context(), ban); err != nil {
		h.log.Error().Err(err).Msg("ban store failed")
		h.Error(w, http.StatusInternalServerError, "failed to store ban")
		return
	}

	h.auth.RevokeIdentity(req.Target)

	if conn, ok := h.registry.Lookup(req.Target); ok {
		conn.Send("forceLogout", map[string]string{"reason": auth.BanMessage(&ban)})
		conn.Close()
	}

	h.log.Info().Str("target", req.Target).Bool("permanent", req.Permanent).Msg("identity banned")
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Unban lifts a ban.
func (h *Handler) Unban(w http.ResponseWriter, r *http.Request) {
	var req UnbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Target == "" {
		h.Error(w, http.StatusBadRequest, "target is required")
		return
	}

	if err := h.users.ClearBan(r.Context(), req.Target); err != nil {
		h.log.Error().Err(err).Msg("unban failed")
		h.Error(w, http.StatusInternalServerError, "failed to clear ban")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

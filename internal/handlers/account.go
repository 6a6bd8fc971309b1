package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Pimiscool14/WebChat/internal/auth"
)

// CredentialsRequest is the request body for register and login.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token used to open a WebSocket session.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Register handles account creation.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		h.JSON(w, http.StatusCreated, map[string]string{"username": req.Username})
	case errors.Is(err, auth.ErrExists):
		h.Error(w, http.StatusConflict, "username already taken")
	case errors.Is(err, auth.ErrInvalidIdentity):
		h.Error(w, http.StatusBadRequest, "username must be 2-32 characters: letters, digits, '.', '_', '-'")
	case errors.Is(err, auth.ErrBadCredentials):
		h.Error(w, http.StatusBadRequest, "password too short")
	default:
		h.log.Error().Err(err).Msg("register failed")
		h.Error(w, http.StatusInternalServerError, "failed to create account")
	}
}

// Login verifies credentials and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		h.JSON(w, http.StatusOK, LoginResponse{Token: token, Username: req.Username})
	case errors.Is(err, auth.ErrBadCredentials):
		h.Error(w, http.StatusUnauthorized, "unknown user or wrong password")
	case errors.Is(err, auth.ErrBanned):
		h.Error(w, http.StatusForbidden, err.Error())
	default:
		h.log.Error().Err(err).Msg("login failed")
		h.Error(w, http.StatusInternalServerError, "login failed")
	}
}

// Logout invalidates the presented session token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	if token != "" {
		h.auth.Logout(token)
	}
	h.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// sessionToken extracts the bearer token from the Authorization header or,
// for WebSocket upgrades where headers are awkward from browsers, the
// "token" query parameter.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return r.URL.Query().Get("token")
}

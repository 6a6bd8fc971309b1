package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Pimiscool14/WebChat/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Session tokens gate the upgrade; origins stay open like the rest
		// of the API.
		return true
	},
}

// ServeWS authenticates the session token, upgrades to WebSocket, and hands
// the connection to the chat core. Banned identities are refused before the
// bind.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	identity, ok := h.auth.Resolve(token)
	if !ok {
		h.Error(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	denied, err := h.auth.DenyBind(r.Context(), identity)
	if err != nil {
		h.log.Error().Err(err).Msg("ban check failed")
		h.Error(w, http.StatusInternalServerError, "ban check failed")
		return
	}
	if denied {
		h.auth.RevokeIdentity(identity)
		h.Error(w, http.StatusForbidden, "identity is banned")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(conn, identity, h.registry, h.chat, h.graph, h.log)
	go client.Run()
}

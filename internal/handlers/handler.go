package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/auth"
	"github.com/Pimiscool14/WebChat/internal/chat"
	"github.com/Pimiscool14/WebChat/internal/friends"
	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	users         store.UserStore
	conversations store.ConversationStore
	auth          *auth.Service
	chat          *chat.Service
	graph         *friends.Graph
	registry      *presence.Registry
	log           zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(users store.UserStore, conversations store.ConversationStore, authSvc *auth.Service, chatSvc *chat.Service, graph *friends.Graph, registry *presence.Registry, log zerolog.Logger) *Handler {
	return &Handler{
		users:         users,
		conversations: conversations,
		auth:          authSvc,
		chat:          chatSvc,
		graph:         graph,
		registry:      registry,
		log:           log,
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

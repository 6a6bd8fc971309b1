// Package auth is the thin account collaborator: registration, login, and
// the bearer session tokens that carry a verified identity to the transport.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Pimiscool14/WebChat/internal/metrics"
	"github.com/Pimiscool14/WebChat/internal/models"
	"github.com/Pimiscool14/WebChat/internal/store"
)

var (
	// ErrExists reports registration of a taken identity.
	ErrExists = errors.New("user already exists")

	// ErrInvalidIdentity reports an identity that fails validation.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrBadCredentials reports a failed login.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrBanned reports a login or bind attempt by a banned identity.
	ErrBanned = errors.New("identity is banned")
)

// Identities key presence, friendships, and pair keys; '|' is the pair-key
// separator and must never appear in one.
var identityRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,32}$`)

// Service verifies accounts and hands out session tokens. Tokens live in
// memory; a restart just forces clients back through login.
type Service struct {
	users store.UserStore

	mu       sync.RWMutex
	sessions map[string]string // token -> identity
}

// NewService creates an auth service over the given user store.
func NewService(users store.UserStore) *Service {
	return &Service{
		users:    users,
		sessions: make(map[string]string),
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, identity, password string) error {
	if !identityRegex.MatchString(identity) {
		return ErrInvalidIdentity
	}
	if len(password) < 4 {
		return fmt.Errorf("%w: password too short", ErrBadCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.CreateUser(ctx, identity, string(hash)); err != nil {
		if errors.Is(err, store.ErrExists) {
			return ErrExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	metrics.UsersRegistered.Inc()
	return nil
}

// Login verifies the password, rejects banned identities, and returns a
// session token for the transport handshake.
func (s *Service) Login(ctx context.Context, identity, password string) (string, error) {
	user, err := s.users.GetUser(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", ErrBadCredentials
	}

	ban, err := s.users.GetBan(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("check ban: %w", err)
	}
	if ban != nil {
		return "", fmt.Errorf("%w: %s", ErrBanned, BanMessage(ban))
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrBadCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = identity
	s.mu.Unlock()
	return token, nil
}

// Resolve maps a session token back to its identity.
func (s *Service) Resolve(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.sessions[token]
	return identity, ok
}

// Logout invalidates a session token.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// RevokeIdentity drops every session for identity. Used when a ban lands.
func (s *Service) RevokeIdentity(identity string) {
	s.mu.Lock()
	for token, ident := range s.sessions {
		if ident == identity {
			delete(s.sessions, token)
		}
	}
	s.mu.Unlock()
}

// DenyBind reports whether identity is currently banned, i.e. whether a
// presence bind must be refused.
func (s *Service) DenyBind(ctx context.Context, identity string) (bool, error) {
	ban, err := s.users.GetBan(ctx, identity)
	if err != nil {
		return false, err
	}
	return ban != nil, nil
}

// BanMessage renders a user-facing description of a ban.
func BanMessage(ban *models.Ban) string {
	if ban == nil {
		return ""
	}
	if ban.Until == nil {
		return "you are permanently banned"
	}
	mins := int(time.Until(*ban.Until).Minutes())
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("you are banned for another %d minutes", mins)
}

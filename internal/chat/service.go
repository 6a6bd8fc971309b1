// Package chat implements the message distribution protocol: validated,
// persisted sends, authorized deletes, and the session bootstrap snapshot.
// Persistence happens before fan-out, so the store is the source of truth and
// absent peers reconcile on their next bootstrap.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/friends"
	"github.com/Pimiscool14/WebChat/internal/metrics"
	"github.com/Pimiscool14/WebChat/internal/models"
	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
)

const maxBodyBytes = 8192

var (
	// ErrUnauthorized reports a private send between non-friends.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalid reports a malformed send (empty or oversized body, unknown
	// kind).
	ErrInvalid = errors.New("invalid message")
)

// Service coordinates the conversation store, the friend graph, and the
// presence registry. All dependencies are injected; construct one per server
// (or per test).
type Service struct {
	conversations store.ConversationStore
	graph         *friends.Graph
	registry      *presence.Registry
	log           zerolog.Logger
}

// NewService creates a chat service.
func NewService(conversations store.ConversationStore, graph *friends.Graph, registry *presence.Registry, log zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		graph:         graph,
		registry:      registry,
		log:           log,
	}
}

// Send validates, persists, and fans out a message from author. An empty
// target addresses the shared channel; otherwise target is a peer identity
// and the two must be friends. The persisted message is returned.
//
// Store failure is the only hard error a successful validation can produce:
// silently dropping a message is worse than surfacing the failure.
func (s *Service) Send(ctx context.Context, author, body, kind, target string) (*models.Message, error) {
	if kind == "" {
		kind = models.KindText
	}
	if kind != models.KindText && kind != models.KindFile {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalid)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: body too long", ErrInvalid)
	}

	msg := &models.Message{
		ID:        ulid.Make().String(),
		Author:    author,
		Body:      body,
		Kind:      kind,
		Target:    target,
		Timestamp: time.Now().UnixMilli(),
	}

	if target == "" {
		if err := s.conversations.AppendShared(ctx, msg); err != nil {
			return nil, fmt.Errorf("persist shared message: %w", err)
		}
		metrics.MessagesSent.WithLabelValues("shared").Inc()
		s.fanOutShared("message", msg)
		return msg, nil
	}

	ok, err := s.graph.AreFriends(ctx, author, target)
	if err != nil {
		return nil, fmt.Errorf("check friendship: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s and %s are not friends", ErrUnauthorized, author, target)
	}

	pairKey := store.PairKey(author, target)
	if err := s.conversations.AppendPrivate(ctx, pairKey, msg); err != nil {
		return nil, fmt.Errorf("persist private message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues("private").Inc()
	s.fanOutPair("message", msg, author, target)
	return msg, nil
}

// DeletedEvent is the fan-out payload for a message removal.
type DeletedEvent struct {
	ID     string `json:"id"`
	Target string `json:"target,omitempty"`
}

// Delete removes the message id from the log addressed by target, provided
// requester authored it, and fans the deletion out to the log's audience.
// It reports false when nothing was deleted (unknown id or foreign author);
// that outcome stays local to the requester and emits no event.
func (s *Service) Delete(ctx context.Context, requester, id, target string) (bool, error) {
	if target == "" {
		ok, err := s.conversations.DeleteFromShared(ctx, id, requester)
		if err != nil {
			return false, fmt.Errorf("delete shared message: %w", err)
		}
		if !ok {
			return false, nil
		}
		metrics.MessagesDeleted.WithLabelValues("shared").Inc()
		s.fanOutShared("messageDeleted", DeletedEvent{ID: id})
		return true, nil
	}

	pairKey := store.PairKey(requester, target)
	ok, err := s.conversations.DeleteFromPrivate(ctx, pairKey, id, requester)
	if err != nil {
		return false, fmt.Errorf("delete private message: %w", err)
	}
	if !ok {
		return false, nil
	}
	metrics.MessagesDeleted.WithLabelValues("private").Inc()
	s.fanOutPair("messageDeleted", DeletedEvent{ID: id, Target: target}, requester, target)
	return true, nil
}

// Bootstrap assembles the full snapshot for an identity becoming present:
// the shared history, the private threads involving it, and its friend state.
// Idempotent and side-effect-free; clients repeat it to refresh.
func (s *Service) Bootstrap(ctx context.Context, identity string) (*models.Snapshot, error) {
	shared, err := s.conversations.ReadShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("read shared log: %w", err)
	}

	private, err := s.conversations.ReadPrivateFor(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("read private logs: %w", err)
	}

	friendList, err := s.graph.FriendsOf(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("read friends: %w", err)
	}

	pending, err := s.graph.PendingFor(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("read pending requests: %w", err)
	}

	if shared == nil {
		shared = []models.Message{}
	}
	if private == nil {
		private = map[string][]models.Message{}
	}
	if friendList == nil {
		friendList = []string{}
	}
	if pending == nil {
		pending = []string{}
	}

	return &models.Snapshot{
		Shared:  shared,
		Private: private,
		Friends: friendList,
		Pending: pending,
	}, nil
}

// fanOutShared pushes an event to every present connection, the author's
// included, so the sender's UI echoes what everyone else sees.
func (s *Service) fanOutShared(event string, payload any) {
	count := 0
	s.registry.Each(func(identity string, conn presence.Conn) {
		conn.Send(event, payload)
		count++
	})
	metrics.EventsPushed.WithLabelValues(event).Add(float64(count))
	s.log.Debug().Str("event", event).Int("connections", count).Msg("shared fan-out")
}

// fanOutPair pushes an event to the two participants of a private thread,
// silently skipping whichever is absent.
func (s *Service) fanOutPair(event string, payload any, a, b string) {
	for _, identity := range []string{a, b} {
		if conn, ok := s.registry.Lookup(identity); ok {
			conn.Send(event, payload)
			metrics.EventsPushed.WithLabelValues(event).Inc()
		}
	}
}

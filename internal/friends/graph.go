// Package friends implements the friend-request state machine and the
// symmetric friendship edge set gating private conversations.
package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/metrics"
	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
)

var (
	// ErrRejected reports a friend-request validation failure: self-request,
	// already friends, or an identical pending request.
	ErrRejected = errors.New("friend request rejected")

	// ErrNotFound reports a respond call against a request that does not
	// exist (or was already resolved).
	ErrNotFound = errors.New("friend request not found")
)

// Graph owns friend requests and friendships. Mutations go through the
// injected UserStore; notifications are best-effort pushes through the
// presence registry, since every client re-derives its queue on bootstrap.
type Graph struct {
	users    store.UserStore
	registry *presence.Registry
	log      zerolog.Logger
}

// NewGraph creates a friend graph over the given store and registry.
func NewGraph(users store.UserStore, registry *presence.Registry, log zerolog.Logger) *Graph {
	return &Graph{users: users, registry: registry, log: log}
}

// Request queues a pending friend request from -> to and notifies the target
// if present. Returns ErrRejected when from == to, the two are already
// friends, the target does not exist, or an identical request is pending.
func (g *Graph) Request(ctx context.Context, from, to string) error {
	if from == to {
		return fmt.Errorf("%w: cannot friend yourself", ErrRejected)
	}

	target, err := g.users.GetUser(ctx, to)
	if err != nil {
		return fmt.Errorf("lookup target: %w", err)
	}
	if target == nil {
		return fmt.Errorf("%w: no such user", ErrRejected)
	}

	already, err := g.users.AreFriends(ctx, from, to)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if already {
		return fmt.Errorf("%w: already friends", ErrRejected)
	}

	if err := g.users.AddFriendRequest(ctx, from, to); err != nil {
		if errors.Is(err, store.ErrExists) {
			return fmt.Errorf("%w: request already pending", ErrRejected)
		}
		return fmt.Errorf("queue request: %w", err)
	}

	metrics.FriendRequests.Inc()

	if conn, ok := g.registry.Lookup(to); ok {
		conn.Send("friendRequest", map[string]string{"from": from})
	}
	return nil
}

// Respond resolves the pending from -> to request. The request is removed
// regardless of outcome; on accept the symmetric friendship is established
// and any redundant reverse request is dropped. Both parties get a refresh
// notification if present. Returns ErrNotFound when no such request is
// pending, so a second respond is a safe no-op.
func (g *Graph) Respond(ctx context.Context, from, to string, accept bool) error {
	removed, err := g.users.DeleteFriendRequest(ctx, from, to)
	if err != nil {
		return fmt.Errorf("remove request: %w", err)
	}
	if !removed {
		return ErrNotFound
	}

	if accept {
		if err := g.users.AddFriendship(ctx, from, to); err != nil {
			return fmt.Errorf("add friendship: %w", err)
		}
		// A simultaneous mutual request leaves the reverse pair pending;
		// accepting either resolves both.
		if _, err := g.users.DeleteFriendRequest(ctx, to, from); err != nil {
			return fmt.Errorf("drop reverse request: %w", err)
		}
		metrics.FriendshipsFormed.Inc()
	}

	for _, identity := range []string{from, to} {
		if conn, ok := g.registry.Lookup(identity); ok {
			conn.Send("friendsChanged", nil)
		}
	}
	return nil
}

// AreFriends reports whether a and b share a friendship edge.
func (g *Graph) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return g.users.AreFriends(ctx, a, b)
}

// FriendsOf returns the friend list for identity.
func (g *Graph) FriendsOf(ctx context.Context, identity string) ([]string, error) {
	return g.users.FriendsOf(ctx, identity)
}

// PendingFor returns the identities whose requests await identity's response.
func (g *Graph) PendingFor(ctx context.Context, identity string) ([]string, error) {
	return g.users.PendingFor(ctx, identity)
}

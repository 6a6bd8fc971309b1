package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Pimiscool14/WebChat/internal/models"
)

// ErrExists is returned when a unique record (user, friend request,
// friendship) is created twice.
var ErrExists = errors.New("already exists")

// UserStore persists accounts, the friend graph, and bans.
// Both PostgresStore and SQLiteStore implement this interface.
type UserStore interface {
	Close()
	Ping(ctx context.Context) error

	// Accounts
	CreateUser(ctx context.Context, identity, passwordHash string) error
	GetUser(ctx context.Context, identity string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Friend graph. Friendships are symmetric: AddFriendship(a, b) and
	// AddFriendship(b, a) store the same edge, and AreFriends holds for both
	// argument orders afterwards.
	AddFriendRequest(ctx context.Context, from, to string) error
	DeleteFriendRequest(ctx context.Context, from, to string) (bool, error)
	PendingFor(ctx context.Context, identity string) ([]string, error)
	AddFriendship(ctx context.Context, a, b string) error
	AreFriends(ctx context.Context, a, b string) (bool, error)
	FriendsOf(ctx context.Context, identity string) ([]string, error)

	// Bans. Until == nil means permanent. Expired bans read as not banned.
	SetBan(ctx context.Context, ban models.Ban) error
	ClearBan(ctx context.Context, identity string) error
	GetBan(ctx context.Context, identity string) (*models.Ban, error)
}

// ConversationStore persists the shared log and the per-pair private logs.
// Implementations must make each mutation atomic with respect to its log:
// concurrent appends and deletes on the same log never lose an update.
type ConversationStore interface {
	Close()
	Ping(ctx context.Context) error

	AppendShared(ctx context.Context, msg *models.Message) error
	AppendPrivate(ctx context.Context, pairKey string, msg *models.Message) error

	ReadShared(ctx context.Context) ([]models.Message, error)
	ReadPrivateFor(ctx context.Context, identity string) (map[string][]models.Message, error)

	// Deletes fail closed: they report false unless a message with the given
	// id exists in the log and its author is the requester.
	DeleteFromShared(ctx context.Context, id, requester string) (bool, error)
	DeleteFromPrivate(ctx context.Context, pairKey, id, requester string) (bool, error)
}

// PairKey returns the canonical key for the private log between a and b.
// It is symmetric: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// SplitPairKey returns the two identities of a pair key.
func SplitPairKey(key string) (string, string) {
	a, b, _ := strings.Cut(key, "|")
	return a, b
}

package friends

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
)

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []string
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

func (c *fakeConn) Close() {}

func (c *fakeConn) received(event string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e == event {
			return true
		}
	}
	return false
}

func newTestGraph(t *testing.T, identities ...string) (*Graph, *presence.Registry) {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)

	for _, identity := range identities {
		if err := s.CreateUser(context.Background(), identity, "hash"); err != nil {
			t.Fatalf("create user %s: %v", identity, err)
		}
	}

	registry := presence.NewRegistry()
	return NewGraph(s, registry, zerolog.Nop()), registry
}

func TestRequestAndAccept(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}

	pending, err := g.PendingFor(ctx, "bob")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0] != "alice" {
		t.Fatalf("expected [alice], got %v", pending)
	}

	if err := g.Respond(ctx, "alice", "bob", true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	ok, err := g.AreFriends(ctx, "alice", "bob")
	if err != nil || !ok {
		t.Fatalf("expected friendship, ok=%v err=%v", ok, err)
	}

	for _, identity := range []string{"alice", "bob"} {
		pending, err := g.PendingFor(ctx, identity)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(pending) != 0 {
			t.Fatalf("%s should have no pending requests, got %v", identity, pending)
		}
	}
}

func TestRequestRejections(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	// Self-request.
	if err := g.Request(ctx, "alice", "alice"); !errors.Is(err, ErrRejected) {
		t.Fatalf("self request: expected ErrRejected, got %v", err)
	}

	// Unknown target.
	if err := g.Request(ctx, "alice", "ghost"); !errors.Is(err, ErrRejected) {
		t.Fatalf("unknown target: expected ErrRejected, got %v", err)
	}

	// Duplicate pending request.
	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := g.Request(ctx, "alice", "bob"); !errors.Is(err, ErrRejected) {
		t.Fatalf("duplicate: expected ErrRejected, got %v", err)
	}

	// Already friends.
	if err := g.Respond(ctx, "alice", "bob", true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if err := g.Request(ctx, "alice", "bob"); !errors.Is(err, ErrRejected) {
		t.Fatalf("already friends: expected ErrRejected, got %v", err)
	}
}

func TestRejectLeavesNoFriendship(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := g.Respond(ctx, "alice", "bob", false); err != nil {
		t.Fatalf("respond: %v", err)
	}

	ok, err := g.AreFriends(ctx, "alice", "bob")
	if err != nil || ok {
		t.Fatalf("reject must not create a friendship, ok=%v err=%v", ok, err)
	}

	// A new request is allowed after a rejection.
	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("re-request after reject: %v", err)
	}
}

func TestRespondIdempotent(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	if err := g.Respond(ctx, "alice", "bob", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("respond without request: expected ErrNotFound, got %v", err)
	}

	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := g.Respond(ctx, "alice", "bob", false); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	if err := g.Respond(ctx, "alice", "bob", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second respond: expected ErrNotFound, got %v", err)
	}
}

func TestMutualRequestsResolveTogether(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request a->b: %v", err)
	}
	if err := g.Request(ctx, "bob", "alice"); err != nil {
		t.Fatalf("request b->a: %v", err)
	}

	// Accepting either resolves both: the redundant reverse request is
	// dropped as part of the accept.
	if err := g.Respond(ctx, "alice", "bob", true); err != nil {
		t.Fatalf("respond: %v", err)
	}

	ok, _ := g.AreFriends(ctx, "alice", "bob")
	if !ok {
		t.Fatal("expected friendship")
	}
	pending, _ := g.PendingFor(ctx, "alice")
	if len(pending) != 0 {
		t.Fatalf("reverse request should be gone, got %v", pending)
	}
	if err := g.Respond(ctx, "bob", "alice", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("responding to the dropped reverse request: expected ErrNotFound, got %v", err)
	}
}

func TestNotificationsBestEffort(t *testing.T) {
	g, registry := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	bob := &fakeConn{id: "c-bob"}
	registry.Bind("bob", bob)

	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if !bob.received("friendRequest") {
		t.Fatal("present target should get a friendRequest push")
	}

	alice := &fakeConn{id: "c-alice"}
	registry.Bind("alice", alice)

	if err := g.Respond(ctx, "alice", "bob", true); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !alice.received("friendsChanged") || !bob.received("friendsChanged") {
		t.Fatal("both parties should get friendsChanged")
	}
}

func TestRequestToAbsentTargetStillQueued(t *testing.T) {
	g, _ := newTestGraph(t, "alice", "bob")
	ctx := context.Background()

	// Bob is offline; the push is skipped but the queue survives for his
	// next bootstrap.
	if err := g.Request(ctx, "alice", "bob"); err != nil {
		t.Fatalf("request: %v", err)
	}
	pending, err := g.PendingFor(ctx, "bob")
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected queued request, got %v err=%v", pending, err)
	}
}

package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Pimiscool14/WebChat/internal/friends"
	"github.com/Pimiscool14/WebChat/internal/models"
	"github.com/Pimiscool14/WebChat/internal/presence"
	"github.com/Pimiscool14/WebChat/internal/store"
)

type pushedEvent struct {
	name    string
	payload any
}

type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []pushedEvent
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) {
	c.mu.Lock()
	c.events = append(c.events, pushedEvent{event, payload})
	c.mu.Unlock()
}

func (c *fakeConn) Close() {}

func (c *fakeConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.name == event {
			n++
		}
	}
	return n
}

type fixture struct {
	svc      *Service
	graph    *friends.Graph
	registry *presence.Registry
	store    *store.SQLiteStore
}

func newFixture(t *testing.T, identities ...string) *fixture {
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
	graph := friends.NewGraph(s, registry, zerolog.Nop())
	return &fixture{
		svc:      NewService(s, graph, registry, zerolog.Nop()),
		graph:    graph,
		registry: registry,
		store:    s,
	}
}

func (f *fixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	if err := f.graph.Request(ctx, a, b); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.graph.Respond(ctx, a, b, true); err != nil {
		t.Fatalf("respond: %v", err)
	}
}

func (f *fixture) connect(identity string) *fakeConn {
	conn := &fakeConn{id: "conn-" + identity}
	f.registry.Bind(identity, conn)
	return conn
}

func TestSharedSendReachesEveryone(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	alice := f.connect("alice")
	bob := f.connect("bob")

	msg, err := f.svc.Send(ctx, "alice", "hi", "", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == "" || !msg.Shared() {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// Author included, for UI echo consistency.
	if alice.count("message") != 1 || bob.count("message") != 1 {
		t.Fatalf("shared fan-out missed someone: alice=%d bob=%d",
			alice.count("message"), bob.count("message"))
	}

	// Both bootstrap snapshots include it, related or not.
	for _, identity := range []string{"alice", "bob"} {
		snap, err := f.svc.Bootstrap(ctx, identity)
		if err != nil {
			t.Fatalf("bootstrap %s: %v", identity, err)
		}
		if len(snap.Shared) != 1 || snap.Shared[0].Body != "hi" {
			t.Fatalf("%s snapshot missing shared message: %+v", identity, snap.Shared)
		}
	}
}

func TestPrivateSendRequiresFriendship(t *testing.T) {
	f := newFixture(t, "alice", "carol")
	ctx := context.Background()

	_, err := f.svc.Send(ctx, "alice", "psst", "", "carol")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Nothing persisted anywhere.
	shared, _ := f.store.ReadShared(ctx)
	if len(shared) != 0 {
		t.Fatalf("shared log must be untouched, got %v", shared)
	}
	private, _ := f.store.ReadPrivateFor(ctx, "carol")
	if len(private) != 0 {
		t.Fatalf("carol's private logs must be untouched, got %v", private)
	}
}

func TestPrivateSendSucceedsBetweenFriends(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, "alice", "secret", "", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Target != "bob" {
		t.Fatalf("expected target bob, got %q", msg.Target)
	}

	key := store.PairKey("alice", "bob")
	for _, identity := range []string{"alice", "bob"} {
		snap, err := f.svc.Bootstrap(ctx, identity)
		if err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		if len(snap.Private[key]) != 1 || snap.Private[key][0].Body != "secret" {
			t.Fatalf("%s snapshot missing private message: %+v", identity, snap.Private)
		}
	}
}

func TestPrivateFanOutExcludesThirdParties(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	alice := f.connect("alice")
	bob := f.connect("bob")
	carol := f.connect("carol")

	if _, err := f.svc.Send(ctx, "alice", "secret", "", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if alice.count("message") != 1 || bob.count("message") != 1 {
		t.Fatal("both participants should receive the event")
	}
	if carol.count("message") != 0 {
		t.Fatal("a third present user must not receive a private fan-out")
	}
}

func TestPrivateSendToAbsentPeerStillPersists(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	// Bob is offline. Delivery is asynchronous, not dropped.
	if _, err := f.svc.Send(ctx, "alice", "later", "", "bob"); err != nil {
		t.Fatalf("send: %v", err)
	}

	snap, err := f.svc.Bootstrap(ctx, "bob")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	key := store.PairKey("alice", "bob")
	if len(snap.Private[key]) != 1 {
		t.Fatalf("offline peer should find the message on bootstrap, got %+v", snap.Private)
	}
}

func TestDeleteOwnSharedMessage(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, "alice", "oops", "", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	bob := f.connect("bob")

	deleted, err := f.svc.Delete(ctx, "alice", msg.ID, "")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}

	snap, _ := f.svc.Bootstrap(ctx, "alice")
	if len(snap.Shared) != 0 {
		t.Fatalf("deleted message still visible: %+v", snap.Shared)
	}
	if bob.count("messageDeleted") != 1 {
		t.Fatal("deletion event should reach all present connections")
	}
}

func TestDeleteForeignMessageIsNoop(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, "alice", "mine", "", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	carol := f.connect("carol")

	deleted, err := f.svc.Delete(ctx, "bob", msg.ID, "")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatal("non-author delete must be a no-op")
	}

	snap, _ := f.svc.Bootstrap(ctx, "alice")
	if len(snap.Shared) != 1 {
		t.Fatalf("message must remain, got %+v", snap.Shared)
	}
	if carol.count("messageDeleted") != 0 {
		t.Fatal("failed delete must emit no event")
	}
}

func TestDeletePrivateMessageAudience(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	msg, err := f.svc.Send(ctx, "alice", "secret", "", "bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	bob := f.connect("bob")
	carol := f.connect("carol")

	deleted, err := f.svc.Delete(ctx, "alice", msg.ID, "bob")
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	if bob.count("messageDeleted") != 1 {
		t.Fatal("peer should get the deletion event")
	}
	if carol.count("messageDeleted") != 0 {
		t.Fatal("third party must not see a private deletion event")
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, "alice", "", "", ""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty body: expected ErrInvalid, got %v", err)
	}
	if _, err := f.svc.Send(ctx, "alice", "hi", "video", ""); !errors.Is(err, ErrInvalid) {
		t.Fatalf("unknown kind: expected ErrInvalid, got %v", err)
	}

	// A file message carries its upload URL opaquely.
	msg, err := f.svc.Send(ctx, "alice", "/uploads/1700000000-cat.png", models.KindFile, "")
	if err != nil {
		t.Fatalf("file send: %v", err)
	}
	if msg.Kind != models.KindFile {
		t.Fatalf("expected file kind, got %q", msg.Kind)
	}
}

func TestMessageIDsUnique(t *testing.T) {
	f := newFixture(t, "alice")
	ctx := context.Background()

	seen := map[string]bool{}
	var lastTS int64
	for i := 0; i < 50; i++ {
		msg, err := f.svc.Send(ctx, "alice", "m", "", "")
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		if seen[msg.ID] {
			t.Fatalf("duplicate id %s", msg.ID)
		}
		seen[msg.ID] = true
		if msg.Timestamp < lastTS {
			t.Fatalf("timestamps went backwards: %d after %d", msg.Timestamp, lastTS)
		}
		lastTS = msg.Timestamp
	}
}

func TestBootstrapIdempotent(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	f.befriend(t, "alice", "bob")
	ctx := context.Background()

	if _, err := f.svc.Send(ctx, "alice", "hello", "", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	first, err := f.svc.Bootstrap(ctx, "alice")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	second, err := f.svc.Bootstrap(ctx, "alice")
	if err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	if len(first.Shared) != len(second.Shared) {
		t.Fatal("re-bootstrap must return the same shared history")
	}
	if len(first.Friends) != 1 || first.Friends[0] != "bob" {
		t.Fatalf("snapshot should carry the friend list, got %v", first.Friends)
	}
}

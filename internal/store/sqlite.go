package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Pimiscool14/WebChat/internal/models"
)

// SQLiteStore handles SQLite database operations. It implements both
// UserStore and ConversationStore, which makes it the default single-file
// backend for development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/webchat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/webchat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	// A single writer keeps every log mutation atomic without busy errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		identity TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS friend_requests (
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (from_user, to_user)
	);

	CREATE TABLE IF NOT EXISTS friendships (
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_a, user_b)
	);

	CREATE TABLE IF NOT EXISTS bans (
		identity TEXT PRIMARY KEY,
		permanent INTEGER NOT NULL DEFAULT 0,
		expires INTEGER
	);

	CREATE TABLE IF NOT EXISTS messages (
		pair_key TEXT NOT NULL DEFAULT '',
		id TEXT NOT NULL,
		author TEXT NOT NULL,
		body TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'text',
		member_a TEXT NOT NULL DEFAULT '',
		member_b TEXT NOT NULL DEFAULT '',
		ts INTEGER NOT NULL,
		PRIMARY KEY (pair_key, id)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_to ON friend_requests(to_user);
	CREATE INDEX IF NOT EXISTS idx_messages_member_a ON messages(member_a);
	CREATE INDEX IF NOT EXISTS idx_messages_member_b ON messages(member_b);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(pair_key, ts);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new account record.
func (s *SQLiteStore) CreateUser(ctx context.Context, identity, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (identity, password_hash, created_at)
		VALUES (?, ?, ?)
	`, identity, passwordHash, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// GetUser retrieves an account by identity. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetUser(ctx context.Context, identity string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT identity, password_hash, created_at
		FROM users WHERE identity = ?
	`, identity).Scan(&user.Identity, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of registered accounts.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AddFriendRequest queues a pending request for the ordered pair (from, to).
func (s *SQLiteStore) AddFriendRequest(ctx context.Context, from, to string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO friend_requests (from_user, to_user, created_at)
		VALUES (?, ?, ?)
	`, from, to, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

// DeleteFriendRequest removes the pending (from, to) request and reports
// whether it existed.
func (s *SQLiteStore) DeleteFriendRequest(ctx context.Context, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM friend_requests WHERE from_user = ? AND to_user = ?
	`, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PendingFor returns the identities with a request waiting on identity,
// oldest first.
func (s *SQLiteStore) PendingFor(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_user FROM friend_requests WHERE to_user = ? ORDER BY created_at, from_user
	`, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []string
	for rows.Next() {
		var from string
		if err := rows.Scan(&from); err != nil {
			return nil, err
		}
		pending = append(pending, from)
	}
	return pending, rows.Err()
}

// AddFriendship records the symmetric edge between a and b. Adding an edge
// that already exists is a no-op.
func (s *SQLiteStore) AddFriendship(ctx context.Context, a, b string) error {
	if b < a {
		a, b = b, a
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO friendships (user_a, user_b, created_at)
		VALUES (?, ?, ?)
	`, a, b, time.Now().UTC())
	return err
}

// AreFriends reports whether the symmetric edge between a and b exists.
func (s *SQLiteStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if b < a {
		a, b = b, a
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM friendships WHERE user_a = ? AND user_b = ?
	`, a, b).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FriendsOf returns every identity sharing a friendship edge with identity.
func (s *SQLiteStore) FriendsOf(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN user_a = ? THEN user_b ELSE user_a END
		FROM friendships
		WHERE user_a = ? OR user_b = ?
		ORDER BY 1
	`, identity, identity, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friend string
		if err := rows.Scan(&friend); err != nil {
			return nil, err
		}
		friends = append(friends, friend)
	}
	return friends, rows.Err()
}

// SetBan records a ban, replacing any existing one for the identity.
func (s *SQLiteStore) SetBan(ctx context.Context, ban models.Ban) error {
	permanent := 0
	var expires *int64
	if ban.Until == nil {
		permanent = 1
	} else {
		ms := ban.Until.UnixMilli()
		expires = &ms
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bans (identity, permanent, expires) VALUES (?, ?, ?)
	`, ban.Identity, permanent, expires)
	return err
}

// ClearBan removes any ban for the identity.
func (s *SQLiteStore) ClearBan(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE identity = ?`, identity)
	return err
}

// GetBan returns the active ban for identity, or (nil, nil) when there is
// none. Expired bans are dropped on read.
func (s *SQLiteStore) GetBan(ctx context.Context, identity string) (*models.Ban, error) {
	var permanent int
	var expires *int64
	err := s.db.QueryRowContext(ctx, `
		SELECT permanent, expires FROM bans WHERE identity = ?
	`, identity).Scan(&permanent, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if permanent == 1 {
		return &models.Ban{Identity: identity}, nil
	}
	if expires == nil {
		return nil, nil
	}
	until := time.UnixMilli(*expires)
	if time.Now().After(until) {
		_ = s.ClearBan(ctx, identity)
		return nil, nil
	}
	return &models.Ban{Identity: identity, Until: &until}, nil
}

// AppendShared appends a message to the shared log.
func (s *SQLiteStore) AppendShared(ctx context.Context, msg *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (pair_key, id, author, body, kind, ts)
		VALUES ('', ?, ?, ?, ?, ?)
	`, msg.ID, msg.Author, msg.Body, msg.Kind, msg.Timestamp)
	return err
}

// AppendPrivate appends a message to the private log for pairKey.
func (s *SQLiteStore) AppendPrivate(ctx context.Context, pairKey string, msg *models.Message) error {
	a, b := SplitPairKey(pairKey)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (pair_key, id, author, body, kind, member_a, member_b, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, pairKey, msg.ID, msg.Author, msg.Body, msg.Kind, a, b, msg.Timestamp)
	return err
}

// ReadShared returns the shared log in order.
func (s *SQLiteStore) ReadShared(ctx context.Context) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, body, kind, ts FROM messages
		WHERE pair_key = ''
		ORDER BY ts, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Author, &m.Body, &m.Kind, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ReadPrivateFor returns every private log involving identity, keyed by pair
// key, each in order.
func (s *SQLiteStore) ReadPrivateFor(ctx context.Context, identity string) (map[string][]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair_key, id, author, body, kind, member_a, member_b, ts FROM messages
		WHERE member_a = ? OR member_b = ?
		ORDER BY ts, id
	`, identity, identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make(map[string][]models.Message)
	for rows.Next() {
		var m models.Message
		var key, a, b string
		if err := rows.Scan(&key, &m.ID, &m.Author, &m.Body, &m.Kind, &a, &b, &m.Timestamp); err != nil {
			return nil, err
		}
		if m.Author == a {
			m.Target = b
		} else {
			m.Target = a
		}
		logs[key] = append(logs[key], m)
	}
	return logs, rows.Err()
}

// DeleteFromShared removes id from the shared log if requester authored it.
func (s *SQLiteStore) DeleteFromShared(ctx context.Context, id, requester string) (bool, error) {
	return s.deleteMessage(ctx, "", id, requester)
}

// DeleteFromPrivate removes id from the pairKey log if requester authored it.
func (s *SQLiteStore) DeleteFromPrivate(ctx context.Context, pairKey, id, requester string) (bool, error) {
	return s.deleteMessage(ctx, pairKey, id, requester)
}

func (s *SQLiteStore) deleteMessage(ctx context.Context, pairKey, id, requester string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE pair_key = ? AND id = ? AND author = ?
	`, pairKey, id, requester)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

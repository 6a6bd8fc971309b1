package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pimiscool14/WebChat/internal/models"
)

// PostgresStore implements UserStore on PostgreSQL. Conversations stay in
// Redis or SQLite; Postgres holds the durable account and friend-graph state.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		identity TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS friend_requests (
		from_user TEXT NOT NULL,
		to_user TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (from_user, to_user)
	);

	CREATE TABLE IF NOT EXISTS friendships (
		user_a TEXT NOT NULL,
		user_b TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_a, user_b)
	);

	CREATE TABLE IF NOT EXISTS bans (
		identity TEXT PRIMARY KEY,
		permanent BOOLEAN NOT NULL DEFAULT FALSE,
		expires BIGINT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_to ON friend_requests(to_user);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new account record.
func (s *PostgresStore) CreateUser(ctx context.Context, identity, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO users (identity, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (identity) DO NOTHING
	`, identity, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

// GetUser retrieves an account by identity. Returns (nil, nil) when absent.
func (s *PostgresStore) GetUser(ctx context.Context, identity string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT identity, password_hash, created_at
		FROM users WHERE identity = $1
	`, identity).Scan(&user.Identity, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CountUsers returns the total number of registered accounts.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// AddFriendRequest queues a pending request for the ordered pair (from, to).
func (s *PostgresStore) AddFriendRequest(ctx context.Context, from, to string) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO friend_requests (from_user, to_user)
		VALUES ($1, $2)
		ON CONFLICT (from_user, to_user) DO NOTHING
	`, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

// DeleteFriendRequest removes the pending (from, to) request and reports
// whether it existed.
func (s *PostgresStore) DeleteFriendRequest(ctx context.Context, from, to string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM friend_requests WHERE from_user = $1 AND to_user = $2
	`, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// PendingFor returns the identities with a request waiting on identity,
// oldest first.
func (s *PostgresStore) PendingFor(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT from_user FROM friend_requests WHERE to_user = $1 ORDER BY created_at, from_user
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

// AddFriendship records the symmetric edge between a and b.
func (s *PostgresStore) AddFriendship(ctx context.Context, a, b string) error {
	if b < a {
		a, b = b, a
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO friendships (user_a, user_b)
		VALUES ($1, $2)
		ON CONFLICT (user_a, user_b) DO NOTHING
	`, a, b)
	return err
}

// AreFriends reports whether the symmetric edge between a and b exists.
func (s *PostgresStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if b < a {
		a, b = b, a
	}
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM friendships WHERE user_a = $1 AND user_b = $2
	`, a, b).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FriendsOf returns every identity sharing a friendship edge with identity.
func (s *PostgresStore) FriendsOf(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT CASE WHEN user_a = $1 THEN user_b ELSE user_a END
		FROM friendships
		WHERE user_a = $1 OR user_b = $1
		ORDER BY 1
	`, identity)
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
func (s *PostgresStore) SetBan(ctx context.Context, ban models.Ban) error {
	var expires *int64
	permanent := ban.Until == nil
	if ban.Until != nil {
		ms := ban.Until.UnixMilli()
		expires = &ms
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO bans (identity, permanent, expires)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET permanent = $2, expires = $3
	`, ban.Identity, permanent, expires)
	return err
}

// ClearBan removes any ban for the identity.
func (s *PostgresStore) ClearBan(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bans WHERE identity = $1`, identity)
	return err
}

// GetBan returns the active ban for identity, or (nil, nil) when there is
// none. Expired bans are dropped on read.
func (s *PostgresStore) GetBan(ctx context.Context, identity string) (*models.Ban, error) {
	var permanent bool
	var expires *int64
	err := s.pool.QueryRow(ctx, `
		SELECT permanent, expires FROM bans WHERE identity = $1
	`, identity).Scan(&permanent, &expires)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if permanent {
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

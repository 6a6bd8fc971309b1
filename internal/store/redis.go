package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Pimiscool14/WebChat/internal/models"
)

const sharedLogKey = "chat:shared"

// RedisConversationStore implements ConversationStore on Redis sorted sets,
// one set per log, scored by message timestamp.
type RedisConversationStore struct {
	client *redis.Client

	// Serializes delete's lookup-then-remove so two racing deletes of the
	// same log cannot interleave.
	mu sync.Mutex
}

// NewRedisConversationStore creates a new Redis-backed conversation store.
func NewRedisConversationStore(ctx context.Context, redisURL string) (*RedisConversationStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisConversationStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisConversationStore) Close() {
	s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisConversationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// pairLogKey returns the key for a private log's sorted set.
func pairLogKey(pairKey string) string {
	return fmt.Sprintf("chat:pair:%s", pairKey)
}

// memberPairsKey returns the key of the set listing the pair keys an identity
// participates in.
func memberPairsKey(identity string) string {
	return fmt.Sprintf("chat:member:%s:pairs", identity)
}

// AppendShared appends a message to the shared log.
func (s *RedisConversationStore) AppendShared(ctx context.Context, msg *models.Message) error {
	return s.append(ctx, sharedLogKey, msg)
}

// AppendPrivate appends a message to the private log for pairKey and records
// the pair against both participants for ReadPrivateFor.
func (s *RedisConversationStore) AppendPrivate(ctx context.Context, pairKey string, msg *models.Message) error {
	if err := s.append(ctx, pairLogKey(pairKey), msg); err != nil {
		return err
	}

	a, b := SplitPairKey(pairKey)
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, memberPairsKey(a), pairKey)
	pipe.SAdd(ctx, memberPairsKey(b), pairKey)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisConversationStore) append(ctx context.Context, key string, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
}

// ReadShared returns the shared log in order.
func (s *RedisConversationStore) ReadShared(ctx context.Context) ([]models.Message, error) {
	return s.readLog(ctx, sharedLogKey)
}

// ReadPrivateFor returns every private log involving identity, keyed by pair
// key, each in order.
func (s *RedisConversationStore) ReadPrivateFor(ctx context.Context, identity string) (map[string][]models.Message, error) {
	pairs, err := s.client.SMembers(ctx, memberPairsKey(identity)).Result()
	if err != nil {
		return nil, err
	}

	logs := make(map[string][]models.Message, len(pairs))
	for _, pairKey := range pairs {
		msgs, err := s.readLog(ctx, pairLogKey(pairKey))
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			logs[pairKey] = msgs
		}
	}
	return logs, nil
}

func (s *RedisConversationStore) readLog(ctx context.Context, key string) ([]models.Message, error) {
	results, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteFromShared removes id from the shared log if requester authored it.
func (s *RedisConversationStore) DeleteFromShared(ctx context.Context, id, requester string) (bool, error) {
	return s.deleteMessage(ctx, sharedLogKey, id, requester)
}

// DeleteFromPrivate removes id from the pairKey log if requester authored it.
func (s *RedisConversationStore) DeleteFromPrivate(ctx context.Context, pairKey, id, requester string) (bool, error) {
	return s.deleteMessage(ctx, pairLogKey(pairKey), id, requester)
}

func (s *RedisConversationStore) deleteMessage(ctx context.Context, key, id, requester string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, err
	}

	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		if msg.ID != id {
			continue
		}
		if msg.Author != requester {
			return false, nil
		}
		removed, err := s.client.ZRem(ctx, key, data).Result()
		if err != nil {
			return false, err
		}
		return removed > 0, nil
	}

	return false, nil
}

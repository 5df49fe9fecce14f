package store

import (
	"context"
	"encoding/json"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/agentflow/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/agentflow", "store")

// The redis store keeps each run's conversation in a Redis list.
// The keys namespace is organized as follows:
// - `/<prefix>/runstore/messages/<runID>` for storing run turns
type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption customizes the Redis-backed store.
type RedisOption func(*redisStore)

// WithTTL sets an expiration on each run's conversation key,
// refreshed on every append. Zero means no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *redisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed conversation store.
// All keys are placed under the given prefix.
func NewRedisStore(client *redis.Client, prefix string, opts ...RedisOption) ConversationStore {
	s := &redisStore{
		client: client,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (m *redisStore) getRedisMessagesKey(runID string) string {
	return path.Join(m.prefix, "runstore", "messages", runID)
}

func (m *redisStore) Messages(ctx context.Context, runID string) ([]llms.Message, error) {
	key := m.getRedisMessagesKey(runID)
	data, err := m.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to load messages from Redis")
	}

	var messages []llms.Message
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal message", "run", runID, "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *redisStore) Append(ctx context.Context, runID string, msgs ...llms.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	key := m.getRedisMessagesKey(runID)
	pipe := m.client.Pipeline()
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		pipe.RPush(ctx, key, data)
	}
	if m.ttl > 0 {
		pipe.Expire(ctx, key, m.ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to store messages in Redis")
	}
	return nil
}

func (m *redisStore) Reset(ctx context.Context, runID string) error {
	key := m.getRedisMessagesKey(runID)
	err := m.client.Del(ctx, key).Err()
	if err != nil {
		return errors.Wrap(err, "failed to reset run in Redis")
	}
	return nil
}

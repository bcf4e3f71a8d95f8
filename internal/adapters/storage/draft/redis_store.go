package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	domain "courseform/internal/domain/course"
)

const redisKeyPrefix = "courseform:form:"

// RedisStore keeps form sessions in Redis so several server instances can share them.
// Each save refreshes the key's expiry, so idle sessions disappear after ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a Redis client.
// PRE: client is connected; ttl > 0
// POST: Returns a store writing keys under "courseform:form:"
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get retrieves a form session by ID.
// PRE: id is non-empty
// POST: Returns the form, or ErrNotFound if the key is missing or expired
func (s *RedisStore) Get(ctx context.Context, id string) (domain.Form, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Form{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Form{}, fmt.Errorf("redis get form session: %w", err)
	}
	var form domain.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return domain.Form{}, fmt.Errorf("decode form session %s: %w", id, err)
	}
	return form, nil
}

// Save stores the form session and resets its expiry.
// PRE: form.ID is non-empty
// POST: Key is written with the store's ttl
func (s *RedisStore) Save(ctx context.Context, form domain.Form) error {
	if form.ID == "" {
		return fmt.Errorf("save form session: empty id")
	}
	data, err := json.Marshal(form)
	if err != nil {
		return fmt.Errorf("encode form session %s: %w", form.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(form.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set form session: %w", err)
	}
	return nil
}

// Delete removes a form session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del form session: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

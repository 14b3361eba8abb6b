package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "invoicedesk:idempotency:"

// RedisStore keeps idempotency records in Redis, claiming keys with SET NX.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) Begin(ctx context.Context, key, fingerprint string, ttl time.Duration) (Record, bool, error) {
	if key == "" {
		return Record{}, false, ErrKeyRequired
	}
	if ttl <= 0 {
		return Record{}, false, errors.New("idempotency ttl must be positive")
	}

	rec := Record{
		Fingerprint: fingerprint,
		Status:      StatusPending,
		ExpiresAt:   time.Now().UTC().Add(ttl),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Record{}, false, err
	}

	// A key can expire between SETNX and GET; one more round settles it.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, data, ttl).Result()
		if err != nil {
			return Record{}, false, err
		}
		if ok {
			return rec, true, nil
		}

		raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Record{}, false, err
		}
		var existing Record
		if err := json.Unmarshal(raw, &existing); err != nil {
			return Record{}, false, err
		}
		return existing, false, nil
	}
	return Record{}, false, errors.New("idempotency key contended")
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	if key == "" {
		return ErrKeyRequired
	}
	rec.Status = StatusCompleted
	rec.ExpiresAt = time.Now().UTC().Add(ttl)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

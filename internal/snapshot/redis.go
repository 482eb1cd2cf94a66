package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces snapshot keys in a shared Redis instance.
const keyPrefix = "audittrail:snapshot:"

// maxMergeRetries bounds optimistic-lock retries when merging concurrently.
const maxMergeRetries = 5

// RedisStore is a Store backed by Redis with a per-snapshot TTL. A snapshot
// that outlives its TTL reads as absent, which detectors already handle as
// "no old data".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. Every snapshot expires ttl
// after it was first captured.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key Key) string {
	return keyPrefix + key.String()
}

// Capture implements Store using SETNX so the first writer wins.
func (s *RedisStore) Capture(ctx context.Context, key Key, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	if err := s.client.SetNX(ctx, redisKey(key), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("capturing snapshot %s: %w", key, err)
	}
	return nil
}

// Consume implements Store using GETDEL so two consumers never both see it.
func (s *RedisStore) Consume(ctx context.Context, key Key) (map[string]any, bool, error) {
	raw, err := s.client.GetDel(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("consuming snapshot %s: %w", key, err)
	}
	return decode(key, raw)
}

// Peek implements Store.
func (s *RedisStore) Peek(ctx context.Context, key Key) (map[string]any, bool, error) {
	raw, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return decode(key, raw)
}

// Merge implements Store with a WATCH/MULTI transaction. The remaining TTL
// of an existing snapshot is kept.
func (s *RedisStore) Merge(ctx context.Context, key Key, partial map[string]any) error {
	rk := redisKey(key)

	txf := func(tx *redis.Tx) error {
		current := make(map[string]any)
		exists := true

		raw, err := tx.Get(ctx, rk).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if data, ok, _ := decode(key, raw); ok {
				current = data
			}
		}

		for k, v := range partial {
			current[k] = v
		}
		payload, err := json.Marshal(current)
		if err != nil {
			return fmt.Errorf("encoding snapshot %s: %w", key, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if exists {
				pipe.SetArgs(ctx, rk, payload, redis.SetArgs{KeepTTL: true})
			} else {
				pipe.Set(ctx, rk, payload, s.ttl)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxMergeRetries; attempt++ {
		err := s.client.Watch(ctx, txf, rk)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("merging snapshot %s: %w", key, err)
	}
	return fmt.Errorf("merging snapshot %s: too many concurrent writers", key)
}

// Expire implements Store. Redis drops keys on TTL, so there is nothing to
// sweep.
func (s *RedisStore) Expire(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

// decode parses a stored payload. Corrupt payloads are logged and read as
// absent.
func decode(key Key, raw []byte) (map[string]any, bool, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		slog.Warn("discarding unreadable snapshot",
			slog.String("key", key.String()),
			slog.Any("error", errors.Join(ErrCorrupt, err)),
		)
		return nil, false, nil
	}
	return data, true, nil
}

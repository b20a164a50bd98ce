package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanCount = 200

// RedisStore keeps every key as a plain redis string, namespaced by an optional prefix.
// Pattern: {namespace}:{segment}:{segment}...
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(rdb *redis.Client, namespace string) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client must not be nil")
	}
	return &RedisStore{rdb: rdb, namespace: strings.TrimSpace(namespace)}, nil
}

func (s *RedisStore) key(key Key) string {
	return encodeKey(s.namespace, key)
}

func (s *RedisStore) Get(ctx context.Context, key Key) ([]byte, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, prefix Key) ([]Entry, error) {
	encodedPrefix := encodePrefix(s.namespace, prefix)
	pattern := escapeGlob(encodedPrefix) + "*"

	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	sort.Strings(keys)

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", prefix, err)
	}

	entries := make([]Entry, 0, len(keys))
	for i, raw := range keys {
		// the key may have been removed between SCAN and MGET
		value, ok := values[i].(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Key: decodeKey(s.namespace, raw), Value: []byte(value)})
	}

	return entries, nil
}

func (s *RedisStore) Commit(ctx context.Context, batch *Batch) error {
	ops := batch.Ops()
	if len(ops) == 0 {
		return nil
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, op := range ops {
			switch op.Kind {
			case OpSet:
				pipe.Set(ctx, s.key(op.Key), op.Value, 0)
			case OpDelete:
				pipe.Del(ctx, s.key(op.Key))
			default:
				return fmt.Errorf("unknown batch operation %d", op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to commit batch of %d operations: %w", len(ops), err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(value string) string {
	return globEscaper.Replace(value)
}

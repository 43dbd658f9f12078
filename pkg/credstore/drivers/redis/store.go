// Package redis is a persistent credential backend on Redis, for machines whose
// home directory is not durable.
package redis

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tickerwatch/pkg/credstore"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "tickerwatch:cred:"

type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ credstore.Backend = (*Store)(nil)

// NewStore wraps an existing client. An empty prefix selects DefaultPrefix.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Ping verifies the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) key(k string) string { return s.prefix + k }

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", credstore.ErrNotFound
	}
	return value, err
}

// Set writes without expiry; persistent values live until erased.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

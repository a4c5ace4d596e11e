package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// KeyValueStore keeps sheet slots as plain Redis strings:
//
//	SET {prefix}{key} {json}
//
// Concurrent reads of the same slot share one round trip.
type KeyValueStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	sf     singleflight.Group
}

// NewKeyValueStore builds a store. A ttl of zero keeps slots forever.
func NewKeyValueStore(client *redis.Client, prefix string, ttl time.Duration) *KeyValueStore {
	return &KeyValueStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

type slot struct {
	value string
	ok    bool
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	redisKey := s.redisKey(key)
	result, err, _ := s.sf.Do(redisKey, func() (interface{}, error) {
		value, err := s.client.Get(ctx, redisKey).Result()
		if errors.Is(err, redis.Nil) {
			return slot{}, nil
		}
		if err != nil {
			return slot{}, err
		}
		return slot{value: value, ok: true}, nil
	})
	if err != nil {
		return "", false, err
	}
	got := result.(slot)
	return got.value, got.ok, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	// Forget any in-flight read so the next Get observes this write.
	s.sf.Forget(s.redisKey(key))
	return s.client.Set(ctx, s.redisKey(key), value, s.ttl).Err()
}

func (s *KeyValueStore) redisKey(key string) string {
	return s.prefix + key
}

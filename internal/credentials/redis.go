package credentials

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis as the backing store.
// Values are stored as plain strings under key: "<prefix><origin>:<key>" without TTL;
// token lifetime is owned by the issuing API.
type RedisStore struct {
	client *redis.Client
	prefix string
	origin string
}

// NewRedisStore creates a Redis-based credential store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix, origin string) *RedisStore {
	if prefix == "" {
		prefix = "eis:credentials:"
	}
	return &RedisStore{client: client, prefix: prefix, origin: origin}
}

func (r *RedisStore) key(k Key) string {
	return r.prefix + r.origin + ":" + string(k)
}

func (r *RedisStore) Get(ctx context.Context, key Key) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key Key, value string) error {
	if err := checkSet(key, value); err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

func (r *RedisStore) Remove(ctx context.Context, key Key) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

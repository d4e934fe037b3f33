package session

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as one Redis hash, expiring TTL after the
// last write.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisStore connects to the Redis instance at url.
func NewRedisStore(url, namespace string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisStoreWithClient(redis.NewClient(opt), namespace, ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(rdb *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	if namespace == "" {
		namespace = Namespace
	}
	return &RedisStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (r *RedisStore) key(sid string) string {
	return r.namespace + ":" + sid
}

// Ping checks connectivity.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

// Get returns one field of the session hash.
func (r *RedisStore) Get(ctx context.Context, sid, key string) (string, bool, error) {
	if sid == "" {
		return "", false, ErrNoSession
	}
	v, err := r.rdb.HGet(ctx, r.key(sid), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// GetAll returns the whole session hash.
func (r *RedisStore) GetAll(ctx context.Context, sid string) (map[string]string, error) {
	if sid == "" {
		return nil, ErrNoSession
	}
	return r.rdb.HGetAll(ctx, r.key(sid)).Result()
}

// SetMany writes fields into the session hash and refreshes its TTL.
func (r *RedisStore) SetMany(ctx context.Context, sid string, values map[string]string) error {
	return r.Replace(ctx, sid, nil, values)
}

// Replace deletes unset and writes values in one MULTI/EXEC transaction.
func (r *RedisStore) Replace(ctx context.Context, sid string, unset []string, values map[string]string) error {
	if sid == "" {
		return ErrNoSession
	}
	if len(unset) == 0 && len(values) == 0 {
		return nil
	}
	key := r.key(sid)
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		if len(unset) > 0 {
			p.HDel(ctx, key, unset...)
		}
		if len(values) > 0 {
			args := make([]interface{}, 0, len(values)*2)
			for k, v := range values {
				args = append(args, k, v)
			}
			p.HSet(ctx, key, args...)
			if r.ttl > 0 {
				p.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	return err
}

// Unset deletes fields from the session hash.
func (r *RedisStore) Unset(ctx context.Context, sid string, keys ...string) error {
	if sid == "" {
		return ErrNoSession
	}
	if len(keys) == 0 {
		return nil
	}
	return r.rdb.HDel(ctx, r.key(sid), keys...).Err()
}

// Destroy deletes the session hash.
func (r *RedisStore) Destroy(ctx context.Context, sid string) error {
	if sid == "" {
		return ErrNoSession
	}
	return r.rdb.Del(ctx, r.key(sid)).Err()
}

var _ Store = (*RedisStore)(nil)

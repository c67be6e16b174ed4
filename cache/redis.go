package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be taken before the context ended.
var ErrLockTimeout = errors.New("cache: lock not acquired")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	GenerateKey(operation, key string) string
}

// Locker serializes work on a key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type RedisCache struct {
	client      *redis.Client
	serviceName string
	retryEvery  time.Duration
	newToken    func() string
}

func NewRedisCache(client *redis.Client, serviceName string) *RedisCache {
	return &RedisCache{
		client:      client,
		serviceName: serviceName,
		retryEvery:  50 * time.Millisecond,
		newToken:    uuid.NewString,
	}
}

// Get returns "" and no error on a miss.
func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// Acquire polls SET NX until the lock is taken or ctx is done. The returned
// release func never fails the caller; an expired lock simply is not deleted.
func (r *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := r.GenerateKey("lock", key)
	token := r.newToken()

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("cache: acquire %s: %w", lockKey, err)
		}
		if ok {
			return func() {
				// detached from ctx so a cancelled request still releases
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = r.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockKey)
		case <-time.After(r.retryEvery):
		}
	}
}

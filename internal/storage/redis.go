package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/firescope/resource-governor/internal/circuitbreaker"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrKeyNotFound is returned when a key does not exist in the store
	ErrKeyNotFound = errors.New("storage: key not found")
)

// Minimal counter-store contract shared by the Redis client and the
// in-memory store. The rate limiter only ever talks to this interface.
type CounterStore interface {
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
	Ping(ctx context.Context) error
}

// Plain key/value cache contract used by services that cache lookups
// (tier resolution). Both stores implement it alongside CounterStore.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Full store surface, satisfied by both RedisClient and MemoryStore
type Store interface {
	CounterStore
	Cache
}

// Redis-backed CounterStore. All commands go through a circuit breaker so
// a dead Redis is not hammered on every request; an open breaker surfaces
// as an error, which callers treat the same as any other store failure.
type RedisClient struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
}

func NewRedis(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisClient{
		client:  client,
		breaker: circuitbreaker.New(circuitbreaker.Config{}),
	}, nil
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	var val string
	var missing bool

	err := r.breaker.Call(func() error {
		v, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// A missing key is not a store failure
			missing = true
			return nil
		}
		val = v
		return err
	})

	if err != nil {
		return "", err
	}
	if missing {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.breaker.Call(func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

func (r *RedisClient) Del(ctx context.Context, key string) error {
	return r.breaker.Call(func() error {
		return r.client.Del(ctx, key).Err()
	})
}

func (r *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	var count int64
	err := r.breaker.Call(func() error {
		var err error
		count, err = r.client.Incr(ctx, key).Result()
		return err
	})
	return count, err
}

func (r *RedisClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.breaker.Call(func() error {
		return r.client.Expire(ctx, key, ttl).Err()
	})
}

func (r *RedisClient) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.breaker.Call(func() error {
		return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	})
}

func (r *RedisClient) ZCount(ctx context.Context, key string, min, max float64) (int64, error) {
	var count int64
	err := r.breaker.Call(func() error {
		var err error
		count, err = r.client.ZCount(ctx, key, formatScore(min), formatScore(max)).Result()
		return err
	})
	return count, err
}

func (r *RedisClient) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	return r.breaker.Call(func() error {
		return r.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
	})
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.breaker.Call(func() error {
		return r.client.Ping(ctx).Err()
	})
}

// Returns current breaker metrics for the admin status endpoint
func (r *RedisClient) BreakerMetrics() circuitbreaker.Metrics {
	return r.breaker.Metrics()
}

// Manually closes the breaker after an operator intervention
func (r *RedisClient) ResetBreaker() {
	r.breaker.Reset()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

package schedule

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Lock claims a schedule slot across processes.
type Lock interface {
	Acquire(ctx context.Context, slot string) (bool, error)
	Release(ctx context.Context, slot string) error
}

// NopLock always acquires. With it the scheduler is at most once per
// process, backed only by the persisted last run.
type NopLock struct{}

func (NopLock) Acquire(context.Context, string) (bool, error) { return true, nil }
func (NopLock) Release(context.Context, string) error         { return nil }

// RedisClient is the subset of *redis.Client used by RedisLock.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const lockPrefix = "idea-scout:slot:"

// RedisLock claims slots with SET NX. A claimed slot stays held until the
// TTL expires so that late pollers in other processes skip it.
type RedisLock struct {
	client RedisClient
	ttl    time.Duration
	owner  string
}

// NewRedisLock creates a lock. ttl should exceed the slot's minute window.
func NewRedisLock(client RedisClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = time.Hour
	}
	host, _ := os.Hostname()
	return &RedisLock{client: client, ttl: ttl, owner: fmt.Sprintf("%s:%d", host, os.Getpid())}
}

func (l *RedisLock) Acquire(ctx context.Context, slot string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+slot, l.owner, l.ttl).Result()
	if err != nil {
		return false, eris.Wrapf(err, "schedule: redis setnx %s", slot)
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context, slot string) error {
	if err := l.client.Del(ctx, lockPrefix+slot).Err(); err != nil {
		return eris.Wrapf(err, "schedule: redis del %s", slot)
	}
	return nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "schedule: redis ping %s", addr)
	}
	return client, nil
}

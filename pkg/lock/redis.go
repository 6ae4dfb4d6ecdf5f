package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries our token, so an
// expired lease never removes a lock re-acquired by another runner.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// renewScript pushes the expiry forward while the key still carries our token.
const renewScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisLocker implements Locker with SET NX PX. A lease renews itself every
// third of its ttl until released, so a run outlasting ttl keeps the lock.
type RedisLocker struct {
	client redisClient
	prefix string
}

// NewRedisLocker builds a locker; keys are namespaced with prefix.
func NewRedisLocker(client redisClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes key for ttl or returns ErrNotAcquired.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock %s: ttl must be positive", key)
	}
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	lease := &redisLease{
		client: l.client,
		key:    fullKey,
		token:  token,
		ttl:    ttl,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go lease.keepAlive()
	return lease, nil
}

type redisLease struct {
	client redisClient
	key    string
	token  string
	ttl    time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (r *redisLease) keepAlive() {
	defer close(r.done)

	every := r.ttl / 3
	if every <= 0 {
		every = r.ttl
	}
	ms := r.ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			held, err := r.client.Eval(ctx, renewScript, []string{r.key}, r.token, ms).Int64()
			cancel()
			// Transient errors retry on the next tick; a lost key ends renewal.
			if err == nil && held == 0 {
				return
			}
		}
	}
}

func (r *redisLease) Release(ctx context.Context) error {
	r.once.Do(func() { close(r.stop) })
	<-r.done
	if err := r.client.Eval(ctx, releaseScript, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", r.key, err)
	}
	return nil
}

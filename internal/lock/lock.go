// Package lock provides the per-reservation in-flight guard used by payment
// verification.  A guard is advisory: a caller that fails to acquire it
// skips the provider call and reports the stored status instead.
package lock

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/redis/go-redis/v9"
)

// Release frees a held guard.  It is safe to call more than once.
type Release func()

// Guard is satisfied by both the Redis and in-process implementations.
type Guard interface {
    TryAcquire(ctx context.Context, key string) (Release, bool, error)
}

// releaseScript deletes the key only when it still carries our token, so an
// expired guard that someone else re-acquired is left alone.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisGuard holds guards as SET NX PX keys so that several server replicas
// share them.  TTL bounds how long a crashed holder can block others.
type RedisGuard struct {
    rdb    *redis.Client
    prefix string
    ttl    time.Duration
}

func NewRedisGuard(rdb *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
    if prefix == "" {
        prefix = "inflight"
    }
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    return &RedisGuard{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) TryAcquire(ctx context.Context, key string) (Release, bool, error) {
    k := g.prefix + ":" + key
    token := uuid.NewString()
    ok, err := g.rdb.SetNX(ctx, k, token, g.ttl).Result()
    if err != nil || !ok {
        return func() {}, false, err
    }
    var once sync.Once
    return func() {
        once.Do(func() {
            ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
            defer cancel()
            _ = releaseScript.Run(ctx, g.rdb, []string{k}, token).Err()
        })
    }, true, nil
}

// LocalGuard is the single-process fallback used when Redis is unavailable.
type LocalGuard struct {
    mu   sync.Mutex
    held map[string]struct{}
}

func NewLocalGuard() *LocalGuard { return &LocalGuard{held: map[string]struct{}{}} }

func (g *LocalGuard) TryAcquire(_ context.Context, key string) (Release, bool, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    if _, busy := g.held[key]; busy {
        return func() {}, false, nil
    }
    g.held[key] = struct{}{}
    var once sync.Once
    return func() {
        once.Do(func() {
            g.mu.Lock()
            delete(g.held, key)
            g.mu.Unlock()
        })
    }, true, nil
}

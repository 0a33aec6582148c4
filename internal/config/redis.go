package config

import (
    "context"
    "crypto/tls"
    "fmt"
    "os"
    "time"

    "github.com/redis/go-redis/v9"
)

// redisOptions resolves the connection settings.  REDIS_URL wins when set;
// otherwise REDIS_HOST with REDIS_PORT, then REDIS_ADDR, then localhost.
// REDIS_PASSWORD, REDIS_DB and REDIS_TLS apply to the non-URL form.
func redisOptions() (*redis.Options, error) {
    if url := os.Getenv("REDIS_URL"); url != "" {
        opt, err := redis.ParseURL(url)
        if err != nil {
            return nil, fmt.Errorf("REDIS_URL: %w", err)
        }
        return opt, nil
    }
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
        addr = host + ":" + port
    }
    opt := &redis.Options{
        Addr:         addr,
        Password:     os.Getenv("REDIS_PASSWORD"),
        DB:           envInt("REDIS_DB", 0),
        DialTimeout:  2 * time.Second,
        ReadTimeout:  time.Second,
        WriteTimeout: time.Second,
    }
    if envBool("REDIS_TLS", false) {
        opt.TLSConfig = &tls.Config{
            MinVersion:         tls.VersionTLS12,
            InsecureSkipVerify: envBool("REDIS_TLS_INSECURE", false),
        }
    }
    return opt, nil
}

// NewRedisClient connects to Redis and pings it.  It returns nil when the
// settings are invalid or the server does not answer within two seconds;
// callers then fall back to in-process locks and ledger totals and run
// without the cache and rate limiter.
func NewRedisClient() *redis.Client {
    opt, err := redisOptions()
    if err != nil {
        return nil
    }
    client := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}

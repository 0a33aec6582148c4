package middleware

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/sound-rental/internal/config"
    "github.com/iliyamo/sound-rental/internal/logx"
)

// takeScript refills the bucket continuously (per_ms tokens per millisecond,
// capped at capacity) and then tries to take one token.  The fractional
// token count is stored as a string so it survives the round trip through
// Redis.  It returns {allowed, whole tokens left, ms until the next token}.
var takeScript = redis.NewScript(`
local key      = KEYS[1]
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local per_ms   = tonumber(ARGV[3])
local ttl_ms   = tonumber(ARGV[4])

local tokens = tonumber(redis.call('HGET', key, 't'))
local ts     = tonumber(redis.call('HGET', key, 'ts'))
if tokens == nil or ts == nil then
    tokens = capacity
    ts = now
end
tokens = math.min(capacity, tokens + math.max(0, now - ts) * per_ms)

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
else
    wait_ms = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', key, 't', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', key, ttl_ms)
return { allowed, math.floor(tokens), wait_ms }
`)

var errUnexpectedReply = errors.New("ratelimit: unexpected script reply")

type decision struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

// bucket is one token-bucket policy backed by Redis, shared by every replica.
type bucket struct {
    rdb      *redis.Client
    capacity int
    perMs    float64
    ttl      time.Duration
}

func (b *bucket) take(ctx context.Context, key string) (decision, error) {
    res, err := takeScript.Run(ctx, b.rdb, []string{key},
        time.Now().UnixMilli(), b.capacity, b.perMs, b.ttl.Milliseconds(),
    ).Int64Slice()
    if err != nil {
        return decision{}, err
    }
    if len(res) != 3 {
        return decision{}, errUnexpectedReply
    }
    return decision{
        allowed:   res[0] == 1,
        remaining: res[1],
        retry:     time.Duration(res[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket limits the quote and submission endpoints.  Each key (by
// default client IP plus route) gets Capacity requests in a burst and then
// RefillTokens per RefillInterval.  Without Redis the middleware is a
// pass-through, and a Redis error lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if cfg.Capacity < 1 {
        cfg.Capacity = 1
    }
    if cfg.RefillTokens < 1 {
        cfg.RefillTokens = 1
    }
    if cfg.RefillInterval < time.Millisecond {
        cfg.RefillInterval = time.Second
    }
    if cfg.TTL < cfg.RefillInterval {
        cfg.TTL = 5 * cfg.RefillInterval
    }
    b := &bucket{
        rdb:      rdb,
        capacity: cfg.Capacity,
        perMs:    float64(cfg.RefillTokens) / float64(cfg.RefillInterval.Milliseconds()),
        ttl:      cfg.TTL,
    }
    limit := strconv.Itoa(cfg.Capacity)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ctx := c.Request().Context()
            key := rateKey(cfg, c)
            d, err := b.take(ctx, key)
            if err != nil {
                logx.Warn(ctx, "ratelimit: redis error", slog.String("key", key), logx.Err(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", limit)
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if d.allowed {
                return next(c)
            }

            secs := int((d.retry + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                logx.Info(ctx, "ratelimit: blocked", slog.String("key", key), slog.Duration("retry", d.retry))
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "rate_limited",
                "retry_after": secs,
            })
        }
    }
}

// rateKey derives the bucket key.  Strategies: "ip", "ip_route" (default)
// and "operator_route", which keys authenticated operators by their id.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    route := c.Request().Method + " " + c.Path()
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        return cfg.Prefix + ":ip:" + ip
    case "operator_route":
        return cfg.Prefix + ":op:" + OperatorID(c) + ":" + route
    }
    return cfg.Prefix + ":ip:" + ip + ":" + route
}

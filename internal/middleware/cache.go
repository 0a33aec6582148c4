package middleware

import (
    "bytes"
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/sound-rental/internal/config"
    "github.com/iliyamo/sound-rental/internal/logx"
)

// cachedResponse is the value stored per cache key.  Headers are kept so a
// hit is byte-for-byte what the handler produced.
type cachedResponse struct {
    Status int         `json:"status"`
    Header http.Header `json:"header"`
    Body   []byte      `json:"body"`
}

// bodyRecorder forwards the response to the client and keeps a copy of the
// body as long as it stays under limit.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.overflow {
        if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
            r.overflow = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// cacheKey hashes method and route pattern, plus the canonical query string
// unless the strategy is "route".  Query parameters are re-encoded in sorted
// order so ?a=1&b=2 and ?b=2&a=1 share an entry.
func cacheKey(cfg config.CacheConfig, c echo.Context) string {
    h := sha256.New()
    h.Write([]byte(c.Request().Method))
    h.Write([]byte{0})
    h.Write([]byte(c.Path()))
    if !strings.EqualFold(cfg.KeyStrategy, "route") {
        h.Write([]byte{0})
        h.Write([]byte(c.QueryParams().Encode()))
    }
    return cfg.Prefix + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// NewRedisCache caches successful responses of read-only endpoints (the
// catalogue and the city lookup) in Redis for cfg.TTL.  Responses other than
// 200 and bodies larger than MaxBodyBytes are never stored.  Without Redis
// the middleware is a pass-through; Redis errors degrade to a miss.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key := cacheKey(cfg, c)

            if raw, err := rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(raw, &hit) == nil && hit.Status != 0 {
                    h := c.Response().Header()
                    for k, vals := range hit.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    c.Response().WriteHeader(hit.Status)
                    _, err := c.Response().Write(hit.Body)
                    return err
                }
            } else if err != redis.Nil {
                logx.Warn(ctx, "cache: redis get failed", logx.Err(err))
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow {
                return nil
            }

            entry := cachedResponse{Status: rec.status, Header: c.Response().Header().Clone(), Body: rec.buf.Bytes()}
            entry.Header.Del("X-Cache")
            payload, err := json.Marshal(entry)
            if err != nil {
                return nil
            }
            // detached from the request, which is already answered
            wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
            defer cancel()
            if err := rdb.Set(wctx, key, payload, ttl).Err(); err != nil {
                logx.Warn(ctx, "cache: redis set failed", logx.Err(err))
            }
            return nil
        }
    }
}

package config

import (
    "strings"
    "time"
)

// RateLimitConfig drives the Redis token bucket in front of the quote and
// submission endpoints.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // burst size
    RefillTokens   int           // tokens added every RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets are dropped after this
    KeyStrategy    string        // ip, ip_route or operator_route
    Prefix         string
    Debug          bool          // expose the bucket key and log blocks
}

var rateKeyStrategies = map[string]bool{"ip": true, "ip_route": true, "operator_route": true}

// LoadRateLimitConfig reads RATE_LIMIT_* and normalises the result: at least
// one token of capacity and refill, and a TTL of no less than five refill
// intervals so a bucket is not evicted while it is still refilling.
func LoadRateLimitConfig() RateLimitConfig {
    rl := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       max(envInt("RATE_LIMIT_CAPACITY", 30), 1),
        RefillTokens:   max(envInt("RATE_LIMIT_REFILL_TOKENS", 1), 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route")),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if rl.RefillInterval <= 0 {
        rl.RefillInterval = time.Second
    }
    rl.TTL = max(rl.TTL, 5*rl.RefillInterval)
    if !rateKeyStrategies[rl.KeyStrategy] {
        rl.KeyStrategy = "ip_route"
    }
    return rl
}

package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"provalab-api/pkg/apperr"
	"provalab-api/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// tokenBucket refills refill_tokens every interval_ms up to capacity and
// returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = interval_ms - (now_ms - last_refill)
		if retry_after_ms < 0 then retry_after_ms = 0 end
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`)

// Throttle is a per-IP, per-path token bucket kept in Redis. It fails open:
// a nil client, a disabled config or a Redis error lets the request through.
func Throttle(rdb redis.Scripter, cfg utils.RateLimitConfig, now func() time.Time, logger *zap.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled || rdb == nil || cfg.Capacity <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := throttleKey(cfg.Prefix, r)
			args := []any{
				now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL / time.Second),
			}

			vals, err := tokenBucket.Run(r.Context(), rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				logger.Warn("Throttle unavailable, allowing request", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if !allowed {
				secs := int64(math.Ceil(float64(retryMs) / 1000.0))
				logger.Info("Request throttled", zap.String("key", key), zap.Int64("retry_after", secs))
				utils.ResponseError(w, apperr.RateLimited("Too many requests. Slow down", time.Duration(secs)*time.Second))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func throttleKey(prefix string, r *http.Request) string {
	ip := utils.ClientIP(r)
	if ip == "" {
		ip = "unknown"
	}
	if prefix == "" {
		prefix = "rl"
	}
	return strings.Join([]string{prefix, "ip", ip, "route", fmt.Sprintf("%s %s", r.Method, r.URL.Path)}, ":")
}

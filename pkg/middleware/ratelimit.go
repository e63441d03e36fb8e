package middleware

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds fixed-window rate limit settings.
type RateLimitConfig struct {
	// Requests allowed per window per client.
	Limit int
	// Window length.
	Window time.Duration
	// Prefix isolates counters per route group, e.g. "ratelimit:auth".
	Prefix string
}

// RateLimit returns middleware enforcing a fixed-window rate limit per client
// IP, backed by Redis. On Redis errors the request is allowed through; rate
// limiting degrades rather than taking the service down.
func RateLimit(client *redis.Client, cfg RateLimitConfig, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.Prefix + ":" + clientIP(r)

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				l.WarnContext(r.Context(), "rate limit check failed, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, cfg.Window)
			}

			if count > int64(cfg.Limit) {
				retryAfter := cfg.Window
				if ttl, err := client.TTL(r.Context(), key).Result(); err == nil && ttl > 0 {
					retryAfter = ttl
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many requests, slow down",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Package ratelimit provides a Redis fixed-window request limiter as HTTP middleware.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Policy describes one limiter: at most Limit requests per Window, after
// which the client is blocked for Block.
type Policy struct {
	Prefix string
	Limit  int
	Window time.Duration
	Block  time.Duration
}

// Limiter applies policies against a shared Redis client.
type Limiter struct {
	rdb redis.UniversalClient
	log *zap.Logger
}

// New returns a limiter. A nil client disables limiting.
func New(rdb redis.UniversalClient, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{rdb: rdb, log: log}
}

// ClientKey identifies the caller by remote host. Run chi's RealIP first to
// honour proxy headers.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces p. Redis errors let the request through.
func (l *Limiter) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil || l.rdb == nil || p.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := p.Prefix + ":ip:" + ClientKey(r)
			blockKey := key + ":blocked"

			if ttl, err := l.rdb.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
				deny(w, ttl)
				return
			}

			// ExpireNX also repairs a counter left without a TTL.
			var incr *redis.IntCmd
			_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				incr = pipe.Incr(ctx, key)
				pipe.ExpireNX(ctx, key, p.Window)
				return nil
			})
			if err != nil {
				l.log.Warn("rate limiter unavailable, allowing request", zap.String("prefix", p.Prefix), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			count := incr.Val()

			if count > int64(p.Limit) {
				if p.Block > 0 {
					if err := l.rdb.Set(ctx, blockKey, "1", p.Block).Err(); err != nil {
						l.log.Warn("rate limit block not stored", zap.String("prefix", p.Prefix), zap.Error(err))
					}
					deny(w, p.Block)
					return
				}
				ttl, _ := l.rdb.TTL(ctx, key).Result()
				deny(w, ttl)
				return
			}

			ttl, _ := l.rdb.TTL(ctx, key).Result()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(p.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(p.Limit-int(count)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(int(ttl.Seconds())))
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": "Too many requests. Try again in " + strconv.Itoa(secs) + "s",
		"code":    "RATE_LIMITED",
	})
}

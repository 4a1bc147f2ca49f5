package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jmhill/demo-todo-sub000/pkg/audit"
	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
)

// RateLimiter decides whether a key may proceed within the current
// window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisRateLimiter is a fixed-window counter shared across nodes. The
// first hit in a window creates the counter with an expiry; subsequent
// hits increment it.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "todod:ratelimit:",
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, key, time.Now().Unix()/int64(l.window.Seconds()))

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// MemoryRateLimiter is a single-node fixed-window counter for tests and
// development.
type MemoryRateLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	window time.Duration
	limit  int
	epoch  int64
	now    func() time.Time
}

func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		counts: make(map[string]int),
		window: window,
		limit:  limit,
		now:    func() time.Time { return time.Now() },
	}
}

func (l *MemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	epoch := l.now().Unix() / int64(l.window.Seconds())
	if epoch != l.epoch {
		l.epoch = epoch
		l.counts = make(map[string]int)
	}
	l.counts[key]++
	return l.counts[key] <= l.limit, nil
}

// RateLimit limits requests per client. The key is the authenticated
// user when present, else the client address. Limiter faults fail open:
// losing redis must degrade to unlimited, not to an outage.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := audit.ClientIP(r)
			if p := PrincipalFromContext(r.Context()); p != nil {
				key = "user:" + p.UserID
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.LogAttrs(r.Context(), slog.LevelWarn, "rate limiter unavailable",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				httputil.WriteTooManyRequests(w, "request rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

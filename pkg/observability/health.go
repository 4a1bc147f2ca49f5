package observability

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jmhill/demo-todo-sub000/pkg/httputil"
)

// HealthChecker reports the readiness of one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// Health aggregates dependency checks behind liveness and readiness
// endpoints.
type Health struct {
	mu       sync.RWMutex
	checkers []HealthChecker
}

func NewHealth(checkers ...HealthChecker) *Health {
	return &Health{checkers: checkers}
}

// Register adds a checker after construction.
func (h *Health) Register(c HealthChecker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

// LivenessHandler always reports ok once the process is serving.
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// ReadinessHandler runs every dependency check and reports 503 when any
// fails.
func (h *Health) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		checkers := make([]HealthChecker, len(h.checkers))
		copy(checkers, h.checkers)
		h.mu.RUnlock()

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		results := make(map[string]string, len(checkers))
		healthy := true
		for _, c := range checkers {
			if err := c.Check(ctx); err != nil {
				results[c.Name()] = err.Error()
				healthy = false
			} else {
				results[c.Name()] = "ok"
			}
		}

		status := http.StatusOK
		overall := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}
		_ = httputil.WriteJSON(w, status, map[string]interface{}{
			"status": overall,
			"checks": results,
		})
	}
}

// DBChecker pings PostgreSQL.
type DBChecker struct {
	DB *sql.DB
}

func (c DBChecker) Name() string { return "postgres" }

func (c DBChecker) Check(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// RedisChecker pings redis.
type RedisChecker struct {
	Client *redis.Client
}

func (c RedisChecker) Name() string { return "redis" }

func (c RedisChecker) Check(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Package ratelimit provides fixed-window request limiting with pluggable stores.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"callos/pkg/utils"

	"github.com/redis/go-redis/v9"
)

type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter counts one hit for key and reports whether it is within the limit.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(limit int, count int64, resetIn time.Duration) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= int64(limit), Limit: limit, Remaining: remaining, ResetIn: resetIn}
}

// MemoryStore keeps windows in process. Suitable for a single instance only.
type MemoryStore struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]memWindow
}

type memWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore(limit int, window time.Duration) *MemoryStore {
	return &MemoryStore{limit: limit, window: window, now: time.Now, windows: map[string]memWindow{}}
}

func (m *MemoryStore) Allow(ctx context.Context, key string) (Decision, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = memWindow{resetAt: now.Add(m.window)}
		m.sweep(now)
	}
	w.count++
	m.windows[key] = w
	return decide(m.limit, w.count, w.resetAt.Sub(now)), nil
}

// sweep drops expired windows so idle keys do not accumulate.
func (m *MemoryStore) sweep(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}

// RedisStore shares windows across instances through an atomic Lua script.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "callos:rl:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (r *RedisStore) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := utils.IncrWindow(ctx, r.rdb, r.prefix+key, r.limit, r.window)
	if err != nil {
		return Decision{}, err
	}
	return decide(r.limit, res.Count, res.ResetIn), nil
}

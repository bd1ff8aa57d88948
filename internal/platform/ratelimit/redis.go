package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"tailtribe/internal/platform/logger"

	"github.com/redis/go-redis/v9"
)

// Remote cuenta requests en Redis con ventana fija (Capacity por Window).
// Ante cualquier error de Redis cae al bucket en memoria.
type Remote struct {
	client   *redis.Client
	cfg      Config
	fallback *Memory
	log      logger.Logger
	prefix   string

	warnedUnavailable atomic.Bool
	now               func() time.Time
}

// New devuelve un limiter remoto si hay cliente Redis, o en memoria si no.
func New(cfg Config, client *redis.Client, log logger.Logger) Limiter {
	mem := NewMemory(cfg)
	if client == nil {
		return mem
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Remote{
		client:   client,
		cfg:      mem.cfg,
		fallback: mem,
		log:      log,
		prefix:   "ratelimit",
		now:      time.Now,
	}
}

func (r *Remote) Allow(ctx context.Context, key string) Decision {
	window := r.cfg.Window()
	now := r.now()
	slot := now.UnixMilli() / window.Milliseconds()
	redisKey := fmt.Sprintf("%s:%s:%d", r.prefix, key, slot)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		r.warnUnavailableOnce(err)
		return r.fallback.Allow(ctx, key)
	}
	r.warnedUnavailable.Store(false)

	count := int(incr.Val())
	if count <= r.cfg.Capacity {
		return Decision{
			Allowed:   true,
			Limit:     r.cfg.Capacity,
			Remaining: r.cfg.Capacity - count,
		}
	}

	windowEnd := time.UnixMilli((slot + 1) * window.Milliseconds())
	return Decision{
		Allowed:    false,
		Limit:      r.cfg.Capacity,
		Remaining:  0,
		RetryAfter: windowEnd.Sub(now),
	}
}

func (r *Remote) warnUnavailableOnce(err error) {
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn("rate limit: redis unavailable, using in-memory buckets", map[string]any{"error": err})
	}
}

// OpenRedis conecta y hace ping. Devuelve nil, nil si addr está vacío.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

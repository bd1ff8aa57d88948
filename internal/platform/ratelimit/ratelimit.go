package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Config de un bucket: Capacity tokens, que se recargan a RefillPerSec.
type Config struct {
	Capacity     int
	RefillPerSec float64
}

// Window es el tiempo que tarda un bucket vacío en llenarse, redondeado
// hacia arriba a ms enteros (mínimo 1ms: la ventana remota divide por ella).
func (c Config) Window() time.Duration {
	if c.RefillPerSec <= 0 {
		return time.Second
	}
	ms := math.Ceil(float64(c.Capacity) / c.RefillPerSec * 1000)
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Memory es un token bucket por key, local al proceso.
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	calls   int
	now     func() time.Time
}

const sweepEvery = 1024

func NewMemory(cfg Config) *Memory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.RefillPerSec <= 0 {
		cfg.RefillPerSec = 1
	}
	return &Memory{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	m.calls++
	if m.calls%sweepEvery == 0 {
		m.sweep(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(m.cfg.Capacity), last: now}
		m.buckets[key] = b
	}

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(float64(m.cfg.Capacity), b.tokens+elapsed*m.cfg.RefillPerSec)
		b.last = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{
			Allowed:   true,
			Limit:     m.cfg.Capacity,
			Remaining: int(math.Floor(b.tokens)),
		}
	}

	missing := 1 - b.tokens
	wait := time.Duration(math.Ceil(missing / m.cfg.RefillPerSec * float64(time.Second)))
	return Decision{
		Allowed:    false,
		Limit:      m.cfg.Capacity,
		Remaining:  0,
		RetryAfter: wait,
	}
}

// sweep borra buckets que ya estarían llenos (no aportan estado).
func (m *Memory) sweep(now time.Time) {
	window := m.cfg.Window()
	for k, b := range m.buckets {
		if now.Sub(b.last) >= window {
			delete(m.buckets, k)
		}
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

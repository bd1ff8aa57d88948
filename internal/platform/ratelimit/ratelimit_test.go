package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemory_AllowsCapacityThenDenies(t *testing.T) {
	m := NewMemory(Config{Capacity: 3, RefillPerSec: 1})
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		d := m.Allow(context.Background(), "ip-1")
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if d.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, 2-i, d.Remaining)
		}
	}

	d := m.Allow(context.Background(), "ip-1")
	if d.Allowed {
		t.Fatalf("4th request should be denied")
	}
	if d.RetryAfter != time.Second {
		t.Fatalf("expected retry after 1s, got %s", d.RetryAfter)
	}

	// Otra key tiene su propio bucket.
	if !m.Allow(context.Background(), "ip-2").Allowed {
		t.Fatalf("other key should be allowed")
	}
}

func TestMemory_RefillsOverTime(t *testing.T) {
	m := NewMemory(Config{Capacity: 2, RefillPerSec: 0.5})
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Allow(context.Background(), "k")
	m.Allow(context.Background(), "k")
	if m.Allow(context.Background(), "k").Allowed {
		t.Fatalf("bucket should be empty")
	}

	now = now.Add(2 * time.Second) // +1 token
	if !m.Allow(context.Background(), "k").Allowed {
		t.Fatalf("expected one refilled token")
	}
	if m.Allow(context.Background(), "k").Allowed {
		t.Fatalf("only one token should have been refilled")
	}

	now = now.Add(time.Hour) // nunca pasa de Capacity
	d := m.Allow(context.Background(), "k")
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected full bucket minus one, got %+v", d)
	}
}

func TestMemory_SweepDropsIdleBuckets(t *testing.T) {
	m := NewMemory(Config{Capacity: 1, RefillPerSec: 1})
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < sweepEvery-1; i++ {
		m.Allow(context.Background(), fmt.Sprintf("k-%d", i))
	}
	now = now.Add(time.Minute)
	m.Allow(context.Background(), "fresh")

	if got := m.size(); got != 1 {
		t.Fatalf("expected only the fresh bucket after sweep, got %d", got)
	}
}

func TestConfig_Window(t *testing.T) {
	if w := (Config{Capacity: 5, RefillPerSec: 0.1}).Window(); w != 50*time.Second {
		t.Fatalf("expected 50s window, got %s", w)
	}
}

func TestNew_WithoutRedisUsesMemory(t *testing.T) {
	l := New(Config{Capacity: 1, RefillPerSec: 1}, nil, nil)
	if _, ok := l.(*Memory); !ok {
		t.Fatalf("expected *Memory limiter, got %T", l)
	}
}

func TestRemote_FallsBackToMemoryWhenRedisDown(t *testing.T) {
	// Puerto cerrado: cada comando falla rápido.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := New(Config{Capacity: 2, RefillPerSec: 0.001}, client, nil)
	if _, ok := l.(*Remote); !ok {
		t.Fatalf("expected *Remote limiter, got %T", l)
	}

	ctx := context.Background()
	if !l.Allow(ctx, "ip").Allowed || !l.Allow(ctx, "ip").Allowed {
		t.Fatalf("fallback bucket should allow capacity requests")
	}
	if l.Allow(ctx, "ip").Allowed {
		t.Fatalf("fallback bucket should deny after capacity")
	}
}

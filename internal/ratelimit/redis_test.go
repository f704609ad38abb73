package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestRedisLimiter connects to a local Redis and cleans up test keys.
// Tests that call this helper require a running Redis on localhost:6379.
func newTestRedisLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, "rl:test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestRedisAllow_WithinLimit(t *testing.T) {
	l := newTestRedisLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "test_allow", Limit: 3, Window: 10 * time.Second}

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "client1", rule)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	ok, err := l.Allow(ctx, "client1", rule)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if ok {
		t.Error("4th call should be rate limited")
	}
}

func TestRedisRemaining(t *testing.T) {
	l := newTestRedisLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "test_remaining", Limit: 5, Window: 10 * time.Second}

	remaining, err := l.Remaining(ctx, "client1", rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 5 {
		t.Errorf("fresh key: remaining = %d, want 5", remaining)
	}

	l.Allow(ctx, "client1", rule)
	l.Allow(ctx, "client1", rule)

	remaining, err = l.Remaining(ctx, "client1", rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 3 {
		t.Errorf("after 2 calls: remaining = %d, want 3", remaining)
	}
}

func TestRedisWindowExpiry(t *testing.T) {
	l := newTestRedisLimiter(t)
	ctx := context.Background()
	rule := Rule{Name: "test_expiry", Limit: 1, Window: time.Second}

	if ok, _ := l.Allow(ctx, "client1", rule); !ok {
		t.Fatal("first call should be allowed")
	}
	if ok, _ := l.Allow(ctx, "client1", rule); ok {
		t.Fatal("second call should be limited")
	}

	time.Sleep(1100 * time.Millisecond)

	if ok, _ := l.Allow(ctx, "client1", rule); !ok {
		t.Error("call after window expiry should be allowed")
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("NewRedisCacheWithClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCacheGetMissingKeyReturnsEmpty(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	val, err := c.Get(ctx, "absent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty value for missing key, got %q", val)
	}
}

func TestRedisCacheSetNX(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "dispatch:sub-1", 1, time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !ok {
		t.Fatal("first SetNX should acquire")
	}

	ok, err = c.SetNX(ctx, "dispatch:sub-1", 1, time.Minute)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if ok {
		t.Fatal("second SetNX should not acquire")
	}
}

func TestRedisCacheTryLockAndUnlock(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := c.TryLock(ctx, "dispatch:sub-1", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("first TryLock should acquire")
	}

	ok, err = c.TryLock(ctx, "dispatch:sub-1", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("held lock should not be re-acquired")
	}

	if err := c.Unlock(ctx, "dispatch:sub-1"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = c.TryLock(ctx, "dispatch:sub-1", time.Minute)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("released lock should be acquirable again")
	}
}

func TestRedisCacheIncrAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if _, err := c.Incr(ctx, "counter"); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	n, err := c.Incr(ctx, "counter")
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected counter 2, got %d", n)
	}

	if err := c.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	ttl, err := c.TTL(ctx, "counter")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 {
		t.Fatalf("expected positive ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	exists, err := c.Exists(ctx, "counter")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists != 0 {
		t.Fatal("counter should have expired")
	}
}

func TestRedisCachePubSub(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "delivery:user:42")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := c.Publish(ctx, "delivery:user:42", "hello"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		if msg.Payload != "hello" {
			t.Fatalf("expected payload hello, got %q", msg.Payload)
		}
		if msg.Channel != "delivery:user:42" {
			t.Fatalf("unexpected channel %q", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
	}
}

func TestGetWithCachedCachesFetchResult(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) (string, error) {
		calls++
		return "value", nil
	}
	identity := func(s string) string { return s }
	parse := func(s string) (string, error) { return s, nil }
	empty := func(s string) bool { return s == "" }

	for i := 0; i < 3; i++ {
		got, err := GetWithCached(ctx, c, "k", time.Minute, time.Second, empty, identity, parse, fetch)
		if err != nil {
			t.Fatalf("GetWithCached: %v", err)
		}
		if got != "value" {
			t.Fatalf("expected value, got %q", got)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}

package utils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRedisCacheUnreachable(t *testing.T) {
	c := NewRedisCache("127.0.0.1:1", "", 0)
	defer c.Close()
	ctx := context.Background()

	if _, ok := c.Counters(ctx, "progress:gen"); ok {
		t.Error("Counters on a dead server reported ok")
	}
	if _, ok := c.GetBytes(ctx, "k"); ok {
		t.Error("GetBytes on a dead server reported a hit")
	}
	if err := c.Incr(ctx, "progress:gen", 0); err == nil {
		t.Error("Incr on a dead server returned nil")
	}
}

// Runs against a live Redis when TEST_REDIS_ADDR is set.
func TestRedisCacheCounters(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	c := NewRedisCache(addr, "", 0)
	defer c.Close()
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	prefix := "test:" + uuid.NewString() + ":"
	gen, ver := prefix+"gen", prefix+"u[1]*:ver"

	got, ok := c.Counters(ctx, gen, ver)
	if !ok || got[0] != 0 || got[1] != 0 {
		t.Fatalf("fresh counters = %v %v", got, ok)
	}
	for i := 0; i < 3; i++ {
		if err := c.Incr(ctx, ver, time.Minute); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Incr(ctx, gen, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok = c.Counters(ctx, gen, ver)
	if !ok || got[0] != 1 || got[1] != 3 {
		t.Errorf("counters = %v %v, want [1 3]", got, ok)
	}
	if ttl := c.client.TTL(ctx, ver).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("ver ttl = %s", ttl)
	}

	c.SetBytes(ctx, prefix+"entry", []byte("x"), time.Minute)
	if b, ok := c.GetBytes(ctx, prefix+"entry"); !ok || string(b) != "x" {
		t.Errorf("GetBytes = %q %v", b, ok)
	}
	c.client.Del(ctx, gen, ver, prefix+"entry")
}

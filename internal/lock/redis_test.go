package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKeyUsesPrefix(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), WithPrefix("prod:"))
	defer r.Close()

	if got := r.Key("linkpilot:task:outreach"); got != "prod:linkpilot:task:outreach" {
		t.Errorf("Key() = %q", got)
	}
}

func TestTryLockRejectsZeroTTL(t *testing.T) {
	r := NewRedis(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	defer r.Close()

	if _, ok, err := r.TryLock(context.Background(), "x", 0); err == nil || ok {
		t.Errorf("expected error for zero ttl, got ok=%v err=%v", ok, err)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), Config{PingTimeout: time.Millisecond}); err == nil {
		t.Error("expected error without addr")
	}
}

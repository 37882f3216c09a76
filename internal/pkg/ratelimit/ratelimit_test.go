package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, rate, burst float64) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRateLimiter(rdb, rate, burst, logger), mr
}

func TestAllow_BurstThenDenied(t *testing.T) {
	// 补充速率极低，桶耗尽后短期内不会恢复
	limiter, _ := newTestLimiter(t, 0.001, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("request %d within burst must be allowed", i+1)
		}
	}

	ok, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("request over burst: %v", err)
	}
	if ok {
		t.Fatal("request over burst must be denied")
	}
}

func TestAllow_KeysIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0.001, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("first key must be allowed")
	}
	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); ok {
		t.Fatal("first key must be exhausted")
	}
	if ok, err := limiter.Allow(ctx, "5.6.7.8"); err != nil || !ok {
		t.Fatalf("second key must have its own bucket: ok=%v err=%v", ok, err)
	}
}

func TestAllow_RefillRestoresTokens(t *testing.T) {
	limiter, _ := newTestLimiter(t, 10, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); !ok {
		t.Fatal("first request must be allowed")
	}
	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); ok {
		t.Fatal("bucket must be empty")
	}

	// 10 token/s：脚本按调用方传入的毫秒时钟补充，等待真实时间即可
	refilled := false
	for i := 0; i < 50; i++ {
		time.Sleep(20 * time.Millisecond)
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("refill check: %v", err)
		}
		if ok {
			refilled = true
			break
		}
	}
	if !refilled {
		t.Fatal("bucket never refilled")
	}
}

func TestAllow_RedisDownReturnsError(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1, 1)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "1.2.3.4")
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
	if ok {
		t.Fatal("allowed must be false on error, caller decides fail-open")
	}
}

func TestAllow_DisabledLimiterAlwaysAllows(t *testing.T) {
	limiter, _ := newTestLimiter(t, 0, 0)
	for i := 0; i < 10; i++ {
		ok, err := limiter.Allow(context.Background(), "1.2.3.4")
		if err != nil || !ok {
			t.Fatalf("disabled limiter must allow everything: ok=%v err=%v", ok, err)
		}
	}
}

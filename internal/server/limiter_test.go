package server

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Disabled(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("client") {
			t.Fatalf("request %d refused with limiting disabled", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1) // 100 rps, burst 1
	ctx := context.Background()

	if err := limiter.Wait(ctx, "10.0.0.1"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	// Different client should also work
	if err := limiter.Wait(ctx, "10.0.0.2"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	// 1 rps, burst 1
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("10.0.0.1") {
		t.Errorf("first request should pass")
	}

	// Burst of 1 is spent
	if limiter.Allow("10.0.0.1") {
		t.Errorf("expected allow to fail (exhausted tokens)")
	}

	// Different client should be allowed
	if !limiter.Allow("10.0.0.2") {
		t.Errorf("expected allow for other client")
	}
}

func TestLimiter_SetClientRate(t *testing.T) {
	limiter := NewLimiter(10, 10) // fast default
	client := "10.0.0.66"

	// Set strict limit for specific client
	limiter.SetClientRate(client, 0.1, 1) // very slow

	// First request passes (burst 1)
	if !limiter.Allow(client) {
		t.Errorf("first request should pass")
	}

	// Second request fails
	if limiter.Allow(client) {
		t.Errorf("second request should fail")
	}

	// Other client still fast
	if !limiter.Allow("10.0.0.1") {
		t.Errorf("other client should pass")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewLimiter(10, 10)
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(time.Hour)
	limiter.Allow("recent")

	if removed := limiter.Sweep(30 * time.Minute); removed != 1 {
		t.Errorf("expected 1 client swept, got %d", removed)
	}
	if limiter.Len() != 1 {
		t.Errorf("expected 1 tracked client, got %d", limiter.Len())
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	if got := clientKey(req); got != "192.0.2.7" {
		t.Errorf("expected 192.0.2.7, got %s", got)
	}

	req.RemoteAddr = "no-port"
	if got := clientKey(req); got != "no-port" {
		t.Errorf("expected no-port, got %s", got)
	}
}

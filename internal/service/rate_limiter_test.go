package service

import (
	"testing"
	"time"
)

func TestMemoryRateLimiter_AllowsUpToMax(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("request over max should be rejected")
	}
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewMemoryRateLimiter(time.Minute, 1)

	if !limiter.Allow("a") {
		t.Fatalf("first request for a should pass")
	}
	if !limiter.Allow("b") {
		t.Fatalf("first request for b should pass")
	}
	if limiter.Allow("a") {
		t.Fatalf("second request for a should be rejected")
	}
}

func TestMemoryRateLimiter_WindowExpires(t *testing.T) {
	limiter := NewMemoryRateLimiter(10*time.Millisecond, 1)

	if !limiter.Allow("a") {
		t.Fatalf("first request should pass")
	}
	if limiter.Allow("a") {
		t.Fatalf("second request should be rejected")
	}
	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("a") {
		t.Fatalf("request after window should pass")
	}
}

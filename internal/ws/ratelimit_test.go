package ws

import (
	"testing"
	"time"
)

func TestRateLimiterBurstThenDeny(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("call %d within burst should be allowed", i)
		}
	}
	if rl.allow() {
		t.Fatal("burst exhausted, call should be denied")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := newRateLimiter(1, 10*time.Millisecond)

	if !rl.allow() {
		t.Fatal("first call should be allowed")
	}
	if rl.allow() {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(25 * time.Millisecond)
	if !rl.allow() {
		t.Fatal("bucket should have refilled")
	}
}

func TestRateLimiterCapsAtBurst(t *testing.T) {
	rl := newRateLimiter(2, 50*time.Millisecond)

	time.Sleep(200 * time.Millisecond)

	// Long idle must not bank more than the burst size.
	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected 2 allowed after idle, got %d", allowed)
	}
}

package webhook

import (
	"testing"
	"time"
)

func TestLimiterWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	limiter := NewLimiter(nil, 3, time.Minute)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d should be admitted", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatalf("fourth request inside the window should be rejected")
	}

	// Other keys are unaffected.
	if !limiter.Allow("5.6.7.8") {
		t.Fatalf("different key should be admitted")
	}

	// Once the window slides past the first request, one slot opens up.
	now = now.Add(time.Minute + time.Second)
	if !limiter.Allow("1.2.3.4") {
		t.Fatalf("request after window expiry should be admitted")
	}
}

func TestLimiterRejectedRequestsDoNotExtendWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(2000, 0)
	limiter := NewLimiter(nil, 1, time.Minute)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("k") {
		t.Fatalf("first request should be admitted")
	}
	for i := 0; i < 10; i++ {
		now = now.Add(5 * time.Second)
		limiter.Allow("k")
	}
	// 50s of rejected attempts later, the original window still ends at
	// t+60s; the next request after that is admitted.
	now = now.Add(11 * time.Second)
	if !limiter.Allow("k") {
		t.Fatalf("rejections must not push the window forward")
	}
}

func TestLimiterSweepDropsIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Unix(3000, 0)
	limiter := NewLimiter(nil, 5, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.Allow("idle")
	limiter.Allow("busy")

	now = now.Add(2 * time.Minute)
	limiter.Allow("busy")

	removed := limiter.sweep()
	if removed != 1 {
		t.Fatalf("expected 1 idle key removed, got %d", removed)
	}
	limiter.mu.Lock()
	_, idleKept := limiter.history["idle"]
	_, busyKept := limiter.history["busy"]
	limiter.mu.Unlock()
	if idleKept {
		t.Fatalf("idle key should have been dropped")
	}
	if !busyKept {
		t.Fatalf("busy key should have been kept")
	}
}

package admission

import (
	"testing"
	"time"

	pkgerrors "codoleet/pkg/errors"
)

func TestSlidingWindowRejectsOverLimit(t *testing.T) {
	limiter := NewSlidingWindow(Config{Window: 15 * time.Minute, MaxRequests: 30, MaxKeys: 16})

	for i := 0; i < 30; i++ {
		if _, err := limiter.Allow("10.0.0.1"); err != nil {
			t.Fatalf("request %d unexpectedly limited: %v", i+1, err)
		}
	}

	retryAfter, err := limiter.Allow("10.0.0.1")
	if err == nil {
		t.Fatal("31st request within the window should be rejected")
	}
	if pkgerrors.GetCode(err) != pkgerrors.TooManyRequests {
		t.Fatalf("expected TooManyRequests, got %v", pkgerrors.GetCode(err))
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", retryAfter)
	}

	// A different client is unaffected.
	if _, err := limiter.Allow("10.0.0.2"); err != nil {
		t.Fatalf("other client should not be limited: %v", err)
	}
}

func TestSlidingWindowSlidesForward(t *testing.T) {
	limiter := NewSlidingWindow(Config{Window: time.Minute, MaxRequests: 2, MaxKeys: 16})
	current := time.Unix(1_700_000_000, 0)
	limiter.SetClock(func() time.Time { return current })

	if _, err := limiter.Allow("c"); err != nil {
		t.Fatalf("first: %v", err)
	}
	current = current.Add(30 * time.Second)
	if _, err := limiter.Allow("c"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if _, err := limiter.Allow("c"); err == nil {
		t.Fatal("third within window should be rejected")
	}

	// After the first hit falls out of the window the client is admitted again.
	current = current.Add(31 * time.Second)
	if _, err := limiter.Allow("c"); err != nil {
		t.Fatalf("after slide: %v", err)
	}
}

func TestSlidingWindowEvictsLeastRecentKeys(t *testing.T) {
	limiter := NewSlidingWindow(Config{Window: time.Minute, MaxRequests: 5, MaxKeys: 3})

	for _, key := range []string{"a", "b", "c", "d"} {
		if _, err := limiter.Allow(key); err != nil {
			t.Fatalf("Allow(%s): %v", key, err)
		}
	}

	if limiter.Len() != 3 {
		t.Fatalf("expected table bounded at 3 keys, got %d", limiter.Len())
	}
}

package mq

import (
	"context"
	"testing"
	"time"
)

func TestTokenLimiterBoundsConcurrency(t *testing.T) {
	limiter := NewTokenLimiter(2)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blocked); err == nil {
		t.Fatal("third Acquire should block until a token frees up")
	}

	limiter.Release()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}

func TestKafkaMessageRoundTrip(t *testing.T) {
	msg := NewMessage([]byte(`{"submissionId":"sub-1"}`))
	msg.ID = "sub-1"
	msg.SetHeader("kind", "evaluation")
	msg.RetryCount = 1
	msg.MaxRetries = 5
	msg.Expiration = 30 * time.Second

	km := toKafkaMessage("evaluation-tasks", msg)
	got := fromKafkaMessage(km)

	if got.ID != "sub-1" {
		t.Fatalf("id: got %q", got.ID)
	}
	if string(got.Body) != string(msg.Body) {
		t.Fatalf("body mismatch: %q", got.Body)
	}
	if v, ok := got.GetHeader("kind"); !ok || v != "evaluation" {
		t.Fatalf("header kind: %q %v", v, ok)
	}
	if got.RetryCount != 1 || got.MaxRetries != 5 {
		t.Fatalf("retry info: %d/%d", got.RetryCount, got.MaxRetries)
	}
	if got.Expiration != 30*time.Second {
		t.Fatalf("expiration: %v", got.Expiration)
	}
}

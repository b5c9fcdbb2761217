package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 502, 503, 504} {
		if !isRetryableStatus(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404, 500} {
		if isRetryableStatus(code) {
			t.Errorf("expected %d to NOT be retryable", code)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	maxDelay := 2 * time.Second

	for i := 0; i < 100; i++ {
		if d := backoffDelay(0, base, maxDelay); d < 0 || d >= base {
			t.Fatalf("attempt 0: delay %v out of range", d)
		}
		if d := backoffDelay(40, base, maxDelay); d < 0 || d >= maxDelay {
			t.Fatalf("attempt 40: delay %v out of range", d)
		}
	}
	if d := backoffDelay(3, 0, maxDelay); d != 0 {
		t.Fatalf("zero base: expected 0, got %v", d)
	}
}

func TestSleepWithContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleepWithContext(ctx, 10*time.Second); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("sleep should return immediately on a cancelled context")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	if retryAfterDuration(resp) != 0 || retryAfterDuration(nil) != 0 {
		t.Error("missing header should be zero")
	}
	resp.Header.Set("Retry-After", "3")
	if got := retryAfterDuration(resp); got != 3*time.Second {
		t.Errorf("seconds form: got %v", got)
	}
	resp.Header.Set("Retry-After", "soon")
	if retryAfterDuration(resp) != 0 {
		t.Error("garbage should be zero")
	}
}

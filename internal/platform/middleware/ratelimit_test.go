package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newLimitedContext(path, ip string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newBucketStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	store.now = func() time.Time { return now }
	h := rateLimit(store)(okHandler)

	for i := 0; i < 2; i++ {
		c, _ := newLimitedContext("/api/clinics", "10.0.0.1")
		if err := h(c); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}

	c, rec := newLimitedContext("/api/clinics", "10.0.0.1")
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// A different client has its own bucket.
	c, _ = newLimitedContext("/api/clinics", "10.0.0.2")
	if err := h(c); err != nil {
		t.Errorf("expected other client to pass, got %v", err)
	}

	// Tokens refill over time.
	now = now.Add(2 * time.Second)
	c, _ = newLimitedContext("/api/clinics", "10.0.0.1")
	if err := h(c); err != nil {
		t.Errorf("expected refill to allow request, got %v", err)
	}
}

func TestRateLimit_PathPrefix(t *testing.T) {
	cfg := AuthRateLimitConfig(0.1)
	if cfg.BurstSize != 5 {
		t.Fatalf("expected minimum burst 5, got %d", cfg.BurstSize)
	}
	store := newBucketStore(cfg)
	h := rateLimit(store)(okHandler)

	for i := 0; i < 20; i++ {
		c, _ := newLimitedContext("/api/clinics", "10.0.0.9")
		if err := h(c); err != nil {
			t.Fatalf("non-auth path must not be limited: %v", err)
		}
	}

	var rejected bool
	for i := 0; i < 6; i++ {
		c, _ := newLimitedContext("/api/auth/send-otp", "10.0.0.9")
		if err := h(c); err != nil {
			rejected = true
		}
	}
	if !rejected {
		t.Error("expected auth path to be limited after burst")
	}
}

func TestRateLimit_SweepDropsRefilledBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newBucketStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5})
	store.now = func() time.Time { return now }
	h := rateLimit(store)(okHandler)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		c, _ := newLimitedContext("/api/clinics", ip)
		if err := h(c); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
	if n := store.sweep(); n != 3 {
		t.Fatalf("expected 3 live buckets, got %d", n)
	}

	now = now.Add(500 * time.Millisecond)
	c, _ := newLimitedContext("/api/clinics", "10.0.0.3")
	if err := h(c); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	// 10.0.0.1 and .2 are back to a full burst; .3 still owes a token.
	now = now.Add(time.Second)
	if n := store.sweep(); n != 1 {
		t.Errorf("expected 1 live bucket, got %d", n)
	}
	if _, ok := store.buckets["10.0.0.3"]; !ok {
		t.Error("expected the recently used bucket to survive")
	}
}

func TestRateLimit_CleanupStopsWithContext(t *testing.T) {
	store := newBucketStore(DefaultRateLimitConfig())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.startCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop after cancel")
	}
}

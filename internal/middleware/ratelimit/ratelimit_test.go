package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(n int) (*Limiter, *time.Time) {
	now := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewLimiter(Config{RequestsPerWindow: n, Window: time.Minute, CleanupInterval: time.Hour})
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestLimiter_Allow(t *testing.T) {
	rl, now := newTestLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.Allow("a") {
		t.Error("4th request should be rejected")
	}
	if !rl.Allow("b") {
		t.Error("other client should be unaffected")
	}

	*now = now.Add(61 * time.Second)
	if !rl.Allow("a") {
		t.Error("new window should reset the counter")
	}

	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v", m)
	}
}

func TestLimiter_RejectedRequestsDoNotExtendWindow(t *testing.T) {
	rl, now := newTestLimiter(1)
	defer rl.Stop()

	rl.Allow("a")
	for i := 0; i < 10; i++ {
		*now = now.Add(5 * time.Second)
		rl.Allow("a")
	}
	*now = now.Add(15 * time.Second)
	if !rl.Allow("a") {
		t.Error("window should expire a minute after it started")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, now := newTestLimiter(1)
	defer rl.Stop()

	rl.Allow("a")
	*now = now.Add(3 * time.Minute)
	rl.Allow("b")
	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", n)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(1)
	defer rl.Stop()

	h := rl.Middleware(func(r *http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first request code = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request code = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "61" {
		t.Errorf("Retry-After = %q, want 61", rec.Header().Get("Retry-After"))
	}
}

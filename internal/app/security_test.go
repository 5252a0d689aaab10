package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("other keys have their own bucket")
	}
}

func TestIPRateLimiterRefillsAndPrunes(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	l.lastPrune = now

	if !l.Allow("a") || l.Allow("a") {
		t.Fatalf("expected one request per minute")
	}
	now = now.Add(61 * time.Second)
	if !l.Allow("a") {
		t.Fatalf("expected bucket to refill after the window")
	}

	now = now.Add(5 * time.Minute)
	l.Allow("b")
	if got := l.size(); got != 1 {
		t.Fatalf("expected idle visitor pruned, got %d visitors", got)
	}
}

func TestRateLimitMiddlewareUsesClientIP(t *testing.T) {
	mw := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i, wantCode := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/results", nil)
		req.RemoteAddr = "10.0.0.1:" + []string{"5000", "5001"}[i]
		w := httptest.NewRecorder()
		next.ServeHTTP(w, req)
		if w.Code != wantCode {
			t.Fatalf("request %d: expected %d, got %d", i, wantCode, w.Code)
		}
	}
}

func TestCSRFMiddlewareEnforced(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/submit", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "abc"})
	req.Header.Set(csrfHeaderName, "abc")
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCSRFMiddlewareRejectsMissingToken(t *testing.T) {
	mw := CSRFMiddleware(true)
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questions/submit", nil)
	w := httptest.NewRecorder()
	next.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCSRFTokenHandlerSetsCookie(t *testing.T) {
	w := httptest.NewRecorder()
	CSRFTokenHandler(false)(w, httptest.NewRequest(http.MethodGet, "/api/v1/csrf", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != csrfCookieName || cookies[0].Value == "" {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
}

package app

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cbtsheet/internal/app/apiresp"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const csrfCookieName = "cbtsheet_csrf"
const csrfHeaderName = "X-CSRF-Token"

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per key. Buckets idle for longer than
// three windows are dropped on the next Allow after a prune interval.
type IPRateLimiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	every     rate.Limit
	visitors  map[string]*visitor
	lastPrune time.Time
	now       func() time.Time
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:       max,
		window:    window,
		every:     rate.Every(window / time.Duration(max)),
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	if now.Sub(l.lastPrune) > time.Minute {
		l.pruneLocked(now)
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.max)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (l *IPRateLimiter) pruneLocked(now time.Time) {
	expiry := l.window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > expiry {
			delete(l.visitors, k)
		}
	}
	l.lastPrune = now
}

func (l *IPRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RateLimitMiddleware limits requests per client IP. Run it after
// middleware.RealIP so RemoteAddr holds the client address.
func RateLimitMiddleware(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientIP(r)) {
				apiresp.WriteLegacy(w, r, http.StatusTooManyRequests, false, nil, "Terlalu banyak permintaan, coba lagi sebentar.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func CSRFMiddleware(enforced bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforced {
				next.ServeHTTP(w, r)
				return
			}
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			c, err := r.Cookie(csrfCookieName)
			if err != nil || strings.TrimSpace(c.Value) == "" {
				apiresp.WriteLegacy(w, r, http.StatusForbidden, false, nil, "csrf token missing")
				return
			}
			h := strings.TrimSpace(r.Header.Get(csrfHeaderName))
			if h == "" || h != c.Value {
				apiresp.WriteLegacy(w, r, http.StatusForbidden, false, nil, "csrf token invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenHandler issues a fresh double-submit token as cookie and body.
func CSRFTokenHandler(secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
		apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"csrf_token": token})
	}
}

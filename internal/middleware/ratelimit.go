package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
// Clients can set those headers freely, so use it only behind a proxy that
// overwrites them.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	return RemoteIP(r)
}

// RemoteIP returns the host part of the connection's RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter is an in-memory fixed-window counter keyed by string.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
	}
}

// Allow returns true if the key has not exceeded limit in the current window.
func (rl *RateLimiter) Allow(key string, limit int, period time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		rl.windows[key] = &window{count: 1, resetAt: now.Add(period)}
		return true
	}
	w.count++
	return w.count <= limit
}

// Cleanup removes expired windows.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, w := range rl.windows {
		if now.After(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// RateLimitOptions configures RateLimit. Zero values fall back to RemoteIP as
// the key, no exemptions, and a plain-text 429.
type RateLimitOptions struct {
	Limit  int
	Period time.Duration
	Key    func(*http.Request) string
	Skip   func(*http.Request) bool
	Deny   http.Handler
}

// RateLimit returns middleware that rejects requests once their key exceeds
// the configured limit. A non-positive Limit disables limiting.
func RateLimit(limiter *RateLimiter, opts RateLimitOptions) func(http.Handler) http.Handler {
	if opts.Key == nil {
		opts.Key = RemoteIP
	}
	if opts.Deny == nil {
		opts.Deny = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
		})
	}
	return func(next http.Handler) http.Handler {
		if opts.Limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Skip != nil && opts.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow(opts.Key(r), opts.Limit, opts.Period) {
				opts.Deny.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ReadOnly reports whether r uses a method that does not modify state.
func ReadOnly(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

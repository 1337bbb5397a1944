package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
)

// RateLimiter is the in-process fixed-window limiter used when no Redis is
// configured. Limits are per instance.
type RateLimiter struct {
	limit    int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	count   int
	resetAt time.Time
}

const maxTrackedVisitors = 10000

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, ttl := rl.hit(clientKey(r))
			if !admit(w, rl.limit, count, ttl) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hit records a request for key and returns the count in the current window
// and the time left in it.
func (rl *RateLimiter) hit(key string) (int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if len(rl.visitors) > maxTrackedVisitors {
		for k, v := range rl.visitors {
			if !now.Before(v.resetAt) {
				delete(rl.visitors, k)
			}
		}
	}
	v := rl.visitors[key]
	if v == nil || !now.Before(v.resetAt) {
		v = &visitor{resetAt: now.Add(rl.window)}
		rl.visitors[key] = v
	}
	v.count++
	return v.count, v.resetAt.Sub(now)
}

// admit writes the rate limit headers and, when count is over limit, a 429.
// It reports whether the request may proceed.
func admit(w http.ResponseWriter, limit, count int, ttl time.Duration) bool {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if count <= limit {
		return true
	}
	secs := int((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	h.Set("Retry-After", strconv.Itoa(secs))
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	return false
}

// clientKey buckets authenticated callers by user id and everyone else by
// client address.
func clientKey(r *http.Request) string {
	if userID := auth.CurrentUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return "ip:" + strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}

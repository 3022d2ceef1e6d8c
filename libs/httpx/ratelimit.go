package httpx

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Decision is a limiter's answer for one request. RetryAfter is the time
// left in the caller's window.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimit throttles requests per client address. When the limiter itself
// fails the request is rejected with 503 unless failOpen is set.
func RateLimit(l Limiter, logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				if logger != nil {
					logger.Warn("rate limiter error", "err", err, "fail_open", failOpen)
				}
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteJSON(w, http.StatusServiceUnavailable, errorBody{
					Code:    "UPSTREAM_UNAVAILABLE",
					Message: "rate limiter is temporarily unavailable",
				})
				return
			}
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteJSON(w, http.StatusTooManyRequests, errorBody{
					Code:    "RATE_LIMITED",
					Message: "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MemoryLimiter is a fixed-window limiter held in process memory. Counts are
// per instance, so with several replicas the effective limit multiplies.
type MemoryLimiter struct {
	limit     int
	window    time.Duration
	now       func() time.Time
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	count     int
	resetTime time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &MemoryLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		visitors: map[string]*visitor{},
	}
}

func (rl *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v := rl.visitors[key]
	if v == nil || now.After(v.resetTime) {
		if now.Sub(rl.lastSweep) >= rl.window {
			rl.sweep(now)
			rl.lastSweep = now
		}
		rl.visitors[key] = &visitor{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return Decision{Allowed: true}, nil
	}

	if v.count >= rl.limit {
		return Decision{RetryAfter: v.resetTime.Sub(now)}, nil
	}
	v.count++
	return Decision{Allowed: true}, nil
}

// sweep drops expired windows. It runs at most once per window, so the map
// holds at most the clients seen in the last two windows.
func (rl *MemoryLimiter) sweep(now time.Time) {
	for k, v := range rl.visitors {
		if now.After(v.resetTime) {
			delete(rl.visitors, k)
		}
	}
}

// clientKey uses the last X-Forwarded-For hop, the address the fronting
// proxy saw; earlier hops are client supplied. The service is expected to run
// behind a proxy that appends to the header.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// Package ratelimit enforces a per-user token-bucket request rate limit in
// front of the core. Buckets are keyed by user ID and held in process
// memory; the KV directory is not used.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sandboxlabs/sandboxd/internal/auth"
)

const staleAfter = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-user token bucket limiter. One bucket is created lazily
// per user ID on first request. Buckets idle longer than staleAfter are
// evicted only once the table holds more than 10000 users.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
}

func New(perSecond float64, burst int) *Limiter {
	l := &Limiter{
		limiters: make(map[string]*entry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
	return l
}

// Allow reports whether a request for userID may proceed, consuming a
// token if so.
func (l *Limiter) Allow(userID string) bool {
	return l.get(userID).Allow()
}

func (l *Limiter) get(userID string) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[userID]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[userID] = e
	}
	e.lastSeen = now

	if len(l.limiters) > 10000 {
		l.evictStaleLocked(now)
	}
	return e.limiter
}

func (l *Limiter) evictStaleLocked(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > staleAfter {
			delete(l.limiters, k)
		}
	}
}

// Middleware rate limits by the user ID the auth middleware attached to the
// request context. It must run after auth.Middleware in the chain.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !l.Allow(userID) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error_code":"RATE_LIMITED","message":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

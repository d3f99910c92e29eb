package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

// userLimiter keeps one token bucket per user.
type userLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// maxIdleBuckets triggers eviction of idle buckets on the next request.
const maxIdleBuckets = 10000

func newUserLimiter(rps float64, burst int) *userLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether userID may make a request now.
func (l *userLimiter) Allow(userID string) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) >= maxIdleBuckets {
		for id, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idle {
				delete(l.buckets, id)
			}
		}
	}

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(UserID(r.Context())) {
			w.Header().Set("Retry-After", strconv.Itoa(1))
			s.respondError(w, r, apperrors.New(apperrors.ErrCodeRateLimited, "rate limit exceeded").
				WithUserMessage("You're sending messages too quickly. Please wait a moment.").
				WithRetryable(true))
			return
		}
		next.ServeHTTP(w, r)
	})
}

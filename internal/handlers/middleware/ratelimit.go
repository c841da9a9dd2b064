// internal/handlers/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ammerola/pharmapos-be/internal/pkg/logger"
)

const limiterIdleTTL = 10 * time.Minute

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// callerLimits holds one token bucket per caller and forgets callers idle
// for longer than limiterIdleTTL.
type callerLimits struct {
	mu        sync.Mutex
	buckets   map[string]*callerBucket
	every     rate.Limit
	burst     int
	lastSweep time.Time
}

func (c *callerLimits) allow(caller string, now time.Time) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) > limiterIdleTTL {
		for k, b := range c.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(c.buckets, k)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.buckets[caller]
	if !ok {
		b = &callerBucket{limiter: rate.NewLimiter(c.every, c.burst)}
		c.buckets[caller] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RateLimit allows requests per window for each caller. A caller is the
// actor when Actor ran earlier in the chain, else the client IP, so
// terminals behind one NAT do not share a budget. Zero disables limiting.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limits := &callerLimits{
		buckets:   make(map[string]*callerBucket),
		every:     rate.Every(window / time.Duration(requests)),
		burst:     requests,
		lastSweep: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := "ip:" + clientIP(r)
			if actor := logger.ActorFromContext(r.Context()); actor != "" {
				caller = "actor:" + actor
			}

			ok, wait := limits.allow(caller, time.Now())
			if !ok {
				secs := int(wait.Round(time.Second) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeError(w, http.StatusTooManyRequests, errorBody{
					Error:     "rate limit exceeded",
					Kind:      "rate_limited",
					Retryable: true,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

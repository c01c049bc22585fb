package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iub-eis/eis/frontend/go-dashboard/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	// ipShare scales the per-IP bucket that caps all usernames tried from
	// one address.
	ipShare = 4
	// limiters idle this long are dropped
	limiterIdle = 10 * time.Minute
	sweepEvery  = time.Minute
)

type limiterEntry struct {
	lim  *rate.Limiter
	last time.Time
}

// limiterStore holds one token bucket per key and evicts idle ones.
type limiterStore struct {
	rps   float64
	burst int
	now   func() time.Time

	mu        sync.Mutex
	m         map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterStore(rps float64, burst int) *limiterStore {
	return &limiterStore{rps: rps, burst: burst, now: time.Now, m: map[string]*limiterEntry{}}
}

// allow takes one token from key's bucket, created at scale times the
// configured rate and burst.
func (s *limiterStore) allow(key string, scale int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= sweepEvery {
		for k, e := range s.m {
			if now.Sub(e.last) >= limiterIdle {
				delete(s.m, k)
			}
		}
		s.lastSweep = now
	}
	e, ok := s.m[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(rate.Limit(s.rps*float64(scale)), s.burst*scale)}
		s.m[key] = e
	}
	e.last = now
	return e.lim.AllowN(now, 1)
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// limitKeys identifies the caller. Without a submitted username the client IP
// is the only key. With one, the IP narrowed by the username keeps one
// account's failures from locking out everyone behind the same NAT, and a
// wider per-IP bucket caps how many accounts one address can try.
func limitKeys(c *gin.Context) (user, ip string) {
	addr := c.ClientIP()
	if addr == "" {
		addr = "unknown"
	}
	ip = "ip:" + addr
	if c.Request.Method == http.MethodPost {
		if u := strings.ToLower(strings.TrimSpace(c.PostForm("username"))); u != "" {
			return ip + "|user:" + u, ip + "|any"
		}
	}
	return "", ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket
// per-key limit. rps = allowed events per second, burst = maximum tokens in
// bucket. Each call gets its own limiter table.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	store := newLimiterStore(rps, burst)
	return rateLimit(store)
}

func rateLimit(store *limiterStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ip := limitKeys(c)
		var ok bool
		if user != "" {
			ok = store.allow(user, 1) && store.allow(ip, ipShare)
		} else {
			ok = store.allow(ip, 1)
		}
		if !ok {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/scimbridge/scimbridge/pkg/metrics"
)

// limiterSet is a per-middleware store of token-bucket limiters by key.
type limiterSet struct {
	limiters sync.Map // map[string]*rate.Limiter
	rps      float64
	burst    int
}

// get returns (and lazily creates) the limiter for the given key
func (s *limiterSet) get(key string) *rate.Limiter {
	v, ok := s.limiters.Load(key)
	if ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	s.limiters.Store(key, lim)
	return lim
}

// limiterKey prefers the authenticated subject when the auth middleware has
// stored claims, falling back to the client IP.
func limiterKey(c *gin.Context) string {
	if v, ok := c.Get("claims"); ok {
		if cm, ok := v.(map[string]interface{}); ok {
			if sub, ok := cm["sub"].(string); ok && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket
// per-key limit. rps = allowed events per second, burst = maximum tokens in
// bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	set := &limiterSet{rps: rps, burst: burst}
	return func(c *gin.Context) {
		lim := set.get(limiterKey(c))
		if !lim.Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}

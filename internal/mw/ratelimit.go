package mw

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// IPRateLimiter stores a rate limiter for each client IP. Limiters of idle
// clients expire so the table does not grow without bound.
type IPRateLimiter struct {
	limiters *cache.Cache
	r        rate.Limit
	b        int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: cache.New(10*time.Minute, 20*time.Minute),
		r:        r,
		b:        b,
	}
}

// GetLimiter returns the rate limiter for an IP address, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	if l, ok := i.limiters.Get(ip); ok {
		i.limiters.SetDefault(ip, l)
		return l.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(i.r, i.b)
	if err := i.limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same IP.
		if l, ok := i.limiters.Get(ip); ok {
			return l.(*rate.Limiter)
		}
	}
	return limiter
}

// RateLimiter is a middleware for IP-based rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

package middleware

import (
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 30 * time.Minute
	limiterSweepGap = 5 * time.Minute
)

type ipLimiter struct {
	limiter *rate.Limiter
	last    atomic.Int64
}

// RateLimiter keeps one token bucket per client IP. Idle buckets are swept
// on access rather than by a background goroutine.
type RateLimiter struct {
	rps       rate.Limit
	burst     int
	limiters  sync.Map // map[string]*ipLimiter
	lastSweep atomic.Int64
	now       func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, now: time.Now}
}

func (l *RateLimiter) Allow(ip string) bool {
	now := l.now()
	l.sweep(now)

	v, ok := l.limiters.Load(ip)
	if !ok {
		v, _ = l.limiters.LoadOrStore(ip, &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)})
	}
	il := v.(*ipLimiter)
	il.last.Store(now.UnixNano())
	return il.limiter.AllowN(now, 1)
}

func (l *RateLimiter) sweep(now time.Time) {
	last := l.lastSweep.Load()
	if now.UnixNano()-last < int64(limiterSweepGap) || !l.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	l.limiters.Range(func(key, val any) bool {
		il := val.(*ipLimiter)
		if now.Sub(time.Unix(0, il.last.Load())) > limiterIdleTTL {
			l.limiters.Delete(key)
		}
		return true
	})
}

// Handler rejects requests over the per-IP budget with 429.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			log.Println("[RATE] [WARN] rate limit exceeded for", c.ClientIP(), c.FullPath())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Too many requests"})
			return
		}
		c.Next()
	}
}

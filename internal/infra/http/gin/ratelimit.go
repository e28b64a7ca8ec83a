package ginserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles each client with its own token bucket. Clients are keyed by actor
// when authenticated and by IP otherwise; idle buckets are dropped after ten minutes.
type RateLimiter struct {
	RPS    float64
	Burst  int
	Logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	lastGC   time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdle = 10 * time.Minute

func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{RPS: rps, Burst: burst, Logger: logger, limiters: make(map[string]*clientLimiter)}
}

func (l *RateLimiter) Handle(c *gin.Context) {
	key := "ip:" + c.ClientIP()
	if actor, ok := currentActor(c); ok {
		key = "actor:" + string(actor.ID)
	}
	if !l.limiter(key, time.Now()).Allow() {
		if l.Logger != nil {
			l.Logger.Warn("rate limit exceeded", "client", key, "path", c.FullPath())
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded, try again later"})
		return
	}
	c.Next()
}

func (l *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastGC) > limiterIdle {
		for k, cl := range l.limiters {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}
	cl, ok := l.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(l.RPS), l.Burst)}
		l.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

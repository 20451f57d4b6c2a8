package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/secureboard/utils"
)

const limiterIdleTTL = 5 * time.Minute

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

type limiterStore struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

// RateLimit applies a per client IP token bucket allowing perMinute requests a minute.
// Each call owns its own buckets so /login and /user can be limited independently.
func RateLimit(perMinute int) gin.HandlerFunc {
	perMinute = max(perMinute, 1)
	store := &limiterStore{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(perMinute/2, 1),
	}

	return func(ctx *gin.Context) {
		if !store.get(ctx.ClientIP()).Allow() {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for k, c := range s.clients {
		if now.After(c.expires) {
			delete(s.clients, k)
		}
	}

	if c, ok := s.clients[key]; ok {
		c.expires = now.Add(limiterIdleTTL)
		return c.limiter
	}
	c := &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst), expires: now.Add(limiterIdleTTL)}
	s.clients[key] = c
	return c.limiter
}

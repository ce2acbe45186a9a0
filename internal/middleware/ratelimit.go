package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per-client request budget with a token bucket.
// Clients are keyed by IP; RealIP must run earlier in the chain so
// RemoteAddr already reflects the forwarded address. A limit below 1
// disables limiting.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit < 1 {
		return func(next http.Handler) http.Handler { return next }
	}

	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)
	refill := rate.Every(per / time.Duration(limit))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientAddr(r)

			mu.Lock()
			c, ok := clients[ip]
			if !ok {
				c = &clientLimiter{limiter: rate.NewLimiter(refill, limit)}
				clients[ip] = c
			}
			c.lastSeen = time.Now()
			if len(clients) > 1024 {
				evictStale(clients, c.lastSeen.Add(-10*per))
			}
			allowed := c.limiter.Allow()
			mu.Unlock()

			if !allowed {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func evictStale(clients map[string]*clientLimiter, cutoff time.Time) {
	for ip, c := range clients {
		if c.lastSeen.Before(cutoff) {
			delete(clients, ip)
		}
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

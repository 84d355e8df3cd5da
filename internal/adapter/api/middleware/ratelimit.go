package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Buckets are discarded wholesale past this count rather than tracked
// with an eviction policy; a legitimate webhook sender population is
// tiny.
const maxTrackedHosts = 10000

// PerHostRateLimit applies an in-process token bucket per remote host.
// This is local backpressure in front of the store-backed fixed-window
// limiter, cheap enough to run before any Redis round trip.
func PerHostRateLimit(rps float64, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*rate.Limiter)
	)

	limiterFor := func(host string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if len(buckets) > maxTrackedHosts {
			buckets = make(map[string]*rate.Limiter)
		}
		limiter, ok := buckets[host]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(rps), burst)
			buckets[host] = limiter
		}
		return limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !limiterFor(host).Allow() {
				logger.Warn("per-host rate limit hit", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

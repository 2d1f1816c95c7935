package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mir00r/haproxy-gen/pkg/logger"
)

// clientLimiter holds the rate limiter for a specific client
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-client token bucket to the admin API
type RateLimitMiddleware struct {
	requestsPerSec float64
	burstSize      int
	clients        map[string]*clientLimiter
	mutex          sync.Mutex
	logger         *logger.Logger
}

// NewRateLimitMiddleware creates a new rate limiting middleware
func NewRateLimitMiddleware(requestsPerSec float64, burstSize int, log *logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		requestsPerSec: requestsPerSec,
		burstSize:      burstSize,
		clients:        make(map[string]*clientLimiter),
		logger:         log,
	}
}

// Handler wraps the next handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		if !m.getLimiter(clientIP).Allow() {
			m.logger.WithField("client_ip", clientIP).Warn("Rate limit exceeded")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getLimiter returns the limiter for a client, creating it on first sight
func (m *RateLimitMiddleware) getLimiter(clientIP string) *rate.Limiter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	cl, exists := m.clients[clientIP]
	if !exists {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(m.requestsPerSec), m.burstSize),
		}
		m.clients[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

// extractClientIP extracts the client IP from the request
func extractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/response"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per client IP with a token bucket.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
	trusted  []*net.IPNet
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*visitor),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// TrustProxies sets the CIDRs allowed to report the client address through
// X-Forwarded-For. Requests from anywhere else are keyed by RemoteAddr.
func (rl *RateLimiter) TrustProxies(cidrs ...string) error {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		if !strings.Contains(c, "/") {
			if ip := net.ParseIP(c); ip != nil && ip.To4() != nil {
				c += "/32"
			} else {
				c += "/128"
			}
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		nets = append(nets, n)
	}
	rl.trusted = nets
	return nil
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.clientIP(r)
		if !rl.getLimiter(ip).Allow() {
			logger.WarnContext(r.Context(), "rate limit exceeded", "ip", ip, "route", routeOf(r))
			w.Header().Set("Retry-After", "1")
			response.RateLimit(w, "Too many requests. Try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops limiters that have been idle longer than the idle TTL.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.idleTTL)
	removed := 0
	for key, v := range rl.limiters {
		if v.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// clientIP is RemoteAddr unless that is a trusted proxy, in which case the
// X-Forwarded-For chain is walked right to left past trusted hops.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	ip := remoteHost(r)
	if !rl.isTrusted(ip) {
		return ip
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" || net.ParseIP(hop) == nil {
			break
		}
		ip = hop
		if !rl.isTrusted(hop) {
			break
		}
	}
	return ip
}

func (rl *RateLimiter) isTrusted(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range rl.trusted {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

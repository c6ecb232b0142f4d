package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold is the map size at which idle entries are pruned.
	cleanupThreshold = 500
	maxIdleAge       = 10 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	ips map[string]*ipEntry
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	if b < 1 {
		b = 1
	}
	return &IPRateLimiter{ips: make(map[string]*ipEntry), r: r, b: b}
}

// Limiter returns the bucket for ip, pruning stale entries once the map grows.
func (i *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := time.Now()
	if len(i.ips) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range i.ips {
			if e.lastSeen.Before(cutoff) {
				delete(i.ips, k)
			}
		}
	}

	e, ok := i.ips[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(i.r, i.b)}
		i.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Allow reports whether a request from ip may proceed.
func (i *IPRateLimiter) Allow(ip string) bool {
	return i.Limiter(ip).Allow()
}

// rateLimited applies the checkout budget.
func (h *Handlers) rateLimited(next http.Handler) http.Handler {
	return h.limitBy(h.limiter, next)
}

// loginRateLimited applies the admin login budget, kept apart from checkout
// so voters cannot use up the login allowance or the reverse.
func (h *Handlers) loginRateLimited(next http.Handler) http.Handler {
	return h.limitBy(h.loginLimiter, next)
}

// limitBy rejects requests over the per-IP budget with 429. RemoteAddr is the
// connection peer unless TrustProxy installed RealIP ahead of this.
func (h *Handlers) limitBy(l *IPRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.Allow(ip) {
			h.Log.Warn("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			respondError(w, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

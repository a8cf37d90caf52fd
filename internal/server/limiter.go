package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter is one client's token bucket
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter implements per-client rate limiting
type Limiter struct {
	clients      map[string]*clientLimiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
	now          func() time.Time
}

// NewLimiter creates a new rate limiter. A non-positive rate disables
// limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	return &Limiter{
		clients:      make(map[string]*clientLimiter),
		defaultRate:  limit,
		defaultBurst: burst,
		now:          time.Now,
	}
}

// Wait waits for rate limit clearance for the given client
func (l *Limiter) Wait(ctx context.Context, client string) error {
	return l.getLimiter(client).Wait(ctx)
}

// Allow reports whether the client may make a request now
func (l *Limiter) Allow(client string) bool {
	return l.getLimiter(client).Allow()
}

// getLimiter returns the rate limiter for a client
func (l *Limiter) getLimiter(client string) *rate.Limiter {
	now := l.now()

	l.mu.RLock()
	c, exists := l.clients[client]
	l.mu.RUnlock()

	if exists {
		l.mu.Lock()
		c.lastSeen = now
		l.mu.Unlock()
		return c.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if c, exists := l.clients[client]; exists {
		c.lastSeen = now
		return c.limiter
	}

	c = &clientLimiter{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst), lastSeen: now}
	l.clients[client] = c

	return c.limiter
}

// SetClientRate sets a custom rate limit for a specific client
func (l *Limiter) SetClientRate(client string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.clients[client] = &clientLimiter{
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		lastSeen: l.now(),
	}
}

// Sweep forgets clients idle for longer than idle and returns how many
// were removed
func (l *Limiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients
func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// clientKey identifies the caller by remote host
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

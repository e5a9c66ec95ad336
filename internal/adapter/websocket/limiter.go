package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	rateLimiterIdleTTL       = 10 * time.Minute
	rateLimiterCleanupPeriod = 5 * time.Minute
)

// GlobalConnectionLimiter caps concurrent connections for this process.
// Lock-free; uses CAS on an atomic counter.
type GlobalConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalConnectionLimiter(max int64) *GlobalConnectionLimiter {
	return &GlobalConnectionLimiter{max: max}
}

// Acquire takes a slot, returning false at capacity.
func (l *GlobalConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *GlobalConnectionLimiter) Release() {
	l.current.Add(-1)
}

func (l *GlobalConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// ConnectionRateLimiter limits how fast a single IP may open connections,
// with one token bucket per IP.
type ConnectionRateLimiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	limiters  map[string]*rateLimiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionRateLimiter allows connectionsPerSecond sustained and burst immediate connections per IP.
func NewConnectionRateLimiter(connectionsPerSecond float64, burst int, clock clockwork.Clock) *ConnectionRateLimiter {
	return &ConnectionRateLimiter{
		clock:     clock,
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(connectionsPerSecond),
		burst:     burst,
		cleanupAt: clock.Now().Add(rateLimiterCleanupPeriod),
	}
}

func (l *ConnectionRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanup(now)
		l.cleanupAt = now.Add(rateLimiterCleanupPeriod)
	}

	entry, exists := l.limiters[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}

	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// ActiveLimiters returns the number of tracked IPs.
func (l *ConnectionRateLimiter) ActiveLimiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// cleanup drops limiters idle for longer than rateLimiterIdleTTL. Must be called with mu held.
func (l *ConnectionRateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rateLimiterIdleTTL)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// LimitReason describes why an upgrade was refused.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits combines the global cap and the per-IP accept rate.
type ConnectionLimits struct {
	global *GlobalConnectionLimiter
	rate   *ConnectionRateLimiter
}

func NewConnectionLimits(globalMax int64, connectionsPerSecond float64, burst int, clock clockwork.Clock) *ConnectionLimits {
	return &ConnectionLimits{
		global: NewGlobalConnectionLimiter(globalMax),
		rate:   NewConnectionRateLimiter(connectionsPerSecond, burst, clock),
	}
}

// Acquire checks the rate first, then takes a global slot. A successful
// Acquire must be paired with Release.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.rate.Allow(ip) {
		return false, LimitReasonRate
	}
	if !l.global.Acquire() {
		return false, LimitReasonGlobal
	}
	return true, ""
}

func (l *ConnectionLimits) Release() {
	l.global.Release()
}

func (l *ConnectionLimits) Global() *GlobalConnectionLimiter {
	return l.global
}

func (l *ConnectionLimits) Rate() *ConnectionRateLimiter {
	return l.rate
}

package oauth

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mcpgate/pkg/logging"
)

// LoginRateLimiter limits login attempts with a token bucket per key. The
// handler keys on the claimed user id together with the submitted email (see
// LoginKey), so failed attempts against one account cannot lock out another
// email posted under the same claimed id.
type LoginRateLimiter struct {
	mu sync.Mutex

	limit rate.Limit
	burst int
	idle  time.Duration

	entries     map[string]*limiterEntry
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginRateLimiter allows perMinute attempts per user per minute with the given burst.
func NewLoginRateLimiter(perMinute, burst int) *LoginRateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginRateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		entries: make(map[string]*limiterEntry),
	}
}

// LoginKey is the limiter key for a login attempt. The email is compared
// case-insensitively.
func LoginKey(userID, email string) string {
	return userID + "\x00" + strings.ToLower(strings.TrimSpace(email))
}

// Allow records an attempt for key and reports whether it may proceed.
func (rl *LoginRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastCleanup) > rl.idle {
		rl.sweep(now)
	}

	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = now

	if !entry.limiter.AllowN(now, 1) {
		userID, _, _ := strings.Cut(key, "\x00")
		logging.Warn("OAuth", "Login rate limit exceeded for user %s", logging.TruncateID(userID))
		return false
	}
	return true
}

// Reset forgets the attempts for key, typically after a successful login.
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

func (rl *LoginRateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-rl.idle)
	for userID, entry := range rl.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.entries, userID)
		}
	}
	rl.lastCleanup = now
}

func (rl *LoginRateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

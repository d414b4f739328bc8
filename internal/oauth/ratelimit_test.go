package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiter_BurstThenBlock(t *testing.T) {
	rl := NewLoginRateLimiter(10, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user_a"), "attempt %d", i)
	}
	assert.False(t, rl.Allow("user_a"))

	// other users are unaffected
	assert.True(t, rl.Allow("user_b"))
}

func TestLoginRateLimiter_Reset(t *testing.T) {
	rl := NewLoginRateLimiter(1, 1)

	assert.True(t, rl.Allow("user_a"))
	assert.False(t, rl.Allow("user_a"))

	rl.Reset("user_a")
	assert.True(t, rl.Allow("user_a"))
}

func TestLoginRateLimiter_SweepsIdleEntries(t *testing.T) {
	rl := NewLoginRateLimiter(10, 5)
	rl.idle = time.Millisecond

	rl.Allow("user_a")
	time.Sleep(5 * time.Millisecond)
	rl.Allow("user_b")

	assert.Equal(t, 1, rl.size(), "user_a should have been swept")
}

func TestLoginKey(t *testing.T) {
	assert.Equal(t, LoginKey("user_a", "A@Example.com "), LoginKey("user_a", "a@example.com"))
	assert.NotEqual(t, LoginKey("user_a", "a@example.com"), LoginKey("user_a", "b@example.com"))
	assert.NotEqual(t, LoginKey("user_a", "a@example.com"), LoginKey("user_b", "a@example.com"))
}

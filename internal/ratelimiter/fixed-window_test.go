package ratelimiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedWindowRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	rl := NewFixedWindowLimiter(2, 5*time.Second)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("1.1.1.1")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok)

	ok, retry := rl.Allow("1.1.1.1")
	assert.False(t, ok)
	assert.Equal(t, 5*time.Second, retry)

	ok, _ = rl.Allow("2.2.2.2")
	assert.True(t, ok, "other clients have their own window")

	now = now.Add(5 * time.Second)
	ok, _ = rl.Allow("1.1.1.1")
	assert.True(t, ok, "window resets")
	assert.Len(t, rl.clients, 1, "expired windows are swept")
}

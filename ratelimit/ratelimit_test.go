package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowWithinWindow(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{MaxRequests: 2, WindowSize: time.Hour, CleanupInterval: time.Hour})
	defer rl.Stop()

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
	assert.Equal(t, 0, rl.Remaining("1.2.3.4"))
	assert.Equal(t, 1, rl.Remaining("5.6.7.8"))
	assert.Equal(t, 2, rl.Remaining("9.9.9.9"))

	rl.Reset("1.2.3.4")
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestWindowSlides(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{MaxRequests: 1, WindowSize: 20 * time.Millisecond, CleanupInterval: time.Hour})
	defer rl.Stop()

	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("k"))
}

func TestCleanupDropsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{MaxRequests: 5, WindowSize: time.Millisecond, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("idle")
	time.Sleep(5 * time.Millisecond)
	rl.cleanup()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.requests)
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(nil)
	rl.Stop()
	rl.Stop()
}

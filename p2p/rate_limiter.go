package p2p

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

type RateLimitConfig struct {
	MaxMessagesPerMinute int
	MaxBytesPerSecond    int64
}

func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MaxMessagesPerMinute: 600,
		MaxBytesPerSecond:    2 * 1024 * 1024,
	}
}

// RateLimit is a token bucket refilled continuously at RefillRate per second.
type RateLimit struct {
	Counts     int
	MaxCounts  int
	RefillRate int
	LastRefill time.Time
	mu         sync.Mutex
}

func NewRateLimit(maxCounts, refillRate int) *RateLimit {
	return &RateLimit{
		Counts:     maxCounts,
		MaxCounts:  maxCounts,
		RefillRate: refillRate,
		LastRefill: time.Now(),
	}
}

func (tb *RateLimit) Take(tokens int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.LastRefill).Seconds()
	tb.Counts = min(tb.MaxCounts, tb.Counts+int(elapsed*float64(tb.RefillRate)))
	tb.LastRefill = now

	if tb.Counts >= tokens {
		tb.Counts -= tokens
		return true
	}
	return false
}

// WindowCounter allows MaxCount events per fixed window.
type WindowCounter struct {
	count       int
	maxCount    int
	windowSize  time.Duration
	windowStart time.Time
	mu          sync.Mutex
}

func NewWindowCounter(windowSize time.Duration, maxCount int) *WindowCounter {
	return &WindowCounter{maxCount: maxCount, windowSize: windowSize, windowStart: time.Now()}
}

func (wc *WindowCounter) Increment() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if now := time.Now(); now.Sub(wc.windowStart) >= wc.windowSize {
		wc.count = 0
		wc.windowStart = now
	}
	if wc.count < wc.maxCount {
		wc.count++
		return true
	}
	return false
}

// PeerRateLimiter bounds how much gossip one peer can make this node process.
type PeerRateLimiter struct {
	messages  *WindowCounter
	bandwidth *RateLimit
}

func NewPeerRateLimiter(config *RateLimitConfig) *PeerRateLimiter {
	return &PeerRateLimiter{
		messages:  NewWindowCounter(time.Minute, config.MaxMessagesPerMinute),
		bandwidth: NewRateLimit(int(config.MaxBytesPerSecond), int(config.MaxBytesPerSecond)),
	}
}

// Allow charges one message of size bytes.
func (prl *PeerRateLimiter) Allow(size int) bool {
	return prl.messages.Increment() && prl.bandwidth.Take(size)
}

type RateLimitManager struct {
	config       *RateLimitConfig
	peerLimiters map[peer.ID]*PeerRateLimiter
	mu           sync.Mutex
}

func NewRateLimitManager(config *RateLimitConfig) *RateLimitManager {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimitManager{
		config:       config,
		peerLimiters: make(map[peer.ID]*PeerRateLimiter),
	}
}

func (rlm *RateLimitManager) Allow(peerID peer.ID, size int) bool {
	rlm.mu.Lock()
	limiter, exists := rlm.peerLimiters[peerID]
	if !exists {
		limiter = NewPeerRateLimiter(rlm.config)
		rlm.peerLimiters[peerID] = limiter
	}
	rlm.mu.Unlock()
	return limiter.Allow(size)
}

// Forget drops the state kept for a disconnected peer.
func (rlm *RateLimitManager) Forget(peerID peer.ID) {
	rlm.mu.Lock()
	defer rlm.mu.Unlock()
	delete(rlm.peerLimiters, peerID)
}

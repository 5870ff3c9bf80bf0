package server

import (
	"sync"
	"time"
)

// RateLimiter implements per-IP rate limiting with a sliding one-minute
// window.
type RateLimiter struct {
	mu              sync.Mutex
	requests        map[string][]int64
	maxPerMinute    int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewRateLimiter creates a rate limiter allowing maxPerMinute requests per
// client.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		requests:        make(map[string][]int64),
		maxPerMinute:    maxPerMinute,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go rl.runCleanup()

	return rl
}

// Allow reports whether a request from ip is within the limit, counting it
// if so.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	valid := rl.requests[ip][:0]
	for _, t := range rl.requests[ip] {
		if now-t < 60_000 {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.maxPerMinute {
		rl.requests[ip] = valid
		return false
	}

	rl.requests[ip] = append(valid, now)
	return true
}

// RetryAfter returns the seconds until the oldest counted request of ip
// leaves the window.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	times := rl.requests[ip]
	if len(times) == 0 {
		return 0
	}

	remaining := 60_000 - (time.Now().UnixMilli() - times[0])
	if remaining < 0 {
		return 0
	}
	return int((remaining + 999) / 1000)
}

// Stop stops the background cleanup.
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}

func (rl *RateLimiter) runCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops clients whose entire window has expired.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	for ip, times := range rl.requests {
		if len(times) == 0 || now-times[len(times)-1] >= 60_000 {
			delete(rl.requests, ip)
		}
	}
}

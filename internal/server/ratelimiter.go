package server

import (
	"sync"
	"time"
)

const rateWindow = time.Minute

// rateLimiter applies a per-client sliding window limit
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	stop    chan struct{}
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string][]time.Time),
		limit:   requestsPerMinute,
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from ip fits within the window, recording
// it if so.
func (rl *rateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	recent := pruneBefore(rl.clients[ip], now.Add(-rateWindow))

	if len(recent) >= rl.limit {
		rl.clients[ip] = recent
		return false
	}

	rl.clients[ip] = append(recent, now)
	return true
}

// RetryAfter returns the seconds until the oldest recorded request leaves
// the window, rounded up.
func (rl *rateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	stamps := rl.clients[ip]
	if len(stamps) == 0 {
		return 0
	}

	wait := rateWindow - time.Since(stamps[0])
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rateWindow)
	for ip, stamps := range rl.clients {
		recent := pruneBefore(stamps, cutoff)
		if len(recent) == 0 {
			delete(rl.clients, ip)
		} else {
			rl.clients[ip] = recent
		}
	}
}

func (rl *rateLimiter) Stop() {
	close(rl.stop)
}

func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	recent := stamps[:0]
	for _, t := range stamps {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}

// Package ratelimit holds a per-client fixed-window limiter, applied to
// the credential endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter allows a fixed number of requests per client per minute.
type Limiter struct {
	mu          sync.Mutex
	clients     map[string]*clientInfo
	stopCleanup chan struct{}
	once        sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

func NewLimiter(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: requestsPerMinute,
		cleanupInterval:   5 * time.Minute,
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether a request from the client should proceed.
func (rl *Limiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	info, ok := rl.clients[client]
	if !ok || now.Sub(info.windowStart) > time.Minute {
		rl.clients[client] = &clientInfo{windowStart: now, requests: 1}
		return true
	}

	info.requests++
	return info.requests <= rl.requestsPerMinute
}

// ActiveClients returns the number of tracked clients.
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop halts the background cleanup.
func (rl *Limiter) Stop() {
	rl.once.Do(func() { close(rl.stopCleanup) })
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCleanup:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * time.Minute)
			rl.mu.Lock()
			for client, info := range rl.clients {
				if info.windowStart.Before(cutoff) {
					delete(rl.clients, client)
				}
			}
			rl.mu.Unlock()
		}
	}
}

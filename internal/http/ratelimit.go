package http

import (
	"sync"
	"time"
)

const staleClientAfter = 10 * time.Minute

// selectLimiter caps how often one client may reload a panel. A reload
// fans out to the analytics API and to insight generation, so it is the
// only request worth limiting.
type selectLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientWindow
	perMinute int
	now       func() time.Time
}

type clientWindow struct {
	start    time.Time
	last     time.Time
	requests int
}

func newSelectLimiter(perMinute int) *selectLimiter {
	return &selectLimiter{
		clients:   make(map[string]*clientWindow),
		perMinute: perMinute,
		now:       time.Now,
	}
}

// Allow counts a reload for clientIP in its current one-minute window.
func (l *selectLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	client, ok := l.clients[clientIP]
	if !ok || now.Sub(client.start) >= time.Minute {
		l.clients[clientIP] = &clientWindow{start: now, last: now, requests: 1}
		return true
	}

	client.last = now
	client.requests++
	return client.requests <= l.perMinute
}

// CleanExpired forgets clients idle for ten minutes, so the cache janitor
// can sweep the limiter alongside the caches.
func (l *selectLimiter) CleanExpired() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-staleClientAfter)
	removed := 0
	for ip, client := range l.clients {
		if client.last.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (l *selectLimiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

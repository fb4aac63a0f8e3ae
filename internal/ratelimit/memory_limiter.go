package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the single-process fallback used when Redis is not
// configured.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	buckets map[int64][]time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[int64][]time.Time),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, userID int64) (*Decision, error) {
	if m.limit <= 0 {
		return &Decision{Allowed: true, Remaining: 1}, nil
	}

	now := time.Now()
	windowStart := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	requests := keepRecent(m.buckets[userID], windowStart)

	if len(requests) >= m.limit {
		m.buckets[userID] = requests
		return &Decision{
			Allowed: false,
			ResetAt: requests[0].Add(m.window),
		}, nil
	}

	requests = append(requests, now)
	m.buckets[userID] = requests

	return &Decision{
		Allowed:   true,
		Remaining: m.limit - len(requests),
		ResetAt:   requests[0].Add(m.window),
	}, nil
}

// Cleanup drops users whose last request is older than maxAge.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}

	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	for userID, requests := range m.buckets {
		if len(requests) == 0 || requests[len(requests)-1].Before(cutoff) {
			delete(m.buckets, userID)
		}
	}
}

func keepRecent(requests []time.Time, windowStart time.Time) []time.Time {
	firstIdx := 0
	for firstIdx < len(requests) && requests[firstIdx].Before(windowStart) {
		firstIdx++
	}

	if firstIdx == 0 {
		return requests
	}

	copy(requests, requests[firstIdx:])
	return requests[:len(requests)-firstIdx]
}

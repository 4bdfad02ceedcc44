package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	day   string // UTC date the count belongs to
	count int
}

// DailyQuota implements Limiter with an in-memory per-key counter that
// resets at UTC midnight. A background goroutine evicts stale entries to
// bound memory.
type DailyQuota struct {
	mu       sync.Mutex
	counters map[string]*counter

	now func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// NewDailyQuota creates the quota limiter and starts its cleanup goroutine.
// Call Close to stop it.
func NewDailyQuota() *DailyQuota {
	q := &DailyQuota{
		counters: make(map[string]*counter),
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go q.cleanup()
	return q
}

// Allow consumes one unit for key; the count resets each UTC day.
func (q *DailyQuota) Allow(_ context.Context, key string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	today := q.now().UTC().Format(time.DateOnly)

	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.counters[key]
	if !ok || c.day != today {
		c = &counter{day: today}
		q.counters[key] = c
	}
	if c.count >= limit {
		return false, nil
	}
	c.count++
	return true, nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (q *DailyQuota) Close() error {
	q.stopOnce.Do(func() { close(q.done) })
	return nil
}

func (q *DailyQuota) cleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-ticker.C:
			q.evictStale()
		}
	}
}

func (q *DailyQuota) evictStale() {
	today := q.now().UTC().Format(time.DateOnly)

	q.mu.Lock()
	defer q.mu.Unlock()
	for key, c := range q.counters {
		if c.day != today {
			delete(q.counters, key)
		}
	}
}

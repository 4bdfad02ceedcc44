package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowCountsAgainstLimit(t *testing.T) {
	q := NewDailyQuota()
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := q.Allow(ctx, "user:a", 3)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i)
	}
	ok, err := q.Allow(ctx, "user:a", 3)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request should be rejected")
}

func TestAllowKeysAreIndependent(t *testing.T) {
	q := NewDailyQuota()
	defer q.Close()
	ctx := context.Background()

	ok, _ := q.Allow(ctx, "user:a", 1)
	assert.True(t, ok)
	ok, _ = q.Allow(ctx, "user:a", 1)
	assert.False(t, ok)

	ok, _ = q.Allow(ctx, "user:b", 1)
	assert.True(t, ok, "a different key has its own counter")
}

func TestAllowResetsAtUTCMidnight(t *testing.T) {
	q := NewDailyQuota()
	defer q.Close()
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)
	q.now = func() time.Time { return day1 }

	ok, _ := q.Allow(ctx, "user:a", 1)
	assert.True(t, ok)
	ok, _ = q.Allow(ctx, "user:a", 1)
	assert.False(t, ok)

	q.now = func() time.Time { return day1.Add(2 * time.Minute) } // past midnight
	ok, _ = q.Allow(ctx, "user:a", 1)
	assert.True(t, ok, "counter should reset on the new UTC day")
}

func TestAllowZeroLimitMeansUnlimited(t *testing.T) {
	q := NewDailyQuota()
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		ok, err := q.Allow(ctx, "user:a", 0)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestEvictStaleDropsOldDays(t *testing.T) {
	q := NewDailyQuota()
	defer q.Close()
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return day1 }
	_, _ = q.Allow(ctx, "user:a", 10)

	q.now = func() time.Time { return day1.AddDate(0, 0, 1) }
	q.evictStale()

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Empty(t, q.counters)
}

package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jordanmt/career-compass/backend/internal/storage"
)

func TestWithRetryRecoversFromLockedDatabase(t *testing.T) {
	attempts := 0
	err := storage.WithRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("UNIQUE constraint failed: messages.id")
	attempts := 0
	err := storage.WithRetry(context.Background(), 3, time.Millisecond, func() error {
		attempts++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := storage.WithRetry(context.Background(), 2, time.Millisecond, func() error {
		attempts++
		return errors.New("SQLITE_BUSY")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.WithRetry(ctx, 5, 10*time.Millisecond, func() error {
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// Package lock serializes per-entity writes within one process or, with
// Redis configured, across processes.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/meiwatch/internal/clock"
)

var (
	ErrEmptyKey      = errors.New("lock key is empty")
	ErrInvalidTTL    = errors.New("lock ttl must be positive")
	ErrNotConfigured = errors.New("lock client not configured")
	ErrWaitTimeout   = errors.New("timed out waiting for lock")
)

const DefaultRetryInterval = 50 * time.Millisecond

// Locker hands out expiring, token-checked locks. TryLock never blocks: ok
// is false when someone else holds the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// EntityKey is the lock key guarding one entity's guide and notification writes.
func EntityKey(entityID string) string {
	return "meiwatch:lock:entity:" + entityID
}

// Acquire retries TryLock every interval until the key is free or ctx is done.
func Acquire(ctx context.Context, l Locker, key string, ttl, interval time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrWaitTimeout, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

type holder struct {
	token     string
	expiresAt time.Time
}

// LocalLocker is an in-process keyed mutex with expiry.
type LocalLocker struct {
	clock clock.Clock

	mu   sync.Mutex
	held map[string]holder
}

func NewLocalLocker(clk clock.Clock) *LocalLocker {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &LocalLocker{clock: clk, held: make(map[string]holder)}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}

	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release is a no-op unless token still owns the key.
func (l *LocalLocker) Release(_ context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}

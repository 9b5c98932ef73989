package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	value   string
	expires time.Time
}

// Local keeps locks and idempotency keys in process memory. It is used when
// Redis is disabled and serves a single instance only.
type Local struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewLocal creates an empty in-process coordinator
func NewLocal() *Local {
	return &Local{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (l *Local) getLocked(key string) (string, bool) {
	e, ok := l.entries[key]
	if !ok {
		return "", false
	}
	if !e.expires.IsZero() && !l.now().Before(e.expires) {
		delete(l.entries, key)
		return "", false
	}
	return e.value, true
}

func (l *Local) setNX(key, value string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.getLocked(key); ok {
		return false
	}
	l.setLocked(key, value, ttl)
	return true
}

func (l *Local) setLocked(key, value string, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = l.now().Add(ttl)
	}
	l.entries[key] = e
}

// Ping always succeeds
func (l *Local) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (l *Local) Close() error {
	return nil
}

// AcquireLock takes key for ttl unless it is already held
func (l *Local) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	if !l.setNX(lockKey(key), token, ttl) {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock frees key if token still owns it
func (l *Local) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if val, ok := l.getLocked(lockKey(key)); ok && val == token {
		delete(l.entries, lockKey(key))
	}
	return nil
}

// ClaimIdempotencyKey marks key as in flight unless it is already known
func (l *Local) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.setNX(idempotencyKey(key), pendingValue, ttl), nil
}

// GetIdempotencyKey returns the stored value and whether the key is still in flight
func (l *Local) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	val, ok := l.getLocked(idempotencyKey(key))
	if !ok {
		return "", false, nil
	}
	if val == pendingValue {
		return "", true, nil
	}
	return val, false, nil
}

// SetIdempotencyKey stores the result of a finished request
func (l *Local) SetIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setLocked(idempotencyKey(key), value, ttl)
	return nil
}

// DeleteIdempotencyKey forgets key
func (l *Local) DeleteIdempotencyKey(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, idempotencyKey(key))
	return nil
}

package core

// upload_limiter.go bounds how many blobs are decoded at once across all
// widgets.
//
// The limiter uses a semaphore: when all slots are taken, a decode waits up to
// maxWait before failing with ErrTooManyDecodes. WaitForDrain blocks until all
// active decodes finish, for graceful shutdown.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyDecodes is returned when all decode slots are occupied and the
// wait timeout expires.
var ErrTooManyDecodes = errors.New("too many uploads in progress, please try again later")

// DefaultMaxConcurrentDecodes is the default limit for parallel decodes.
const DefaultMaxConcurrentDecodes = 8

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// DecodeLimiter controls concurrent blob decoding.
type DecodeLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewDecodeLimiter creates a limiter that allows at most maxConcurrent
// simultaneous decodes.
func NewDecodeLimiter(maxConcurrent int, maxWait time.Duration) *DecodeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentDecodes
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &DecodeLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire waits for a decode slot.
// Returns nil on success, ErrTooManyDecodes if the wait times out.
// The caller MUST call Release() when the decode completes.
func (l *DecodeLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-waitCtx.Done():
		// Distinguish caller cancellation from our own timeout
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyDecodes
	}
}

// TryAcquire attempts to acquire a slot without blocking.
func (l *DecodeLimiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release releases a previously acquired slot.
func (l *DecodeLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of decodes in progress.
func (l *DecodeLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the maximum allowed concurrent decodes.
func (l *DecodeLimiter) MaxConcurrent() int {
	return cap(l.semaphore)
}

// Available returns the number of free slots.
func (l *DecodeLimiter) Available() int {
	return cap(l.semaphore) - len(l.semaphore)
}

// WaitForDrain blocks until all active decodes complete or ctx is cancelled.
func (l *DecodeLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// DecodeLimiterStatus is a snapshot of the limiter's state.
type DecodeLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *DecodeLimiter) Status() DecodeLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return DecodeLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}

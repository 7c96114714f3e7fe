package query

import (
	"context"
	"sync"

	"github.com/beaconsearch/beacon/internal/metrics"
)

// DefaultConcurrencyLimit is the maximum concurrent queries per collection.
const DefaultConcurrencyLimit = 16

// ConcurrencyLimiter bounds concurrent entry point executions per collection.
// When the limit is reached, further callers wait for a free slot.
type ConcurrencyLimiter struct {
	mu       sync.Mutex
	limit    int
	limiters map[string]chan struct{}
}

// NewConcurrencyLimiter creates a limiter. A limit of zero or less uses
// DefaultConcurrencyLimit.
func NewConcurrencyLimiter(limit int) *ConcurrencyLimiter {
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}
	return &ConcurrencyLimiter{
		limit:    limit,
		limiters: make(map[string]chan struct{}),
	}
}

// Acquire blocks until a slot is free for collection or ctx is done. The
// returned release function must be called exactly once.
func (l *ConcurrencyLimiter) Acquire(ctx context.Context, collection string) (release func(), err error) {
	sem := l.semaphore(collection)

	select {
	case sem <- struct{}{}:
		metrics.IncQueryConcurrency(collection)
		return l.releaser(sem, collection), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes a slot without blocking.
func (l *ConcurrencyLimiter) TryAcquire(collection string) (release func(), ok bool) {
	sem := l.semaphore(collection)

	select {
	case sem <- struct{}{}:
		metrics.IncQueryConcurrency(collection)
		return l.releaser(sem, collection), true
	default:
		return nil, false
	}
}

// ActiveCount returns the number of slots held for collection.
func (l *ConcurrencyLimiter) ActiveCount(collection string) int {
	l.mu.Lock()
	sem, exists := l.limiters[collection]
	l.mu.Unlock()

	if !exists {
		return 0
	}
	return len(sem)
}

// Limit returns the per-collection limit.
func (l *ConcurrencyLimiter) Limit() int {
	return l.limit
}

func (l *ConcurrencyLimiter) releaser(sem chan struct{}, collection string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-sem
			metrics.DecQueryConcurrency(collection)
		})
	}
}

func (l *ConcurrencyLimiter) semaphore(collection string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, exists := l.limiters[collection]
	if !exists {
		sem = make(chan struct{}, l.limit)
		l.limiters[collection] = sem
	}
	return sem
}

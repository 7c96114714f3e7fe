package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/beaconsearch/beacon/internal/metrics"
)

func TestNewConcurrencyLimiter(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"default limit", 0, DefaultConcurrencyLimit},
		{"custom limit", 8, 8},
		{"negative limit uses default", -5, DefaultConcurrencyLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewConcurrencyLimiter(tc.limit).Limit(); got != tc.want {
				t.Errorf("expected limit %d, got %d", tc.want, got)
			}
		})
	}
}

func TestConcurrencyLimiter_Acquire(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		l := NewConcurrencyLimiter(2)
		ctx := context.Background()

		release1, err := l.Acquire(ctx, "runs")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		release2, err := l.Acquire(ctx, "runs")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.ActiveCount("runs") != 2 {
			t.Errorf("expected 2 active, got %d", l.ActiveCount("runs"))
		}

		release1()
		release2()
		if l.ActiveCount("runs") != 0 {
			t.Errorf("expected 0 active after release, got %d", l.ActiveCount("runs"))
		}
	})

	t.Run("blocks when limit reached", func(t *testing.T) {
		l := NewConcurrencyLimiter(1)
		ctx := context.Background()

		release, _ := l.Acquire(ctx, "runs")
		defer release()

		ctx2, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		if _, err := l.Acquire(ctx2, "runs"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected DeadlineExceeded, got %v", err)
		}
	})

	t.Run("queued caller eventually runs", func(t *testing.T) {
		l := NewConcurrencyLimiter(1)
		ctx := context.Background()

		release, _ := l.Acquire(ctx, "runs")

		done := make(chan struct{})
		go func() {
			defer close(done)
			r, err := l.Acquire(ctx, "runs")
			if err == nil {
				r()
			}
		}()

		time.Sleep(10 * time.Millisecond)
		select {
		case <-done:
			t.Fatal("should not have acquired yet")
		default:
		}

		release()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("queued caller never acquired a slot")
		}
	})

	t.Run("collections are independent", func(t *testing.T) {
		l := NewConcurrencyLimiter(1)
		ctx := context.Background()

		release, _ := l.Acquire(ctx, "biosamples")
		defer release()

		other, err := l.Acquire(ctx, "individuals")
		if err != nil {
			t.Fatalf("individuals should be available: %v", err)
		}
		other()

		if l.ActiveCount("individuals") != 0 {
			t.Errorf("expected 0 active for individuals, got %d", l.ActiveCount("individuals"))
		}
	})

	t.Run("release is idempotent", func(t *testing.T) {
		l := NewConcurrencyLimiter(2)
		release, _ := l.Acquire(context.Background(), "analyses")
		release()
		release()
		if l.ActiveCount("analyses") != 0 {
			t.Errorf("expected 0 active, got %d", l.ActiveCount("analyses"))
		}
	})
}

func TestConcurrencyLimiter_TryAcquire(t *testing.T) {
	l := NewConcurrencyLimiter(1)

	release, ok := l.TryAcquire("runs")
	if !ok {
		t.Fatal("expected TryAcquire to succeed")
	}
	if _, ok := l.TryAcquire("runs"); ok {
		t.Error("expected TryAcquire to fail when limit reached")
	}
	release()
	if _, ok := l.TryAcquire("runs"); !ok {
		t.Error("expected TryAcquire to succeed after release")
	}
}

func TestConcurrencyLimiter_Gauge(t *testing.T) {
	l := NewConcurrencyLimiter(4)
	gauge := metrics.QueryConcurrency.WithLabelValues("limiter_gauge_test")

	before := testutil.ToFloat64(gauge)
	release, _ := l.Acquire(context.Background(), "limiter_gauge_test")
	if got := testutil.ToFloat64(gauge); got != before+1 {
		t.Errorf("expected gauge %v, got %v", before+1, got)
	}
	release()
	if got := testutil.ToFloat64(gauge); got != before {
		t.Errorf("expected gauge %v after release, got %v", before, got)
	}
}

func TestConcurrencyLimiter_ConcurrentAccess(t *testing.T) {
	l := NewConcurrencyLimiter(16)
	ctx := context.Background()

	var wg sync.WaitGroup
	var maxConcurrent atomic.Int32
	var current atomic.Int32

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				release, err := l.Acquire(ctx, "genomicVariations")
				if err != nil {
					continue
				}

				cur := current.Add(1)
				for {
					max := maxConcurrent.Load()
					if cur <= max || maxConcurrent.CompareAndSwap(max, cur) {
						break
					}
				}

				time.Sleep(time.Microsecond)
				current.Add(-1)
				release()
			}
		}()
	}

	wg.Wait()

	if maxConcurrent.Load() > 16 {
		t.Errorf("max concurrent %d exceeded limit 16", maxConcurrent.Load())
	}
}

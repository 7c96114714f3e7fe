package storage

import (
	"context"
	"errors"
	"time"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/metrics"
)

// InstrumentedStore wraps a Store with Prometheus metrics.
type InstrumentedStore struct {
	inner Store
}

// NewInstrumentedStore creates a new instrumented store wrapper.
func NewInstrumentedStore(inner Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

// Count counts matching documents.
func (s *InstrumentedStore) Count(ctx context.Context, collection string, pred *filter.Filter) (int64, error) {
	start := time.Now()
	n, err := s.inner.Count(ctx, collection, pred)
	metrics.ObserveStorageOp("count", collection, time.Since(start).Seconds(), err)
	return n, err
}

// Find returns a page of matching documents.
func (s *InstrumentedStore) Find(ctx context.Context, collection string, pred *filter.Filter, opts FindOptions) ([]filter.Document, error) {
	start := time.Now()
	docs, err := s.inner.Find(ctx, collection, pred, opts)
	metrics.ObserveStorageOp("find", collection, time.Since(start).Seconds(), err)
	return docs, err
}

// FindOne returns the first matching document. ErrNotFound is not counted as a failure.
func (s *InstrumentedStore) FindOne(ctx context.Context, collection string, pred *filter.Filter, projection []string) (filter.Document, error) {
	start := time.Now()
	doc, err := s.inner.FindOne(ctx, collection, pred, projection)
	observed := err
	if errors.Is(err, ErrNotFound) {
		observed = nil
	}
	metrics.ObserveStorageOp("find_one", collection, time.Since(start).Seconds(), observed)
	return doc, err
}

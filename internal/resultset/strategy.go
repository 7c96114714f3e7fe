package resultset

import (
	"context"
	"fmt"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/metrics"
	"github.com/beaconsearch/beacon/internal/storage"
)

// countAndPage counts pred and reads one page of it.
func countAndPage(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error) {
	count, err := store.Count(ctx, collection, pred)
	if err != nil {
		return Result{}, err
	}
	docs, err := store.Find(ctx, collection, pred, storage.FindOptions{Skip: p.Skip, Limit: p.Limit})
	if err != nil {
		return Result{}, err
	}
	return Result{Count: count, Documents: docs}, nil
}

// HitStrategy returns the documents matching the compiled predicate.
type HitStrategy struct{}

func (HitStrategy) Mode() Mode { return Hit }

func (HitStrategy) Resolve(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error) {
	return countAndPage(ctx, store, collection, Select(pred, Hit), p)
}

// AllStrategy ignores the compiled predicate and pages the whole collection.
type AllStrategy struct{}

func (AllStrategy) Mode() Mode { return All }

func (AllStrategy) Resolve(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error) {
	return countAndPage(ctx, store, collection, Select(pred, All), p)
}

// NoneStrategy always yields an empty result. It does not reach the store:
// the never-matching text predicate needs a text index on MongoDB.
type NoneStrategy struct{}

func (NoneStrategy) Mode() Mode { return None }

func (NoneStrategy) Resolve(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Documents: []filter.Document{}}, nil
}

// MissStrategy returns the complement of the compiled predicate by
// snapshot-and-negate:
//
//  1. read the _id of every document matching pred (no skip, no limit);
//  2. build Nor(In(_id, ids...)), with no other constraint, so the result is
//     the complement over the whole collection and ignores the filters and
//     the access-control restriction that shaped pred;
//  3. read the caller's page of that negation and count it.
//
// Steps 1 and 3 are independent reads. A write in between can make the count
// and the page disagree with each other and with the positive set.
type MissStrategy struct {
	Logger *logging.Logger
}

func (*MissStrategy) Mode() Mode { return Miss }

func (s *MissStrategy) Resolve(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error) {
	positive, err := store.Find(ctx, collection, Select(pred, Miss), storage.FindOptions{
		Projection: []string{filter.IDField},
	})
	if err != nil {
		return Result{}, fmt.Errorf("miss positive set: %w", err)
	}

	ids := make([]any, 0, len(positive))
	for _, doc := range positive {
		if id, ok := doc[filter.IDField]; ok {
			ids = append(ids, id)
		}
	}
	metrics.ObserveMissPositiveSet(len(ids))
	logging.OrDiscard(s.Logger).WithContext(ctx).Debug("miss positive set",
		"collection", collection,
		"size", len(ids),
	)

	negation := NegateIDs(ids)
	res, err := countAndPage(ctx, store, collection, negation, p)
	if err != nil {
		return Result{}, fmt.Errorf("miss negation: %w", err)
	}
	return res, nil
}

// NegateIDs builds the predicate selecting every document whose _id is not
// one of ids.
func NegateIDs(ids []any) *filter.Filter {
	return filter.Nor(filter.In(filter.IDField, ids...))
}

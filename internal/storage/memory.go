package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/beaconsearch/beacon/internal/filter"
)

// MemoryStore keeps collections in memory and evaluates predicates with
// roaring row bitmaps. Documents keep insertion order.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]filter.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string][]filter.Document),
	}
}

// Insert appends documents to a collection, assigning an ObjectID to
// documents without one.
func (s *MemoryStore) Insert(collection string, docs ...filter.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		s.collections[collection] = append(s.collections[collection], withID(doc))
	}
}

// Replace swaps the whole content of a collection.
func (s *MemoryStore) Replace(collection string, docs []filter.Document) {
	rows := make([]filter.Document, len(docs))
	for i, doc := range docs {
		rows[i] = withID(doc)
	}

	s.mu.Lock()
	s.collections[collection] = rows
	s.mu.Unlock()
}

// CollectionNames returns the names of non-empty collections in sorted order.
func (s *MemoryStore) CollectionNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name, rows := range s.collections {
		if len(rows) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// withID returns doc with an _id, copying it first so the caller's map is
// left untouched.
func withID(doc filter.Document) filter.Document {
	if _, ok := doc[filter.IDField]; ok {
		return doc
	}
	out := make(filter.Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out[filter.IDField] = primitive.NewObjectID()
	return out
}

// rows returns the collection snapshot. The returned slice is not mutated
// by writers: Replace swaps it and Insert only appends.
func (s *MemoryStore) rows(collection string) []filter.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.collections[collection]
	return rows[:len(rows):len(rows)]
}

func (s *MemoryStore) match(ctx context.Context, collection string, pred *filter.Filter) ([]filter.Document, *roaring.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := pred.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	rows := s.rows(collection)
	return rows, pred.MatchRows(rows), nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, pred *filter.Filter) (int64, error) {
	_, bm, err := s.match(ctx, collection, pred)
	if err != nil {
		return 0, err
	}
	return int64(bm.GetCardinality()), nil
}

func (s *MemoryStore) Find(ctx context.Context, collection string, pred *filter.Filter, opts FindOptions) ([]filter.Document, error) {
	rows, bm, err := s.match(ctx, collection, pred)
	if err != nil {
		return nil, err
	}

	positions := filter.PageRows(bm, opts.Skip, opts.Limit)
	out := make([]filter.Document, 0, len(positions))
	for _, pos := range positions {
		out = append(out, filter.Project(rows[pos], opts.Projection))
	}
	return out, nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, pred *filter.Filter, projection []string) (filter.Document, error) {
	rows, bm, err := s.match(ctx, collection, pred)
	if err != nil {
		return nil, err
	}
	if bm.IsEmpty() {
		return nil, ErrNotFound
	}
	return filter.Project(rows[bm.Minimum()], projection), nil
}

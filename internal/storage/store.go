// Package storage provides access to the beacon document collections.
package storage

import (
	"context"
	"errors"

	"github.com/beaconsearch/beacon/internal/filter"
)

// Collection names.
const (
	CollectionVariants       = "genomicVariations"
	CollectionBiosamples     = "biosamples"
	CollectionIndividuals    = "individuals"
	CollectionRuns           = "runs"
	CollectionAnalyses       = "analyses"
	CollectionFilteringTerms = "filtering_terms"
)

// Collections lists every collection served.
var Collections = []string{
	CollectionVariants,
	CollectionBiosamples,
	CollectionIndividuals,
	CollectionRuns,
	CollectionAnalyses,
	CollectionFilteringTerms,
}

var (
	ErrNotFound          = errors.New("document not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidPredicate  = errors.New("invalid predicate")
)

// FindOptions controls pagination and projection of Find.
// A Limit of zero or less means no limit.
type FindOptions struct {
	Skip       int
	Limit      int
	Projection []string
}

// Store is the read interface over document collections. A nil predicate
// matches every document.
type Store interface {
	Count(ctx context.Context, collection string, pred *filter.Filter) (int64, error)
	Find(ctx context.Context, collection string, pred *filter.Filter, opts FindOptions) ([]filter.Document, error)
	// FindOne returns the first matching document, restricted to projection
	// when it is non-empty. It returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, collection string, pred *filter.Filter, projection []string) (filter.Document, error)
}

// IsKnownCollection reports whether name is a served collection.
func IsKnownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

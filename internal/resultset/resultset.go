// Package resultset decides which predicate a request actually executes and
// runs it against a collection under one of the result inclusion modes.
package resultset

import (
	"context"
	"strings"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/storage"
)

// Mode is the caller-selected result inclusion mode.
type Mode string

const (
	Hit     Mode = "HIT"
	Miss    Mode = "MISS"
	All     Mode = "ALL"
	None    Mode = "NONE"
	Default Mode = "DEFAULT"
)

// NoneSentinel is a search phrase that cannot match any document.
const NoneSentinel = "########"

// ParseMode maps an inclusion directive to a Mode. Matching ignores case and
// surrounding space; unrecognized values are Default.
func ParseMode(s string) Mode {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case Hit, Miss, All, None:
		return m
	default:
		return Default
	}
}

// Select returns the predicate executed for mode. For Miss the compiled
// predicate only seeds the positive set; the executed predicate is built by
// the Miss strategy.
func Select(pred *filter.Filter, mode Mode) *filter.Filter {
	switch mode {
	case All:
		return filter.And()
	case None:
		return filter.Text(NoneSentinel)
	default:
		return pred
	}
}

// Pagination is the caller's requested window. A Limit of zero or less
// means no limit.
// Pagination selects a page. Stores read a zero Limit as unbounded;
// requests parsed by the query package never carry one.
type Pagination struct {
	Skip  int `json:"skip" validate:"gte=0"`
	Limit int `json:"limit" validate:"gte=0"`
}

// Page is the outcome of one entry point.
type Page struct {
	Schema    string
	Count     int64
	Documents []filter.Document
	Skip      int
	Limit     int
}

// EmptyPage returns a page with no documents and a zero count.
func EmptyPage(schema string, p Pagination) Page {
	return Page{Schema: schema, Documents: []filter.Document{}, Skip: p.Skip, Limit: p.Limit}
}

// Result is what a strategy reads from the store.
type Result struct {
	Count     int64
	Documents []filter.Document
}

// Strategy executes a compiled predicate against a collection.
type Strategy interface {
	Mode() Mode
	Resolve(ctx context.Context, store storage.Store, collection string, pred *filter.Filter, p Pagination) (Result, error)
}

// Resolver runs the strategy selected by a mode.
type Resolver struct {
	store      storage.Store
	strategies map[Mode]Strategy
	logger     *logging.Logger
}

// NewResolver creates a resolver with the default strategies.
func NewResolver(store storage.Store, logger *logging.Logger) *Resolver {
	logger = logging.OrDiscard(logger)
	hit := HitStrategy{}
	return &Resolver{
		store:  store,
		logger: logger,
		strategies: map[Mode]Strategy{
			Hit:     hit,
			Default: hit,
			All:     AllStrategy{},
			None:    NoneStrategy{},
			Miss:    &MissStrategy{Logger: logger},
		},
	}
}

// WithStrategy replaces the strategy used for mode.
func (r *Resolver) WithStrategy(mode Mode, s Strategy) *Resolver {
	r.strategies[mode] = s
	return r
}

// Strategy returns the strategy for mode, falling back to the Default one.
func (r *Resolver) Strategy(mode Mode) Strategy {
	if s, ok := r.strategies[mode]; ok {
		return s
	}
	return r.strategies[Default]
}

// Run executes pred against collection under mode and builds the page.
func (r *Resolver) Run(ctx context.Context, collection, schema string, pred *filter.Filter, mode Mode, p Pagination) (Page, error) {
	s := r.Strategy(mode)
	r.logger.WithContext(ctx).Debug("resolving result set",
		"collection", collection,
		"mode", string(s.Mode()),
		"predicate", pred.String(),
	)

	res, err := s.Resolve(ctx, r.store, collection, pred, p)
	if err != nil {
		return Page{}, err
	}
	docs := res.Documents
	if docs == nil {
		docs = []filter.Document{}
	}
	return Page{Schema: schema, Count: res.Count, Documents: docs, Skip: p.Skip, Limit: p.Limit}, nil
}

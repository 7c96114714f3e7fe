// Package propagate answers "which records of another collection relate to
// this variant" by carrying the variant's case-level biosample ids over to
// the target collection.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/beaconsearch/beacon/internal/compile"
	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/filters"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/resultset"
	"github.com/beaconsearch/beacon/internal/storage"
)

// VariantIDField is the internal identifier of a variant document.
const VariantIDField = "variantInternalId"

// CaseLevelKeyPath is the projected path holding the case-level biosample ids.
const CaseLevelKeyPath = "caseLevelData.biosampleId"

var (
	// ErrEmptyRelationship marks a variant without a representative
	// document. It is resolved into an empty page and never returned.
	ErrEmptyRelationship = errors.New("variant has no representative document")
	ErrUnknownTarget     = errors.New("unknown target collection")
)

// Target describes how biosample ids join into a collection.
type Target struct {
	Collection string
	JoinField  string
	Schema     string
}

var targets = map[string]Target{
	storage.CollectionBiosamples:  {Collection: storage.CollectionBiosamples, JoinField: "id", Schema: storage.SchemaBiosamples},
	storage.CollectionIndividuals: {Collection: storage.CollectionIndividuals, JoinField: "id", Schema: storage.SchemaIndividuals},
	storage.CollectionRuns:        {Collection: storage.CollectionRuns, JoinField: "biosampleId", Schema: storage.SchemaRuns},
	storage.CollectionAnalyses:    {Collection: storage.CollectionAnalyses, JoinField: "biosampleId", Schema: storage.SchemaAnalyses},
}

// TargetFor returns the join description of collection.
func TargetFor(collection string) (Target, error) {
	t, ok := targets[collection]
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, collection)
	}
	return t, nil
}

// TargetNames returns the supported target collections in sorted order.
func TargetNames() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterApplier compiles the request filter list and the allow-list.
type FilterApplier interface {
	ApplyFilters(ctx context.Context, pred *filter.Filter, specs []filters.Spec, collection string, allowed []string) (*filter.Filter, error)
}

// Query is one cross-collection lookup.
type Query struct {
	VariantID         string
	RequestParameters map[string]any
	Filters           []filters.Spec
	AllowedIDs        []string
	Mode              resultset.Mode
	Pagination        resultset.Pagination
}

// Propagator runs cross-collection lookups.
type Propagator struct {
	store    storage.Store
	compiler *compile.Compiler
	applier  FilterApplier
	resolver *resultset.Resolver
	logger   *logging.Logger
}

func New(store storage.Store, compiler *compile.Compiler, applier FilterApplier, resolver *resultset.Resolver, logger *logging.Logger) *Propagator {
	return &Propagator{
		store:    store,
		compiler: compiler,
		applier:  applier,
		resolver: resolver,
		logger:   logging.OrDiscard(logger),
	}
}

// VariantPredicate builds the predicate selecting variant q.VariantID under
// the request parameters, filters and allow-list.
func (p *Propagator) VariantPredicate(ctx context.Context, q Query) (*filter.Filter, error) {
	pred := filter.And(filter.Eq(VariantIDField, q.VariantID))
	pred, err := p.compiler.ApplyRequestParameters(pred, q.RequestParameters)
	if err != nil {
		return nil, err
	}
	return p.applier.ApplyFilters(ctx, pred, q.Filters, storage.CollectionVariants, q.AllowedIDs)
}

// TargetPredicate joins keys into the target collection and restricts it with
// the filters and the allow-list computed for that collection.
func (p *Propagator) TargetPredicate(ctx context.Context, target Target, keys []any, q Query) (*filter.Filter, error) {
	pred := filter.And(filter.In(target.JoinField, keys...))
	return p.applier.ApplyFilters(ctx, pred, q.Filters, target.Collection, q.AllowedIDs)
}

// Lookup returns the page of target records related to the variant. A
// variant that matches no document yields an empty page, not an error.
func (p *Propagator) Lookup(ctx context.Context, collection string, q Query) (resultset.Page, error) {
	target, err := TargetFor(collection)
	if err != nil {
		return resultset.Page{}, err
	}
	log := p.logger.WithContext(ctx)

	variantPred, err := p.VariantPredicate(ctx, q)
	if err != nil {
		return resultset.Page{}, err
	}

	doc, err := p.store.FindOne(ctx, storage.CollectionVariants, variantPred, []string{CaseLevelKeyPath})
	if errors.Is(err, storage.ErrNotFound) {
		log.Debug("empty relationship",
			"variant_id", q.VariantID,
			"target", target.Collection,
			"reason", ErrEmptyRelationship.Error(),
		)
		return resultset.EmptyPage(target.Schema, q.Pagination), nil
	}
	if err != nil {
		return resultset.Page{}, fmt.Errorf("read case-level keys: %w", err)
	}

	keys := CaseLevelKeys(doc)
	log.Debug("propagating case-level keys",
		"variant_id", q.VariantID,
		"target", target.Collection,
		"join_field", target.JoinField,
		"keys", len(keys),
	)

	targetPred, err := p.TargetPredicate(ctx, target, keys, q)
	if err != nil {
		return resultset.Page{}, err
	}
	return p.resolver.Run(ctx, target.Collection, target.Schema, targetPred, q.Mode, q.Pagination)
}

// CaseLevelKeys returns the distinct biosample ids of a projected variant
// document in document order.
func CaseLevelKeys(doc filter.Document) []any {
	values, _ := filter.Lookup(doc, CaseLevelKeyPath)
	seen := make(map[any]struct{}, len(values))
	keys := make([]any, 0, len(values))
	for _, v := range values {
		if v == nil || !reflect.TypeOf(v).Comparable() {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		keys = append(keys, v)
	}
	return keys
}

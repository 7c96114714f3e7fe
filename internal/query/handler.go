// Package query hosts the variant entry points: searching variants, reading
// one variant, listing the records of other collections related to a
// variant, and listing the variant filtering terms.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/beaconsearch/beacon/internal/catalog"
	"github.com/beaconsearch/beacon/internal/compile"
	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/filters"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/mapping"
	"github.com/beaconsearch/beacon/internal/metrics"
	"github.com/beaconsearch/beacon/internal/propagate"
	"github.com/beaconsearch/beacon/internal/resultset"
	"github.com/beaconsearch/beacon/internal/storage"
)

// Entry point names, used as metric labels and log fields.
const (
	EntryPointSearchVariants     = "searchVariants"
	EntryPointGetVariantByID     = "getVariantById"
	EntryPointBiosamplesOfVar    = "getBiosamplesOfVariant"
	EntryPointIndividualsOfVar   = "getIndividualsOfVariant"
	EntryPointRunsOfVariant      = "getRunsOfVariant"
	EntryPointAnalysesOfVariant  = "getAnalysesOfVariant"
	EntryPointListFilteringTerms = "listFilteringTermsForVariants"
)

var relatedEntryPoints = map[string]string{
	storage.CollectionBiosamples:  EntryPointBiosamplesOfVar,
	storage.CollectionIndividuals: EntryPointIndividualsOfVar,
	storage.CollectionRuns:        EntryPointRunsOfVariant,
	storage.CollectionAnalyses:    EntryPointAnalysesOfVariant,
}

// Options tune a Handler. Zero values fall back to defaults.
type Options struct {
	Limits           Limits
	ConcurrencyLimit int
	QueryTimeout     time.Duration
}

// Handler executes the entry points against a store.
type Handler struct {
	store      storage.Store
	catalog    *catalog.Catalog
	applier    *filters.Applier
	compiler   *compile.Compiler
	resolver   *resultset.Resolver
	propagator *propagate.Propagator
	limiter    *ConcurrencyLimiter
	limits     Limits
	timeout    time.Duration
	logger     *logging.Logger
}

// NewHandler wires the compiler, the filter applier, the result-set resolver
// and the propagator over store.
func NewHandler(store storage.Store, logger *logging.Logger, opts Options) *Handler {
	logger = logging.OrDiscard(logger)
	cat := catalog.New(store)
	applier := filters.NewApplier(cat)
	compiler := compile.New(mapping.Variants, storage.CollectionVariants, applier)
	resolver := resultset.NewResolver(store, logger)

	return &Handler{
		store:      store,
		catalog:    cat,
		applier:    applier,
		compiler:   compiler,
		resolver:   resolver,
		propagator: propagate.New(store, compiler, applier, resolver, logger),
		limiter:    NewConcurrencyLimiter(opts.ConcurrencyLimit),
		limits:     opts.Limits.withDefaults(),
		timeout:    opts.QueryTimeout,
		logger:     logger,
	}
}

// Limits returns the pagination limits requests are parsed with.
func (h *Handler) Limits() Limits {
	return h.limits
}

// Limiter returns the per-collection concurrency limiter.
func (h *Handler) Limiter() *ConcurrencyLimiter {
	return h.limiter
}

// SearchVariants compiles the request against the variant collection with no
// id restriction.
func (h *Handler) SearchVariants(ctx context.Context, req *Request) (resultset.Page, error) {
	req = h.orDefault(req)
	return h.run(ctx, EntryPointSearchVariants, storage.CollectionVariants, req, func(ctx context.Context) (resultset.Page, error) {
		return h.variants(ctx, nil, req)
	})
}

// GetVariantByID is SearchVariants restricted to one variant internal id.
func (h *Handler) GetVariantByID(ctx context.Context, id string, req *Request) (resultset.Page, error) {
	req = h.orDefault(req)
	return h.run(ctx, EntryPointGetVariantByID, storage.CollectionVariants, req, func(ctx context.Context) (resultset.Page, error) {
		return h.variants(ctx, filter.And(filter.Eq(propagate.VariantIDField, id)), req)
	})
}

func (h *Handler) variants(ctx context.Context, seed *filter.Filter, req *Request) (resultset.Page, error) {
	pred, err := h.compiler.ApplyRequestParameters(seed, req.FieldFilters)
	if err != nil {
		return resultset.Page{}, err
	}
	pred, err = h.applier.ApplyFilters(ctx, pred, req.Filters, storage.CollectionVariants, req.AllowedIDs)
	if err != nil {
		return resultset.Page{}, err
	}
	h.logger.WithContext(ctx).Debug("compiled variant predicate",
		"clauses", pred.Len(),
		"mode", string(req.Mode),
	)
	return h.resolver.Run(ctx, storage.CollectionVariants, storage.SchemaGenomicVariations, pred, req.Mode, req.Pagination)
}

// GetRelated returns the records of target related to variant id.
func (h *Handler) GetRelated(ctx context.Context, target, id string, req *Request) (resultset.Page, error) {
	req = h.orDefault(req)
	entryPoint, ok := relatedEntryPoints[target]
	if !ok {
		_, err := propagate.TargetFor(target)
		return resultset.Page{}, err
	}
	return h.run(ctx, entryPoint, target, req, func(ctx context.Context) (resultset.Page, error) {
		return h.propagator.Lookup(ctx, target, propagate.Query{
			VariantID:         id,
			RequestParameters: req.FieldFilters,
			Filters:           req.Filters,
			AllowedIDs:        req.AllowedIDs,
			Mode:              req.Mode,
			Pagination:        req.Pagination,
		})
	})
}

func (h *Handler) GetBiosamplesOfVariant(ctx context.Context, id string, req *Request) (resultset.Page, error) {
	return h.GetRelated(ctx, storage.CollectionBiosamples, id, req)
}

func (h *Handler) GetIndividualsOfVariant(ctx context.Context, id string, req *Request) (resultset.Page, error) {
	return h.GetRelated(ctx, storage.CollectionIndividuals, id, req)
}

func (h *Handler) GetRunsOfVariant(ctx context.Context, id string, req *Request) (resultset.Page, error) {
	return h.GetRelated(ctx, storage.CollectionRuns, id, req)
}

func (h *Handler) GetAnalysesOfVariant(ctx context.Context, id string, req *Request) (resultset.Page, error) {
	return h.GetRelated(ctx, storage.CollectionAnalyses, id, req)
}

// ListFilteringTerms reads the catalog entries of the variant collection.
// Only the pagination of req is used.
func (h *Handler) ListFilteringTerms(ctx context.Context, req *Request) (resultset.Page, error) {
	req = h.orDefault(req)
	return h.run(ctx, EntryPointListFilteringTerms, storage.CollectionFilteringTerms, req, func(ctx context.Context) (resultset.Page, error) {
		count, docs, err := h.catalog.List(ctx, storage.CollectionVariants, req.Pagination.Skip, req.Pagination.Limit)
		if err != nil {
			return resultset.Page{}, err
		}
		if docs == nil {
			docs = []filter.Document{}
		}
		return resultset.Page{
			Schema:    storage.SchemaFilteringTerms,
			Count:     count,
			Documents: docs,
			Skip:      req.Pagination.Skip,
			Limit:     req.Pagination.Limit,
		}, nil
	})
}

// orDefault returns req, or a default request when req is nil.
func (h *Handler) orDefault(req *Request) *Request {
	if req != nil {
		return req
	}
	return &Request{Mode: resultset.Default, Pagination: resultset.Pagination{Limit: h.limits.DefaultLimit}}
}

// run bounds one entry point execution by the collection limiter and the
// query timeout and records its outcome.
func (h *Handler) run(ctx context.Context, entryPoint, collection string, req *Request, fn func(context.Context) (resultset.Page, error)) (resultset.Page, error) {
	if err := req.Validate(h.limits); err != nil {
		return resultset.Page{}, err
	}

	start := time.Now()
	ctx = logging.ContextWithEndpoint(ctx, entryPoint)
	ctx = logging.ContextWithCollection(ctx, collection)
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	release, err := h.limiter.Acquire(ctx, collection)
	if err != nil {
		metrics.ObserveQuery(entryPoint, string(req.Mode), time.Since(start).Seconds(), err)
		return resultset.Page{}, err
	}
	defer release()

	page, err := fn(ctx)
	elapsed := time.Since(start)
	metrics.ObserveQuery(entryPoint, string(req.Mode), elapsed.Seconds(), err)

	log := h.logger.WithContext(ctx)
	if err != nil {
		if errors.Is(err, compile.ErrUnsupportedField) || errors.Is(err, filters.ErrInvalidFilter) || errors.Is(err, compile.ErrInvalidRange) {
			log.Debug("request rejected", "error", err)
		} else {
			log.Error("query failed", "error", err)
		}
		return resultset.Page{}, err
	}
	log.Debug("query completed",
		"mode", string(req.Mode),
		"count", page.Count,
		"returned", len(page.Documents),
		"query_exec_ms", float64(elapsed.Microseconds())/1000,
	)
	return page, nil
}

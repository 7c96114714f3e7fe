// Package filters compiles the request filter list (ontology, alphanumeric
// and custom filters) and the access-control allow-list into predicate clauses.
package filters

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/beaconsearch/beacon/internal/catalog"
	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/storage"
)

var (
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrUnknownCollection = errors.New("collection has no access-control field")
)

var ontologyPattern = regexp.MustCompile(`^[_A-Za-z]+:[_A-Za-z0-9^\-]+$`)

// Spec is one entry of the request filter list.
type Spec struct {
	ID                     string `json:"id" validate:"required"`
	Operator               string `json:"operator,omitempty"`
	Value                  any    `json:"value,omitempty"`
	IncludeDescendantTerms bool   `json:"includeDescendantTerms,omitempty"`
	Scope                  string `json:"scope,omitempty"`
}

// Kind classifies a filter.
type Kind string

const (
	KindOntology     Kind = "ontology"
	KindAlphanumeric Kind = "alphanumeric"
	KindCustom       Kind = "custom"
)

// Classify returns the kind of s. Filters carrying an operator or a value
// are alphanumeric; ids shaped like a CURIE are ontology terms; any other
// "path:value" id is a custom filter.
func (s Spec) Classify() (Kind, error) {
	switch {
	case s.Operator != "" || s.Value != nil:
		return KindAlphanumeric, nil
	case ontologyPattern.MatchString(s.ID):
		return KindOntology, nil
	case strings.Contains(s.ID, ":"):
		return KindCustom, nil
	default:
		return "", fmt.Errorf("%w: cannot classify %q", ErrInvalidFilter, s.ID)
	}
}

// TermResolver looks up ontology terms in the filtering terms catalog.
type TermResolver interface {
	LookupTerm(ctx context.Context, id, collection string) (catalog.Term, error)
}

// accessFields maps each collection to the field holding its biosample id.
var accessFields = map[string]string{
	storage.CollectionVariants:    "caseLevelData.biosampleId",
	storage.CollectionBiosamples:  "id",
	storage.CollectionIndividuals: "id",
	storage.CollectionRuns:        "biosampleId",
	storage.CollectionAnalyses:    "biosampleId",
}

// AccessField returns the field restricted by the allow-list for collection.
func AccessField(collection string) (string, bool) {
	f, ok := accessFields[collection]
	return f, ok
}

// Applier is the filter-application collaborator.
type Applier struct {
	terms TermResolver
}

// NewApplier creates an applier. A nil resolver treats every ontology term
// as uncatalogued.
func NewApplier(terms TermResolver) *Applier {
	return &Applier{terms: terms}
}

// ApplyFilters compiles specs against collection and restricts the result to
// allowed biosample ids. A nil allowed list means unrestricted; an empty
// non-nil list matches nothing. Clauses are appended to pred in place; on
// error pred is returned untouched.
func (a *Applier) ApplyFilters(ctx context.Context, pred *filter.Filter, specs []Spec, collection string, allowed []string) (*filter.Filter, error) {
	if len(specs) == 0 && allowed == nil {
		return pred, nil
	}

	compiled := filter.And()
	for _, spec := range specs {
		f, err := a.compile(ctx, spec, collection)
		if err != nil {
			return pred, err
		}
		compiled.Append(f)
	}

	if allowed != nil {
		field, ok := AccessField(collection)
		if !ok {
			return pred, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
		}
		ids := make([]any, len(allowed))
		for i, id := range allowed {
			ids[i] = id
		}
		compiled.Append(filter.In(field, ids...))
	}

	if pred == nil {
		return compiled, nil
	}
	return pred.Append(compiled.Children...), nil
}

// ApplyAlphanumericFilter appends one clause to pred.
func (a *Applier) ApplyAlphanumericFilter(pred *filter.Filter, clause filter.Clause, collection string) (*filter.Filter, error) {
	f, err := clause.ToFilter()
	if err != nil {
		return pred, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, collection, err)
	}
	return pred.Append(f), nil
}

func (a *Applier) compile(ctx context.Context, spec Spec, collection string) (*filter.Filter, error) {
	kind, err := spec.Classify()
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindAlphanumeric:
		clause, err := alphanumericClause(spec)
		if err != nil {
			return nil, err
		}
		return clause.ToFilter()
	case KindOntology:
		return a.ontologyFilter(ctx, spec, collection)
	default:
		idx := strings.LastIndex(spec.ID, ":")
		path, value := spec.ID[:idx], spec.ID[idx+1:]
		if path == "" || value == "" {
			return nil, fmt.Errorf("%w: custom filter %q must be path:value", ErrInvalidFilter, spec.ID)
		}
		return filter.Eq(path, value), nil
	}
}

// ontologyFilter resolves the term's field in the catalog. Terms missing
// from the catalog fall back to a full-text search on the quoted term.
func (a *Applier) ontologyFilter(ctx context.Context, spec Spec, collection string) (*filter.Filter, error) {
	if a.terms == nil {
		return filter.Text(strconv.Quote(spec.ID)), nil
	}
	term, err := a.terms.LookupTerm(ctx, spec.ID, collection)
	if errors.Is(err, catalog.ErrTermNotFound) || (err == nil && term.Field == "") {
		return filter.Text(strconv.Quote(spec.ID)), nil
	}
	if err != nil {
		return nil, err
	}

	if spec.IncludeDescendantTerms && len(term.Descendants) > 0 {
		values := []any{spec.ID}
		for _, d := range term.Descendants {
			if d != spec.ID {
				values = append(values, d)
			}
		}
		return filter.In(term.Field, values...), nil
	}
	return filter.Eq(term.Field, spec.ID), nil
}

var alphanumericOperators = map[string]filter.ClauseOperator{
	"=":  filter.Equal,
	"<":  filter.Less,
	">":  filter.Greater,
	"<=": filter.LessEqual,
	">=": filter.GreaterEqual,
	"!":  filter.NotEqual,
}

func alphanumericClause(spec Spec) (filter.Clause, error) {
	opName := spec.Operator
	if opName == "" {
		opName = "="
	}
	op, ok := alphanumericOperators[opName]
	if !ok {
		return filter.Clause{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, spec.Operator)
	}

	var values []any
	switch v := spec.Value.(type) {
	case nil:
		return filter.Clause{}, fmt.Errorf("%w: %q has no value", ErrInvalidFilter, spec.ID)
	case []any:
		for _, item := range v {
			values = append(values, coerceValue(item))
		}
	case []string:
		for _, item := range v {
			values = append(values, coerceValue(item))
		}
	default:
		values = []any{coerceValue(v)}
	}
	if len(values) == 0 {
		return filter.Clause{}, fmt.Errorf("%w: %q has no value", ErrInvalidFilter, spec.ID)
	}
	return filter.Clause{Field: spec.ID, Operator: op, Values: values}, nil
}

// coerceValue turns numeric strings into numbers so that range operators
// compare numerically.
func coerceValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}

// Package compile turns request parameters of the variant endpoints into a
// conjunctive predicate.
package compile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/mapping"
)

var (
	ErrUnsupportedField = errors.New("unsupported filter field")
	ErrInvalidRange     = errors.New("invalid coordinate range")
)

// UnsupportedFieldError names a request key missing from the mapping table.
type UnsupportedFieldError struct {
	Key string
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("unsupported filter field %q", e.Key)
}

// Is makes errors.Is(err, ErrUnsupportedField) true.
func (e *UnsupportedFieldError) Is(target error) bool {
	return target == ErrUnsupportedField
}

// ClauseApplier compiles one clause into pred. It is satisfied by the
// filter-application collaborator.
type ClauseApplier interface {
	ApplyAlphanumericFilter(pred *filter.Filter, clause filter.Clause, collection string) (*filter.Filter, error)
}

// Compiler compiles request parameters against a mapping table.
type Compiler struct {
	table      *mapping.Table
	collection string
	applier    ClauseApplier
}

// New creates a compiler. A nil applier appends clauses directly.
func New(table *mapping.Table, collection string, applier ClauseApplier) *Compiler {
	return &Compiler{table: table, collection: collection, applier: applier}
}

// PositionFilterStart synthesizes clauses for a start-anchored coordinate key.
// One value yields "path >= v0"; two values yield "path >= v0" and "path <= v1";
// any other count yields no clause.
func (c *Compiler) PositionFilterStart(key string, values []int64) []filter.Clause {
	return c.positionFilter(key, values, filter.GreaterEqual)
}

// PositionFilterEnd synthesizes clauses for an end-anchored coordinate key.
// One value yields "path <= v0". Two values yield the same pair of clauses as
// PositionFilterStart, "path >= v0" and "path <= v1", not a range relative to
// the end coordinate.
func (c *Compiler) PositionFilterEnd(key string, values []int64) []filter.Clause {
	return c.positionFilter(key, values, filter.LessEqual)
}

func (c *Compiler) positionFilter(key string, values []int64, single filter.ClauseOperator) []filter.Clause {
	path := c.table.Path(key)
	switch len(values) {
	case 1:
		return []filter.Clause{
			{Field: path, Operator: single, Values: []any{values[0]}},
		}
	case 2:
		return []filter.Clause{
			{Field: path, Operator: filter.GreaterEqual, Values: []any{values[0]}},
			{Field: path, Operator: filter.LessEqual, Values: []any{values[1]}},
		}
	default:
		return nil
	}
}

// ApplyRequestParameters compiles params and appends the resulting clauses to
// pred in place, creating a conjunction when pred is nil. Keys are compiled
// in sorted order. On error pred is returned untouched.
//
// Calling it twice with the same parameters duplicates the clauses.
func (c *Compiler) ApplyRequestParameters(pred *filter.Filter, params map[string]any) (*filter.Filter, error) {
	if len(params) == 0 {
		return pred, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	compiled := filter.And()
	for _, key := range keys {
		entry, ok := c.table.Lookup(key)
		if !ok {
			return pred, &UnsupportedFieldError{Key: key}
		}
		values := SplitValues(params[key])

		var clauses []filter.Clause
		switch entry.Kind {
		case mapping.Reserved:
			continue
		case mapping.RangeFrom, mapping.RangeTo:
			coords, err := parseCoordinates(key, values)
			if err != nil {
				return pred, err
			}
			if entry.Kind == mapping.RangeFrom {
				clauses = c.PositionFilterStart(key, coords)
			} else {
				clauses = c.PositionFilterEnd(key, coords)
			}
		default:
			if len(values) == 0 {
				continue
			}
			clauses = []filter.Clause{{Field: entry.Path, Operator: filter.Equal, Values: values}}
		}

		for _, clause := range clauses {
			var err error
			compiled, err = c.apply(compiled, clause)
			if err != nil {
				return pred, fmt.Errorf("compile %q: %w", key, err)
			}
		}
	}

	if pred == nil {
		return compiled, nil
	}
	return pred.Append(compiled.Children...), nil
}

func (c *Compiler) apply(pred *filter.Filter, clause filter.Clause) (*filter.Filter, error) {
	if c.applier != nil {
		return c.applier.ApplyAlphanumericFilter(pred, clause, c.collection)
	}
	f, err := clause.ToFilter()
	if err != nil {
		return nil, err
	}
	return pred.Append(f), nil
}

// SplitValues normalizes a request value into a list. Strings are split on
// commas, lists are flattened one level the same way and other scalars are
// kept as a single value. Empty items are dropped.
func SplitValues(v any) []any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		var out []any
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	case []string:
		var out []any
		for _, s := range val {
			out = append(out, SplitValues(s)...)
		}
		return out
	case []any:
		var out []any
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, SplitValues(s)...)
				continue
			}
			if item != nil {
				out = append(out, item)
			}
		}
		return out
	default:
		return []any{v}
	}
}

func parseCoordinates(key string, values []any) ([]int64, error) {
	out := make([]int64, 0, len(values))
	for _, v := range values {
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRange, key, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseInt(n, 10, 64)
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		// float64(math.MaxInt64) rounds up to 2^63.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("%v is out of range", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unsupported coordinate type %T", v)
	}
}

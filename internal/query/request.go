package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/beaconsearch/beacon/internal/filters"
	"github.com/beaconsearch/beacon/internal/resultset"
)

const (
	// DefaultLimit is the page size used when the request names none.
	DefaultLimit = 10

	// MaxLimit is the largest page size accepted by default.
	MaxLimit = 1000
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidPagination = errors.New("invalid pagination")
)

var validate = validator.New()

// Limits bound the pagination a request may ask for.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

func (l Limits) withDefaults() Limits {
	if l.DefaultLimit <= 0 {
		l.DefaultLimit = DefaultLimit
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = MaxLimit
	}
	return l
}

// Request is the parsed request-parameters object shared by every entry point.
type Request struct {
	FieldFilters map[string]any
	Filters      []filters.Spec `validate:"dive"`
	Pagination   resultset.Pagination
	Mode         resultset.Mode
	AllowedIDs   []string `validate:"omitempty,dive,required"`
}

// ParseRequest parses a decoded JSON body. The request parameters may sit at
// the top level or under "query", as Beacon clients send them. allowedIds is
// always read from the top level.
func ParseRequest(body map[string]any, limits Limits) (*Request, error) {
	limits = limits.withDefaults()
	req := &Request{
		Mode:       resultset.Default,
		Pagination: resultset.Pagination{Limit: limits.DefaultLimit},
	}

	q := body
	if nested, ok := body["query"].(map[string]any); ok {
		q = nested
	}

	// "fieldFilters" is accepted as an alias of "requestParameters".
	for _, key := range []string{"requestParameters", "fieldFilters"} {
		v, ok := q[key]
		if !ok || v == nil {
			continue
		}
		params, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidRequest, key)
		}
		req.FieldFilters = params
		break
	}

	if v, ok := q["filters"]; ok && v != nil {
		specs, err := parseFilters(v)
		if err != nil {
			return nil, err
		}
		req.Filters = specs
	}

	if v, ok := q["pagination"]; ok && v != nil {
		p, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: pagination must be an object", ErrInvalidPagination)
		}
		if s, ok := p["skip"]; ok {
			skip, err := parseIntValue(s)
			if err != nil {
				return nil, fmt.Errorf("%w: skip: %v", ErrInvalidPagination, err)
			}
			req.Pagination.Skip = skip
		}
		if l, ok := p["limit"]; ok {
			limit, err := parseIntValue(l)
			if err != nil {
				return nil, fmt.Errorf("%w: limit: %v", ErrInvalidPagination, err)
			}
			// A zero limit asks for the default page size, never an unbounded one.
			if limit == 0 {
				limit = limits.DefaultLimit
			}
			req.Pagination.Limit = limit
		}
	}

	if v, ok := q["includeResultsetResponses"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: includeResultsetResponses must be a string", ErrInvalidRequest)
		}
		req.Mode = resultset.ParseMode(s)
	}

	if v, ok := body["allowedIds"]; ok && v != nil {
		ids, err := parseStringSlice(v)
		if err != nil {
			return nil, fmt.Errorf("%w: allowedIds: %v", ErrInvalidRequest, err)
		}
		req.AllowedIDs = ids
	}

	if err := req.Validate(limits); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks req against its struct constraints and limits.
func (r *Request) Validate(limits Limits) error {
	limits = limits.withDefaults()
	if err := validate.Struct(r.Pagination); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPagination, err)
	}
	if r.Pagination.Limit > limits.MaxLimit {
		return fmt.Errorf("%w: limit %d exceeds %d", ErrInvalidPagination, r.Pagination.Limit, limits.MaxLimit)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// parseFilters accepts a list of filter objects or bare filter ids.
func parseFilters(v any) ([]filters.Spec, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: filters must be an array", ErrInvalidRequest)
	}
	specs := make([]filters.Spec, 0, len(items))
	for i, item := range items {
		switch val := item.(type) {
		case string:
			specs = append(specs, filters.Spec{ID: val})
		case map[string]any:
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("%w: filter %d: %v", ErrInvalidRequest, i, err)
			}
			var spec filters.Spec
			if err := json.Unmarshal(raw, &spec); err != nil {
				return nil, fmt.Errorf("%w: filter %d: %v", ErrInvalidRequest, i, err)
			}
			specs = append(specs, spec)
		default:
			return nil, fmt.Errorf("%w: filter %d must be an object or a string", ErrInvalidRequest, i)
		}
	}
	return specs, nil
}

func parseStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		result := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected array of strings")
	}
}

func parseIntValue(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != float64(int(val)) {
			return 0, fmt.Errorf("%v is not an integer", val)
		}
		return int(val), nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return 0, err
		}
		return int(i), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(val))
	default:
		return 0, fmt.Errorf("expected integer")
	}
}

package query

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/beaconsearch/beacon/internal/resultset"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantErr error
		check   func(t *testing.T, req *Request)
	}{
		{
			name: "empty body uses defaults",
			body: map[string]any{},
			check: func(t *testing.T, req *Request) {
				if req.Mode != resultset.Default {
					t.Errorf("expected DEFAULT mode, got %s", req.Mode)
				}
				if req.Pagination.Skip != 0 || req.Pagination.Limit != DefaultLimit {
					t.Errorf("unexpected pagination %+v", req.Pagination)
				}
				if req.AllowedIDs != nil {
					t.Errorf("expected unrestricted access, got %v", req.AllowedIDs)
				}
			},
		},
		{
			name: "nested query object",
			body: map[string]any{
				"meta": map[string]any{"apiVersion": "2.0"},
				"query": map[string]any{
					"requestParameters":         map[string]any{"start": "150"},
					"pagination":                map[string]any{"skip": float64(5), "limit": float64(20)},
					"includeResultsetResponses": "miss",
				},
				"allowedIds": []any{"B1", "B2"},
			},
			check: func(t *testing.T, req *Request) {
				if req.FieldFilters["start"] != "150" {
					t.Errorf("unexpected field filters %v", req.FieldFilters)
				}
				if req.Pagination.Skip != 5 || req.Pagination.Limit != 20 {
					t.Errorf("unexpected pagination %+v", req.Pagination)
				}
				if req.Mode != resultset.Miss {
					t.Errorf("expected MISS, got %s", req.Mode)
				}
				if len(req.AllowedIDs) != 2 {
					t.Errorf("unexpected allowed ids %v", req.AllowedIDs)
				}
			},
		},
		{
			name: "fieldFilters alias",
			body: map[string]any{"fieldFilters": map[string]any{"gene": "BRCA1"}},
			check: func(t *testing.T, req *Request) {
				if req.FieldFilters["gene"] != "BRCA1" {
					t.Errorf("unexpected field filters %v", req.FieldFilters)
				}
			},
		},
		{
			name: "filters as objects and ids",
			body: map[string]any{"filters": []any{
				"NCIT:C3058",
				map[string]any{"id": "NCIT:C20197", "includeDescendantTerms": true},
				map[string]any{"id": "age", "operator": ">=", "value": "30"},
			}},
			check: func(t *testing.T, req *Request) {
				if len(req.Filters) != 3 {
					t.Fatalf("expected 3 filters, got %d", len(req.Filters))
				}
				if req.Filters[0].ID != "NCIT:C3058" {
					t.Errorf("unexpected first filter %+v", req.Filters[0])
				}
				if !req.Filters[1].IncludeDescendantTerms {
					t.Errorf("expected includeDescendantTerms, got %+v", req.Filters[1])
				}
				if req.Filters[2].Operator != ">=" || req.Filters[2].Value != "30" {
					t.Errorf("unexpected alphanumeric filter %+v", req.Filters[2])
				}
			},
		},
		{
			name: "empty allow-list is kept",
			body: map[string]any{"allowedIds": []any{}},
			check: func(t *testing.T, req *Request) {
				if req.AllowedIDs == nil || len(req.AllowedIDs) != 0 {
					t.Errorf("expected empty non-nil allow-list, got %#v", req.AllowedIDs)
				}
			},
		},
		{
			name: "json.Number pagination",
			body: map[string]any{"pagination": map[string]any{"limit": json.Number("3")}},
			check: func(t *testing.T, req *Request) {
				if req.Pagination.Limit != 3 {
					t.Errorf("expected limit 3, got %d", req.Pagination.Limit)
				}
			},
		},
		{
			name: "string pagination",
			body: map[string]any{"pagination": map[string]any{"skip": "4", "limit": " 7"}},
			check: func(t *testing.T, req *Request) {
				if req.Pagination.Skip != 4 || req.Pagination.Limit != 7 {
					t.Errorf("expected skip 4 limit 7, got %+v", req.Pagination)
				}
			},
		},
		{
			name:    "non-numeric limit",
			body:    map[string]any{"pagination": map[string]any{"limit": "ten"}},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "negative skip",
			body:    map[string]any{"pagination": map[string]any{"skip": float64(-1)}},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "limit above maximum",
			body:    map[string]any{"pagination": map[string]any{"limit": float64(MaxLimit + 1)}},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "fractional limit",
			body:    map[string]any{"pagination": map[string]any{"limit": 2.5}},
			wantErr: ErrInvalidPagination,
		},
		{
			name:    "filter without id",
			body:    map[string]any{"filters": []any{map[string]any{"operator": "="}}},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "filters not a list",
			body:    map[string]any{"filters": "NCIT:C3058"},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "request parameters not an object",
			body:    map[string]any{"requestParameters": []any{"start"}},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "allowed ids not strings",
			body:    map[string]any{"allowedIds": []any{1, 2}},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "blank allowed id",
			body:    map[string]any{"allowedIds": []any{"B1", ""}},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := ParseRequest(tc.body, Limits{})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.check != nil {
				tc.check(t, req)
			}
		})
	}
}

func TestParseRequest_CustomLimits(t *testing.T) {
	limits := Limits{DefaultLimit: 3, MaxLimit: 5}

	req, err := ParseRequest(map[string]any{}, limits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Pagination.Limit != 3 {
		t.Errorf("expected default limit 3, got %d", req.Pagination.Limit)
	}

	req, err = ParseRequest(map[string]any{"pagination": map[string]any{"limit": float64(0)}}, limits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Pagination.Limit != 3 {
		t.Errorf("expected zero limit to fall back to 3, got %d", req.Pagination.Limit)
	}

	_, err = ParseRequest(map[string]any{"pagination": map[string]any{"limit": float64(6)}}, limits)
	if !errors.Is(err, ErrInvalidPagination) {
		t.Errorf("expected ErrInvalidPagination, got %v", err)
	}
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/beaconsearch/beacon/internal/catalog"
	"github.com/beaconsearch/beacon/internal/compile"
	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/propagate"
	"github.com/beaconsearch/beacon/internal/query"
	"github.com/beaconsearch/beacon/internal/storage"
)

type pageBody struct {
	Schema  string           `json:"schema"`
	Count   int64            `json:"count"`
	Skip    int              `json:"skip"`
	Limit   int              `json:"limit"`
	Results []map[string]any `json:"results"`
}

func testStore() *storage.MemoryStore {
	s := storage.NewMemoryStore()
	s.Insert(storage.CollectionVariants,
		filter.Document{
			"variantInternalId": "v100",
			"_position":         map[string]any{"assemblyId": "GRCh38", "refseqId": "17", "start": []any{100}, "end": []any{101}},
			"caseLevelData":     []any{map[string]any{"biosampleId": "B3"}},
		},
		filter.Document{
			"variantInternalId": "v200",
			"_position":         map[string]any{"assemblyId": "GRCh38", "refseqId": "17", "start": []any{200}, "end": []any{201}},
			"caseLevelData":     []any{map[string]any{"biosampleId": "B1"}, map[string]any{"biosampleId": "B2"}},
		},
		filter.Document{
			"variantInternalId": "v300",
			"_position":         map[string]any{"assemblyId": "GRCh37", "refseqId": "2", "start": []any{300}, "end": []any{305}},
			"caseLevelData":     []any{map[string]any{"biosampleId": "B2"}},
		},
	)
	for _, id := range []string{"B1", "B2", "B3"} {
		s.Insert(storage.CollectionBiosamples, filter.Document{"id": id})
		s.Insert(storage.CollectionRuns, filter.Document{"id": "run-" + id, "biosampleId": id})
	}
	s.Insert(storage.CollectionFilteringTerms,
		catalog.Term{Type: "alphanumeric", ID: "variation.variantType", Count: 3, Collection: storage.CollectionVariants}.Document(),
		catalog.Term{Type: "ontology", ID: "NCIT:C16576", Label: "female", Count: 1, Collection: storage.CollectionIndividuals, Field: "sex.id"}.Document(),
	)
	return s
}

func newTestRouter(t *testing.T, logger *logging.Logger) *Router {
	t.Helper()
	return NewRouter(query.NewHandler(testStore(), nil, query.Options{}), logger)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) pageBody {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var page pageBody
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	return page
}

func ids(page pageBody, field string) []string {
	var out []string
	for _, d := range page.Results {
		out = append(out, fmt.Sprint(d[field]))
	}
	sort.Strings(out)
	return out
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t, nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body %v", body)
	}
	if _, ok := body["version"].(map[string]any); !ok {
		t.Errorf("expected version info, got %v", body["version"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	do(t, r, http.MethodPost, "/api/g_variants", "")

	w := do(t, r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "beacon_queries_total") {
		t.Error("expected beacon_queries_total in metrics output")
	}
}

func TestSearchVariants(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		wantCount int64
		wantIDs   []string
	}{
		{"empty body", http.MethodPost, "/api/g_variants", "", 3, []string{"v100", "v200", "v300"}},
		{"start hit", http.MethodPost, "/api/g_variants", `{"query":{"requestParameters":{"start":"150"},"includeResultsetResponses":"HIT"}}`, 2, []string{"v200", "v300"}},
		{"start miss", http.MethodPost, "/api/g_variants", `{"query":{"requestParameters":{"start":"150"},"includeResultsetResponses":"MISS"}}`, 1, []string{"v100"}},
		{"none", http.MethodPost, "/api/g_variants", `{"includeResultsetResponses":"NONE"}`, 0, nil},
		{"chromosome", http.MethodPost, "/api/g_variants", `{"requestParameters":{"Chromosome":"2"}}`, 1, []string{"v300"}},
		{"allow list", http.MethodPost, "/api/g_variants", `{"allowedIds":["B1"]}`, 1, []string{"v200"}},
		{"get query string", http.MethodGet, "/api/g_variants?start=150&assemblyId=GRCh38", "", 1, []string{"v200"}},
		{"get pagination", http.MethodGet, "/api/g_variants?skip=1&limit=1", "", 3, []string{"v200"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			page := decodePage(t, do(t, r, tc.method, tc.path, tc.body))
			if page.Schema != storage.SchemaGenomicVariations {
				t.Errorf("schema = %s", page.Schema)
			}
			if page.Count != tc.wantCount {
				t.Errorf("count = %d, want %d", page.Count, tc.wantCount)
			}
			got := ids(page, "variantInternalId")
			if strings.Join(got, ",") != strings.Join(tc.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", got, tc.wantIDs)
			}
		})
	}
}

func TestSearchVariants_PaginationEcho(t *testing.T) {
	page := decodePage(t, do(t, newTestRouter(t, nil), http.MethodPost, "/api/g_variants",
		`{"query":{"pagination":{"skip":2,"limit":5}}}`))
	if page.Skip != 2 || page.Limit != 5 {
		t.Errorf("expected skip 2 limit 5, got %d %d", page.Skip, page.Limit)
	}
	if len(page.Results) != 1 {
		t.Errorf("expected one result on the last page, got %d", len(page.Results))
	}
}

func TestNoneReturnsEmptyResultsArray(t *testing.T) {
	w := do(t, newTestRouter(t, nil), http.MethodPost, "/api/g_variants", `{"includeResultsetResponses":"NONE"}`)
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("expected an empty results array, got %s", w.Body.String())
	}
}

func TestGetVariantByID(t *testing.T) {
	r := newTestRouter(t, nil)
	page := decodePage(t, do(t, r, http.MethodPost, "/api/g_variants/v200", ""))
	if got := ids(page, "variantInternalId"); len(got) != 1 || got[0] != "v200" {
		t.Errorf("ids = %v", got)
	}

	page = decodePage(t, do(t, r, http.MethodGet, "/api/g_variants/v999", ""))
	if page.Count != 0 {
		t.Errorf("expected no variant, got %d", page.Count)
	}
}

func TestRelated(t *testing.T) {
	r := newTestRouter(t, nil)

	page := decodePage(t, do(t, r, http.MethodPost, "/api/g_variants/v200/biosamples", ""))
	if page.Schema != storage.SchemaBiosamples {
		t.Errorf("schema = %s", page.Schema)
	}
	if got := ids(page, "id"); strings.Join(got, ",") != "B1,B2" {
		t.Errorf("biosamples = %v", got)
	}

	page = decodePage(t, do(t, r, http.MethodGet, "/api/g_variants/v300/runs", ""))
	if got := ids(page, "biosampleId"); strings.Join(got, ",") != "B2" {
		t.Errorf("runs = %v", got)
	}

	page = decodePage(t, do(t, r, http.MethodPost, "/api/g_variants/v999/runs", ""))
	if page.Count != 0 || len(page.Results) != 0 {
		t.Errorf("expected empty page for a missing variant, got %+v", page)
	}
}

func TestFilteringTerms(t *testing.T) {
	page := decodePage(t, do(t, newTestRouter(t, nil), http.MethodGet, "/api/g_variants/filtering_terms", ""))
	if page.Schema != storage.SchemaFilteringTerms || page.Count != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Results[0]["id"] != "variation.variantType" {
		t.Errorf("unexpected term %v", page.Results[0])
	}
}

func TestErrorStatusCodes(t *testing.T) {
	r := newTestRouter(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"invalid json", http.MethodPost, "/api/g_variants", `{"query":`, http.StatusBadRequest},
		{"unsupported field", http.MethodPost, "/api/g_variants", `{"requestParameters":{"zygosity":"het"}}`, http.StatusBadRequest},
		{"invalid range", http.MethodPost, "/api/g_variants", `{"requestParameters":{"start":"abc"}}`, http.StatusBadRequest},
		{"invalid pagination", http.MethodGet, "/api/g_variants?limit=-1", "", http.StatusBadRequest},
		{"limit above max", http.MethodGet, "/api/g_variants?limit=100000", "", http.StatusBadRequest},
		{"invalid filter", http.MethodGet, "/api/g_variants?filters=nocolon", "", http.StatusBadRequest},
		{"unknown target", http.MethodPost, "/api/g_variants/v200/datasets", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/datasets", "", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, r, tc.method, tc.path, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.name == "unknown route" {
				return
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid error JSON: %v", err)
			}
			if body["status"] != "error" || body["error"] == "" {
				t.Errorf("unexpected error body %v", body)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&compile.UnsupportedFieldError{Key: "x"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", query.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: datasets", propagate.ErrUnknownTarget), http.StatusNotFound},
		{fmt.Errorf("find: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{ErrPayloadTooLarge("big"), http.StatusRequestEntityTooLarge},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := FromError(tc.err); got.StatusCode != tc.status {
			t.Errorf("FromError(%v) = %d, want %d", tc.err, got.StatusCode, tc.status)
		}
	}
	if FromError(nil) != nil {
		t.Error("expected nil for nil error")
	}
	if got := FromError(errors.New("secret dsn")); strings.Contains(got.Message, "dsn") {
		t.Errorf("internal errors must not leak detail: %q", got.Message)
	}
}

func TestGzip(t *testing.T) {
	r := newTestRouter(t, nil)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte(`{"requestParameters":{"Chromosome":"2"}}`))
	gz.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/g_variants", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatal("expected gzip response")
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var page pageBody
	if err := json.NewDecoder(zr).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Count != 1 {
		t.Errorf("expected one chromosome 2 variant, got %d", page.Count)
	}
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	r := newTestRouter(t, logging.NewWithWriter(&buf))

	req := httptest.NewRequest(http.MethodPost, "/api/g_variants/v200/runs", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("expected request id echoed, got %q", w.Header().Get("X-Request-ID"))
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "request completed" || entry["request_id"] != "req-123" {
		t.Errorf("unexpected log entry %v", entry)
	}
	if entry["collection"] != storage.CollectionRuns {
		t.Errorf("expected collection runs, got %v", entry["collection"])
	}
}

func TestBodyFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/g_variants?start=100&start=250&filters=a:1,,b:2&includeResultsetResponses=ALL&skip=3", nil)
	body := bodyFromQuery(req.URL.Query())

	params := body["requestParameters"].(map[string]any)
	if params["start"] != "100,250" {
		t.Errorf("expected repeated keys to be comma-joined, got %v", params["start"])
	}
	if f := body["filters"].([]any); len(f) != 2 {
		t.Errorf("expected two filters, got %v", f)
	}
	if body["includeResultsetResponses"] != "ALL" {
		t.Errorf("unexpected mode %v", body["includeResultsetResponses"])
	}
	if p := body["pagination"].(map[string]any); p["skip"] != "3" {
		t.Errorf("unexpected pagination %v", p)
	}
}

// Package api hosts the variant entry points over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beaconsearch/beacon/internal/filter"
	"github.com/beaconsearch/beacon/internal/logging"
	"github.com/beaconsearch/beacon/internal/query"
	"github.com/beaconsearch/beacon/internal/resultset"
	"github.com/beaconsearch/beacon/internal/storage"
	"github.com/beaconsearch/beacon/internal/version"
)

// MaxRequestBodySize bounds request bodies.
const MaxRequestBodySize = 8 << 20

// Query string keys that are not request parameters.
const (
	paramSkip          = "skip"
	paramLimit         = "limit"
	paramFilters       = "filters"
	paramResultsetMode = "includeResultsetResponses"
)

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(nil)
	},
}

type gzipResponseWriter struct {
	http.ResponseWriter
	gz *gzip.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.gz.Write(b)
}

// PageResponse is the wire form of a result page.
type PageResponse struct {
	Schema  string            `json:"schema"`
	Count   int64             `json:"count"`
	Skip    int               `json:"skip"`
	Limit   int               `json:"limit"`
	Results []filter.Document `json:"results"`
}

// NewPageResponse renders page. Results is never null.
func NewPageResponse(page resultset.Page) PageResponse {
	results := page.Documents
	if results == nil {
		results = []filter.Document{}
	}
	return PageResponse{
		Schema:  page.Schema,
		Count:   page.Count,
		Skip:    page.Skip,
		Limit:   page.Limit,
		Results: results,
	}
}

type Router struct {
	mux     *http.ServeMux
	handler *query.Handler
	logger  *logging.Logger
	serve   http.Handler
}

// NewRouter registers the entry points of handler. Every entry point
// accepts a JSON body on POST and the same parameters as a query string on
// GET.
func NewRouter(handler *query.Handler, logger *logging.Logger) *Router {
	logger = logging.OrDiscard(logger)
	r := &Router{
		mux:     http.NewServeMux(),
		handler: handler,
		logger:  logger,
	}

	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.Handle("GET /metrics", promhttp.Handler())
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		r.mux.HandleFunc(method+" /api/g_variants", r.handleSearch)
		r.mux.HandleFunc(method+" /api/g_variants/filtering_terms", r.handleFilteringTerms)
		r.mux.HandleFunc(method+" /api/g_variants/{id}", r.handleGetVariant)
		r.mux.HandleFunc(method+" /api/g_variants/{id}/{target}", r.handleRelated)
	}

	r.serve = logging.Middleware(logger, collectionOf)(http.HandlerFunc(r.route))
	return r
}

func collectionOf(req *http.Request) string {
	if target := req.PathValue("target"); target != "" {
		return target
	}
	if strings.HasPrefix(req.URL.Path, "/api/g_variants/filtering_terms") {
		return storage.CollectionFilteringTerms
	}
	if strings.HasPrefix(req.URL.Path, "/api/g_variants") {
		return storage.CollectionVariants
	}
	return ""
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.serve.ServeHTTP(w, req)
}

func (r *Router) route(w http.ResponseWriter, req *http.Request) {
	if req.ContentLength > MaxRequestBodySize {
		r.writeAPIError(w, ErrPayloadTooLarge("request body exceeds 8MB limit"))
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, MaxRequestBodySize)
	req.Body = r.decompressBody(req)

	// promhttp negotiates its own compression.
	if strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") && req.URL.Path != "/metrics" {
		gz := gzipWriterPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			gz.Close()
			gzipWriterPool.Put(gz)
		}()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		r.mux.ServeHTTP(&gzipResponseWriter{ResponseWriter: w, gz: gz}, req)
		return
	}

	r.mux.ServeHTTP(w, req)
}

func (r *Router) decompressBody(req *http.Request) io.ReadCloser {
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(req.Body)
		if err != nil {
			return req.Body
		}
		return gz
	}
	return req.Body
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Get(),
	})
}

func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	r.serveEntryPoint(w, req, func(ctx context.Context, q *query.Request) (resultset.Page, error) {
		return r.handler.SearchVariants(ctx, q)
	})
}

func (r *Router) handleGetVariant(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	r.serveEntryPoint(w, req, func(ctx context.Context, q *query.Request) (resultset.Page, error) {
		return r.handler.GetVariantByID(ctx, id, q)
	})
}

func (r *Router) handleRelated(w http.ResponseWriter, req *http.Request) {
	id, target := req.PathValue("id"), req.PathValue("target")
	r.serveEntryPoint(w, req, func(ctx context.Context, q *query.Request) (resultset.Page, error) {
		return r.handler.GetRelated(ctx, target, id, q)
	})
}

func (r *Router) handleFilteringTerms(w http.ResponseWriter, req *http.Request) {
	r.serveEntryPoint(w, req, func(ctx context.Context, q *query.Request) (resultset.Page, error) {
		return r.handler.ListFilteringTerms(ctx, q)
	})
}

func (r *Router) serveEntryPoint(w http.ResponseWriter, req *http.Request, fn func(context.Context, *query.Request) (resultset.Page, error)) {
	body, apiErr := r.readBody(req)
	if apiErr != nil {
		r.writeAPIError(w, apiErr)
		return
	}

	q, err := query.ParseRequest(body, r.handler.Limits())
	if err != nil {
		r.writeAPIError(w, FromError(err))
		return
	}

	page, err := fn(req.Context(), q)
	if err != nil {
		r.writeAPIError(w, FromError(err))
		return
	}

	r.writeJSON(w, http.StatusOK, NewPageResponse(page))
}

// readBody returns the request parameters object: the JSON body of a POST,
// or the query string of a GET. An empty POST body is an empty request.
func (r *Router) readBody(req *http.Request) (map[string]any, *APIError) {
	if req.Method == http.MethodGet {
		return bodyFromQuery(req.URL.Query()), nil
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, ErrPayloadTooLarge("request body exceeds 8MB limit")
		}
		return nil, ErrBadRequest("failed to read request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, ErrInvalidJSON()
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// bodyFromQuery builds a request parameters object from a query string.
// Repeated keys are comma-joined; filters is a comma-separated list of ids.
func bodyFromQuery(values url.Values) map[string]any {
	body := map[string]any{}
	params := map[string]any{}
	pagination := map[string]any{}

	for key, vals := range values {
		v := strings.Join(vals, ",")
		switch key {
		case paramSkip, paramLimit:
			pagination[key] = v
		case paramResultsetMode:
			body[key] = v
		case paramFilters:
			var ids []any
			for _, id := range strings.Split(v, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			body[key] = ids
		default:
			params[key] = v
		}
	}

	if len(params) > 0 {
		body["requestParameters"] = params
	}
	if len(pagination) > 0 {
		body["pagination"] = pagination
	}
	return body
}

func (r *Router) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (r *Router) writeError(w http.ResponseWriter, status int, message string) {
	r.writeJSON(w, status, map[string]string{
		"status": "error",
		"error":  message,
	})
}

func (r *Router) writeAPIError(w http.ResponseWriter, err *APIError) {
	r.writeError(w, err.StatusCode, err.Message)
}

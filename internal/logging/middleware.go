package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware creates an HTTP middleware that logs requests.
// collectionOf extracts the target collection from the request; it may be nil.
func Middleware(logger *Logger, collectionOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			endpoint := r.Method + " " + r.URL.Path

			ctx := r.Context()
			ctx = ContextWithRequestID(ctx, requestID)
			ctx = ContextWithRequestTime(ctx, start)
			ctx = ContextWithEndpoint(ctx, endpoint)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			w.Header().Set("X-Request-ID", requestID)

			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)

			// Path values are only populated once the mux has matched.
			var collection string
			if collectionOf != nil {
				collection = collectionOf(r)
			}

			elapsed := float64(time.Since(start).Microseconds()) / 1000.0
			info := &RequestInfo{
				RequestID:     requestID,
				Collection:    collection,
				Endpoint:      endpoint,
				ServerTotalMs: elapsed,
			}

			logger.WithRequestInfo(info).Info("request completed",
				"status", rw.statusCode,
				"method", r.Method,
				"path", r.URL.Path,
			)
		})
	}
}

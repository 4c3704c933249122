package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

const defaultBodyLimit = 1 << 20

// bodyLimits caps request bodies per endpoint before any parsing happens.
// Expensive generation endpoints get tight caps so oversized payloads are
// rejected without burning upstream quota.
var bodyLimits = map[string]int64{
	"/api/generate":       1 << 10,
	"/api/generate-image": 10 << 10,
	"/api/highlights":     5 << 10,
	"/api/thoughts":       5 << 10,
	"/api/like":           512,
}

func bodyLimitFor(path string) int64 {
	if limit, ok := bodyLimits[path]; ok {
		return limit
	}
	return defaultBodyLimit
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := bodyLimitFor(r.URL.Path)
		if r.ContentLength > limit {
			writeError(w, http.StatusRequestEntityTooLarge, "请求体过大", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.clock()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)))
	})
}

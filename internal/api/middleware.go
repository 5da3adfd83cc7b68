package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"jch-go/internal/history"
)

// SubjectHeader carries the authenticated user name, set by a fronting
// proxy.
const SubjectHeader = "X-Remote-User"

// AnonymousSubject is used when SubjectHeader is absent.
const AnonymousSubject = "anonymous"

type contextKey int

const (
	subjectKey contextKey = iota
	requestIDKey
)

func subject(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey).(string); ok {
		return s
	}
	return AnonymousSubject
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// withRequestContext tags each request with an ID and its subject and logs
// it once served.
func withRequestContext(logger history.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.New().String()
			}
			sub := r.Header.Get(SubjectHeader)
			if sub == "" {
				sub = AnonymousSubject
			}

			ctx := context.WithValue(r.Context(), requestIDKey, id)
			ctx = context.WithValue(ctx, subjectKey, sub)
			w.Header().Set("X-Request-ID", id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Debug("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"subject", sub,
				"request_id", id,
				"duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/quickmarket/internal/api"
	"github.com/fjod/quickmarket/internal/session"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request with the chi request id.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

// currentSession returns the visitor session. Routes are mounted behind the
// session middleware, so a missing session is a wiring bug.
func currentSession(r *http.Request) *session.Session {
	s, ok := session.FromContext(r.Context())
	if !ok {
		panic("session middleware is not installed")
	}
	return s
}

// upstreamContext forwards the visitor's API token, if any.
func upstreamContext(r *http.Request) context.Context {
	s := currentSession(r)
	if s.Token == "" {
		return r.Context()
	}
	return api.WithBearer(r.Context(), s.Token)
}

package middleware

import (
	"net/http"
	"time"

	"github.com/nkiryanov/secureauth/internal/handlers/userctx"
)

type logger interface {
	Info(msg string, args ...any)
}

// Remembers status and size of the written response
type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseRecorder) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.size += size
	return size, err
}

func (w *responseRecorder) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.status = statusCode
}

// Log every request once it is served
// Requests made with valid access token are logged with the user id
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := userctx.Reserve(r.Context())
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			args := []any{
				"method", r.Method,
				"uri", r.RequestURI,
				"ip", ClientIP(r),
				"duration", time.Since(start),
				"status", rec.status,
				"size", rec.size,
			}
			if principal, ok := userctx.FromContext(ctx); ok {
				args = append(args, "user_id", principal.UserID)
			}

			l.Info("got HTTP request", args...)
		})
	}
}

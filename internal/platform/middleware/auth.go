package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// RequireHostToken admits only callers presenting the shared host token as a
// bearer credential. The storefront plugin is the sole caller of the engine,
// so a single static secret stands in for per-user authentication. An empty
// token disables the check (local development).
func RequireHostToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if ok && subtle.ConstantTimeCompare([]byte(presented), expected) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			requestID := GetRequestID(ctx)
			logger.WarnContext(ctx, "unauthorized access - missing or invalid host token",
				"request_id", requestID,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, err := w.Write([]byte(`{"error":"unauthorized","error_description":"Missing or invalid Authorization header"}`))
			if err != nil {
				logger.ErrorContext(ctx, "failed to write unauthorized response",
					"error", err,
					"request_id", requestID,
				)
			}
		})
	}
}

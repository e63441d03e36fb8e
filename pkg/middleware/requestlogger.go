package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/identity-service/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation ID, the authenticated user when Auth has already run, and
// the active trace/span IDs. Handlers retrieve it with logger.FromContext.
//
// Mount after RequestLogging and Tracing so those fields exist to pick up.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if userID := UserIDFromContext(ctx); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"net/http"

	"github.com/hirepulse/visitor-telemetry/internal/application/loaders"
	"github.com/hirepulse/visitor-telemetry/internal/domain/repositories"
)

// LoadersMiddleware attaches fresh request-scoped batch loaders to each request
func LoadersMiddleware(visitors repositories.VisitorRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(visitors))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

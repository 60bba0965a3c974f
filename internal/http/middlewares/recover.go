package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// WithRecover captura panics y devuelve INTERNAL en lugar de crashear.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					callable.WriteError(w, callable.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	"github.com/dropDatabas3/devlog/internal/metrics"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// WithCallable marca el request con el nombre del callable (contexto + logger)
// y registra en Prometheus la duración y el status canónico de la respuesta.
func WithCallable(fn string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := WithFunction(r.Context(), fn)
			ctx = logger.With(ctx, logger.Function(fn))

			rec := recorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))
			metrics.ObserveCall(fn, statusLabel(rec.status), time.Since(start))
		})
	}
}

// statusLabel traduce el código HTTP al status canónico del protocolo.
func statusLabel(code int) string {
	if code < 300 {
		return "OK"
	}
	for _, s := range []callable.Status{
		callable.StatusInvalidArgument,
		callable.StatusUnauthenticated,
		callable.StatusPermissionDenied,
		callable.StatusNotFound,
		callable.StatusAborted,
		callable.StatusResourceExhausted,
		callable.StatusUnimplemented,
	} {
		if s.HTTPStatus() == code {
			return string(s)
		}
	}
	return string(callable.StatusInternal)
}

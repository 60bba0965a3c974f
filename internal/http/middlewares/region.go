package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/devlog/internal/http/callable"
)

// RegionHeader lleva la región a la que el cliente cree estar llamando.
const RegionHeader = "X-Devlog-Region"

// WithRegion rechaza con PERMISSION_DENIED los requests que declaran otra región.
// Sin header el request pasa, salvo que require sea true. Region vacía desactiva el chequeo.
func WithRegion(region string, require bool) Middleware {
	return func(next http.Handler) http.Handler {
		if region == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get(RegionHeader))
			if got == "" && !require {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.EqualFold(got, region) {
				callable.WriteError(w, callable.ErrPermissionDenied.WithDetail("region mismatch: server is "+region))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

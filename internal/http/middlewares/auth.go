package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/devlog/internal/firebase"
	"github.com/dropDatabas3/devlog/internal/http/callable"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
)

// bearer extrae el token de "Authorization: Bearer <token>"; vacío si no hay.
func bearer(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(ah) <= len(prefix) || !strings.EqualFold(ah[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(ah[len(prefix):])
}

// RequireAuth valida el Firebase ID token del llamador y guarda su uid en el contexto.
// Sin token o con token inválido responde UNAUTHENTICATED antes de leer el body.
func RequireAuth(admin firebase.Admin) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				callable.WriteError(w, callable.ErrUnauthenticated)
				return
			}
			uid, err := admin.VerifyIDToken(r.Context(), raw)
			if err != nil || uid == "" {
				logger.From(r.Context()).Debug("id token rejected", logger.Op("auth"), logger.Err(err))
				callable.WriteError(w, callable.ErrUnauthenticated)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r, uid)))
		})
	}
}

// OptionalAuth intenta validar el token pero NO falla: un token ausente o
// inválido deja el request sin uid.
func OptionalAuth(admin firebase.Admin) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			uid, err := admin.VerifyIDToken(r.Context(), raw)
			if err != nil || uid == "" {
				logger.From(r.Context()).Debug("optional id token ignored", logger.Op("auth"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withCaller(r, uid)))
		})
	}
}

func withCaller(r *http.Request, uid string) context.Context {
	ctx := WithUserID(r.Context(), uid)
	return logger.With(ctx, logger.UserID(uid))
}

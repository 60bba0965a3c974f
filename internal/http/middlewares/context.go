package middlewares

import "context"

type ctxKey string

const (
	// ctxUserIDKey guarda el uid verificado del llamador
	ctxUserIDKey ctxKey = "user_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
	// ctxFunctionKey guarda el nombre del callable
	ctxFunctionKey ctxKey = "function"
)

// WithUserID inyecta el uid en el contexto
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

// WithFunction inyecta el nombre del callable en el contexto
func WithFunction(ctx context.Context, fn string) context.Context {
	return context.WithValue(ctx, ctxFunctionKey, fn)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetUserID obtiene el uid del contexto.
// Retorna cadena vacía si el request no está autenticado.
func GetUserID(ctx context.Context) string {
	s, _ := ctx.Value(ctxUserIDKey).(string)
	return s
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}

// GetFunction obtiene el nombre del callable del contexto.
func GetFunction(ctx context.Context) string {
	s, _ := ctx.Value(ctxFunctionKey).(string)
	return s
}

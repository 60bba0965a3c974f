package broker

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/devlog/internal/http/callable"
	mw "github.com/dropDatabas3/devlog/internal/http/middlewares"
	svc "github.com/dropDatabas3/devlog/internal/http/services/broker"
	"github.com/dropDatabas3/devlog/internal/metrics"
	"github.com/dropDatabas3/devlog/internal/observability/logger"
	"go.uber.org/zap"
)

// toCallable traduce un error de service al status del protocolo.
// Lo que no se reconoce es INTERNAL y la causa queda sólo en el log.
func toCallable(err error) *callable.Error {
	var ce *callable.Error
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, svc.ErrUnauthenticated):
		return callable.ErrUnauthenticated
	case errors.Is(err, svc.ErrUserMismatch):
		return callable.ErrInvalidArgument.WithDetail("userId does not match the caller")
	case errors.Is(err, svc.ErrMissingArgument):
		return callable.ErrInvalidArgument.WithDetail(err.Error())
	case errors.Is(err, svc.ErrTokenNotFound):
		return callable.ErrNotFound.WithDetail("no stored token")
	case errors.Is(err, svc.ErrBusy):
		return callable.ErrAborted
	case errors.Is(err, svc.ErrAppleNotConfigured), errors.Is(err, svc.ErrGitHubNotConfigured):
		return callable.ErrInternal.WithDetail("provider not configured").WithCause(err)
	default:
		return callable.ErrInternal.WithCause(err)
	}
}

// writeServiceError loguea y escribe el error de un service.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	ce := toCallable(err)
	switch ce.Status {
	case callable.StatusInternal:
		log.Error("callable failed", logger.Err(err))
	case callable.StatusAborted:
		metrics.LockContended(mw.GetFunction(r.Context()))
		log.Info("callable rejected: uid busy")
	default:
		log.Debug("callable rejected", logger.Err(err))
	}
	callable.WriteError(w, ce)
}

// decode lee el body; un error ya es INVALID_ARGUMENT.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := callable.Decode(r, dst); err != nil {
		callable.WriteError(w, err)
		return false
	}
	return true
}

func controllerLog(r *http.Request, op string) *zap.Logger {
	return logger.From(r.Context()).With(logger.Layer("controller"), logger.Op(op))
}

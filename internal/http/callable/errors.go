// Package callable implementa el protocolo de funciones invocables: request
// {"data": ...}, respuesta {"result": ...} o {"error": {status, message, details}}.
package callable

import (
	"errors"
	"fmt"
	"net/http"
)

// Status es el código canónico de error del protocolo.
type Status string

const (
	StatusInvalidArgument   Status = "INVALID_ARGUMENT"
	StatusUnauthenticated   Status = "UNAUTHENTICATED"
	StatusPermissionDenied  Status = "PERMISSION_DENIED"
	StatusNotFound          Status = "NOT_FOUND"
	StatusAborted           Status = "ABORTED"
	StatusResourceExhausted Status = "RESOURCE_EXHAUSTED"
	StatusInternal          Status = "INTERNAL"
	StatusUnimplemented     Status = "UNIMPLEMENTED"
)

var httpStatus = map[Status]int{
	StatusInvalidArgument:   http.StatusBadRequest,
	StatusUnauthenticated:   http.StatusUnauthorized,
	StatusPermissionDenied:  http.StatusForbidden,
	StatusNotFound:          http.StatusNotFound,
	StatusAborted:           http.StatusConflict,
	StatusResourceExhausted: http.StatusTooManyRequests,
	StatusInternal:          http.StatusInternalServerError,
	StatusUnimplemented:     http.StatusNotImplemented,
}

// HTTPStatus devuelve el código HTTP asociado (500 si es desconocido).
func (s Status) HTTPStatus() int {
	if c, ok := httpStatus[s]; ok {
		return c
	}
	return http.StatusInternalServerError
}

// Error es el error estándar de las funciones del broker.
type Error struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"details,omitempty"`
	Err     error  `json:"-"` // causa original, sólo para logs
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Status, para que errors.Is(err, callable.ErrNotFound) funcione
// con copias creadas por WithDetail/WithCause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Status == e.Status
	}
	return false
}

func New(status Status, message string) *Error {
	return &Error{Status: status, Message: message}
}

// WithDetail devuelve una COPIA con detalle agregado.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una COPIA con la causa original adjunta.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// FromError convierte cualquier error en *Error; lo desconocido es INTERNAL.
func FromError(err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternal.WithCause(err)
}

// Errores predefinidos.
var (
	ErrUnauthenticated   = New(StatusUnauthenticated, "The function must be called while authenticated.")
	ErrInvalidArgument   = New(StatusInvalidArgument, "Invalid argument.")
	ErrPermissionDenied  = New(StatusPermissionDenied, "Permission denied.")
	ErrNotFound          = New(StatusNotFound, "Not found.")
	ErrAborted           = New(StatusAborted, "Another operation for this user is in progress.")
	ErrResourceExhausted = New(StatusResourceExhausted, "Too many requests.")
	ErrInternal          = New(StatusInternal, "Internal error.")
	ErrUnimplemented     = New(StatusUnimplemented, "Unknown function.")
)

package identity

import (
	"errors"
	"fmt"
)

// Kind clasifica las fallas de identidad. El conjunto es cerrado; los errores
// desconocidos se reportan como KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticationRequired
	KindBadServerResponse
	KindUserCancelled
	KindEmailNotFound
	KindEmailMismatch
	KindInternal
	KindNotFound
	KindOffline
	KindInvalidArgument
	KindLastProvider
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindAuthenticationRequired: "authentication_required",
	KindBadServerResponse:      "bad_server_response",
	KindUserCancelled:          "user_cancelled",
	KindEmailNotFound:          "email_not_found",
	KindEmailMismatch:          "email_mismatch",
	KindInternal:               "internal",
	KindNotFound:               "not_found",
	KindOffline:                "offline",
	KindInvalidArgument:        "invalid_argument",
	KindLastProvider:           "last_provider",
}

func (k Kind) String() string { return kindNames[k] }

// Error lleva un Kind y una causa opcional. El texto de la causa es para logs;
// la UI solo muestra UserMessage.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matchea cualquier *Error del mismo kind, así errors.Is(err, ErrEmailMismatch)
// funciona sin importar el mensaje o la causa.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
	}
	return false
}

// Sentinelas, uno por kind.
var (
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrBadServerResponse      = &Error{Kind: KindBadServerResponse}
	ErrUserCancelled          = &Error{Kind: KindUserCancelled}
	ErrEmailNotFound          = &Error{Kind: KindEmailNotFound}
	ErrEmailMismatch          = &Error{Kind: KindEmailMismatch}
	ErrInternal               = &Error{Kind: KindInternal}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrOffline                = &Error{Kind: KindOffline}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrLastProvider           = &Error{Kind: KindLastProvider}

	// ErrStateMismatch rechaza un callback OAuth cuyo state no coincide con el
	// generado para el intento (redirect falsificado o repetido).
	ErrStateMismatch = &Error{Kind: KindUserCancelled, Msg: "oauth state mismatch"}
)

// Errorf arma un error con kind y mensaje formateado.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap le asigna un kind a una causa. Una causa nil devuelve nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf devuelve el kind del *Error más externo en la cadena de err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

package broker

import "errors"

// Errores de los services del broker. El controller los traduce a status callable.
var (
	ErrUnauthenticated     = errors.New("caller is not authenticated")
	ErrUserMismatch        = errors.New("userId does not match the caller")
	ErrMissingArgument     = errors.New("required argument missing")
	ErrTokenNotFound       = errors.New("no stored token for caller")
	ErrAppleNotConfigured  = errors.New("apple sign in is not configured")
	ErrGitHubNotConfigured = errors.New("github oauth is not configured")
	ErrProviderFailed      = errors.New("provider request failed")
	ErrEmailMissing        = errors.New("provider profile has no email")
	ErrBusy                = errors.New("another operation for this user is in progress")
)

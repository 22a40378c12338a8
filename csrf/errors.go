package csrf

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrConfiguration   = errors.New("csrf: configuration error")
	ErrInvalidHeader   = errors.New("csrf: invalid header")
	ErrMissingToken    = errors.New("csrf: missing token")
	ErrTokenValidation = errors.New("csrf: token validation failed")
)

// Reasons. They narrow down a kind and also match with errors.Is.
var (
	ErrSecretKeyMissing   = errors.New("csrf: secret key missing")
	ErrInvalidOption      = errors.New("csrf: invalid option")
	ErrHeaderMissing      = errors.New("csrf: header missing")
	ErrHeaderMalformed    = errors.New("csrf: header malformed")
	ErrCookieMissing      = errors.New("csrf: cookie missing")
	ErrSignedTokenMissing = errors.New("csrf: signed token missing")
	ErrTokenMissing       = errors.New("csrf: submitted token missing")
	ErrTokenInvalid       = errors.New("csrf: token invalid")
	ErrTokenExpired       = errors.New("csrf: token expired")
	ErrTokenMismatch      = errors.New("csrf: token mismatch")
)

// ErrNilResponse is returned when a cookie is attached to or removed from a nil
// http.ResponseWriter.
var ErrNilResponse = errors.New("csrf: response writer is nil")

// Error is the structured error returned by the resolver, the codec, the
// locators and the protector. Message is safe to send to clients.
type Error struct {
	Message string

	kind     error
	reason   error
	cause    error
	attempts []error
}

func newError(kind, reason error, format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), kind: kind, reason: reason}
}

func configError(format string, args ...any) *Error {
	return newError(ErrConfiguration, ErrInvalidOption, format, args...)
}

func (e *Error) Error() string { return e.Message }

// Kind returns one of ErrConfiguration, ErrInvalidHeader, ErrMissingToken or
// ErrTokenValidation.
func (e *Error) Kind() error { return e.kind }

// Reason returns the specific reason sentinel, e.g. ErrTokenExpired.
func (e *Error) Reason() error { return e.reason }

// Attempts returns the per-carrier errors collected by FlexibleLocator before
// it gave up.
func (e *Error) Attempts() []error { return e.attempts }

func (e *Error) Unwrap() []error {
	errs := []error{e.kind}
	if e.reason != nil {
		errs = append(errs, e.reason)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.kind {
	case ErrConfiguration, ErrInvalidHeader:
		return http.StatusUnprocessableEntity
	case ErrMissingToken:
		return http.StatusBadRequest
	case ErrTokenValidation:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the HTTP status for err. Origin rejections map to 403,
// body size violations to 413 and anything that is not a CSRF error to 500.
func StatusCode(err error) int {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	if errors.Is(err, ErrOriginRejected) {
		return http.StatusForbidden
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

// isCSRFError reports whether err belongs to the locator taxonomy, i.e. is
// safe to tolerate while probing carriers.
func isCSRFError(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && (ce.kind == ErrInvalidHeader || ce.kind == ErrMissingToken)
}

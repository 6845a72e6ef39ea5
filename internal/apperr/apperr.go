// Package apperr defines the closed set of failure kinds that cross the
// HTTP boundary.
//
// Domain packages declare their sentinel errors with E, and wrap them with
// fmt.Errorf("...: %w", err) as usual. The API layer calls KindOf once to
// choose a status code; nothing else inspects error strings.
package apperr

import (
	"errors"
)

// Kind classifies a failure for the boundary translator.
type Kind int

const (
	// KindInternal is any failure not classified below. Its message is
	// never shown to clients.
	KindInternal Kind = iota

	// KindUnauthorized is a missing, invalid or inactive credential.
	KindUnauthorized

	// KindInvalidInput is an empty or malformed request.
	KindInvalidInput

	// KindNotFound is an operation on a gateway or device id that does not exist.
	KindNotFound

	// KindUpstreamUnavailable is the relay status endpoint failing or unreachable.
	KindUpstreamUnavailable
)

// String returns the kind's stable name, also used as the API error code.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// Error is a classified error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a classified error. Packages use it for sentinels:
//
//	var ErrGatewayNotFound = apperr.E(apperr.KindNotFound, "gateway: not found")
func E(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap classifies an existing error. A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's
// chain, or KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Package apperr holds the error taxonomy shared by the order, payment and
// notification packages and its mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindInvalidSignature
	KindInvalidAmount
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not found"
	case KindInvalidSignature:
		return "invalid signature"
	case KindInvalidAmount:
		return "invalid amount"
	case KindConfiguration:
		return "configuration"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to show to API callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrUnauthorized     = &Error{Kind: KindUnauthorized}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidSignature = &Error{Kind: KindInvalidSignature}
	ErrInvalidAmount    = &Error{Kind: KindInvalidAmount}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
)

func Validation(message string) error { return &Error{Kind: KindValidation, Message: message} }

func Unauthorized(message string) error { return &Error{Kind: KindUnauthorized, Message: message} }

func NotFound(message string) error { return &Error{Kind: KindNotFound, Message: message} }

func InvalidSignature(message string) error {
	return &Error{Kind: KindInvalidSignature, Message: message}
}

func InvalidAmount(message string) error { return &Error{Kind: KindInvalidAmount, Message: message} }

func Configuration(message string) error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto the status code returned by the API.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidSignature, KindInvalidAmount:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message to expose to callers. Internal and
// configuration failures never leak their detail.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindInternal:
		return "internal server error"
	case KindConfiguration:
		return "payment gateway is not configured"
	default:
		return err.Error()
	}
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the HTTP boundary and for retry decisions.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindGateway           Kind = "gateway"
	KindPersistence       Kind = "persistence"
	KindAuthenticity      Kind = "authenticity"
	KindNotFound          Kind = "not_found"
	KindPaymentIncomplete Kind = "payment_incomplete"
	KindInternal          Kind = "internal"
)

// Error is the structured error every checkout operation returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Wrap classifies a domain error without adding a message of its own.
func Wrap(kind Kind, err error) *Error { return newError(kind, "", err) }

func Validation(msg string) *Error { return newError(KindValidation, msg, nil) }

func Gateway(msg string, cause error) *Error { return newError(KindGateway, msg, cause) }

func Persistence(msg string, cause error) *Error { return newError(KindPersistence, msg, cause) }

func Authenticity(msg string, cause error) *Error { return newError(KindAuthenticity, msg, cause) }

func NotFound(msg string) *Error { return newError(KindNotFound, msg, nil) }

func PaymentIncomplete(msg string) *Error { return newError(KindPaymentIncomplete, msg, nil) }

func Internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

// KindOf reports the kind of err, or KindInternal for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus maps a kind to the response status used at the boundary.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindAuthenticity:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPaymentIncomplete:
		return http.StatusConflict
	case KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show a client. Causes are only exposed for client-side kinds.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	switch e.Kind {
	case KindPersistence, KindInternal:
		if e.Message == "" {
			return "internal server error"
		}
		return e.Message
	default:
		return e.Error()
	}
}

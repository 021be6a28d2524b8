// Package apperr defines the failure kinds every shop operation can surface.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the transport can present it.
type Kind string

const (
	KindUnauthenticated     Kind = "UNAUTHENTICATED"
	KindForbidden           Kind = "FORBIDDEN"
	KindNotFound            Kind = "NOT_FOUND"
	KindValidation          Kind = "VALIDATION_FAILED"
	KindConflict            Kind = "CONFLICT"
	KindPaymentDeclined     Kind = "PAYMENT_DECLINED"
	KindPaymentGatewayError Kind = "PAYMENT_GATEWAY_ERROR"
	KindInternal            Kind = "INTERNAL_ERROR"
)

// Error is a user-presentable failure. Err, when set, is the underlying cause
// and is never shown to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, msg) }
func Forbidden(msg string) *Error       { return New(KindForbidden, msg) }
func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func Validation(msg string) *Error      { return New(KindValidation, msg) }
func Conflict(msg string) *Error        { return New(KindConflict, msg) }

// Internal hides err behind a generic message.
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// KindOf reports the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrPaymentDeclined = &Error{Kind: KindPaymentDeclined}
	ErrPaymentGateway  = &Error{Kind: KindPaymentGatewayError}
)

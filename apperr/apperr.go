// Package apperr defines the application's error taxonomy.
//
// Every error that crosses a component boundary is wrapped into one of
// the Kinds below so the HTTP layer can map it to a status code without
// inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindRiskRejected   Kind = "risk_rejected"
	KindModeBlocked    Kind = "mode_blocked"
	KindBrokerError    Kind = "broker_error"
	KindConflict       Kind = "conflict"
	KindUnauthorized   Kind = "unauthorized"
	KindInternal       Kind = "internal"
)

// Error is the concrete error type carried across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func RiskRejected(format string, args ...interface{}) *Error {
	return New(KindRiskRejected, fmt.Sprintf(format, args...))
}

func ModeBlocked(format string, args ...interface{}) *Error {
	return New(KindModeBlocked, fmt.Sprintf(format, args...))
}

func Internal(cause error, format string, args ...interface{}) *Error {
	return Wrap(KindInternal, fmt.Sprintf(format, args...), cause)
}

// As reports whether err is an *Error and, if so, returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

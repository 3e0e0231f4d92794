// Package apperr defines the closed set of error kinds the engine returns.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers at the boundary.
type Kind string

const (
	KindGuestNotFound             Kind = "guest_not_found"
	KindAlreadyCheckedIn          Kind = "already_checked_in"
	KindNotCheckedIn              Kind = "not_checked_in"
	KindGuestCurrentlyCheckedIn   Kind = "guest_currently_checked_in"
	KindSequenceLimitExceeded     Kind = "sequence_limit_exceeded"
	KindDisplayIDGenerationFailed Kind = "display_id_generation_failed"
	KindForbidden                 Kind = "forbidden"
	KindNotFound                  Kind = "not_found"
	KindValidation                Kind = "validation_error"
	KindInvalidTimestamp          Kind = "invalid_timestamp"
	KindInternal                  Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindGuestNotFound:             http.StatusNotFound,
	KindAlreadyCheckedIn:          http.StatusBadRequest,
	KindNotCheckedIn:              http.StatusBadRequest,
	KindGuestCurrentlyCheckedIn:   http.StatusBadRequest,
	KindSequenceLimitExceeded:     http.StatusInternalServerError,
	KindDisplayIDGenerationFailed: http.StatusInternalServerError,
	KindForbidden:                 http.StatusForbidden,
	KindNotFound:                  http.StatusNotFound,
	KindValidation:                http.StatusBadRequest,
	KindInvalidTimestamp:          http.StatusBadRequest,
	KindInternal:                  http.StatusInternalServerError,
}

// Status returns the transport status code for a kind.
func (k Kind) Status() int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is the single error type surfaced by the engine.
type Error struct {
	Kind    Kind
	Field   string // input field the error is attributed to, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.ErrNotCheckedIn)
// holds for errors built with extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrGuestNotFound             = &Error{Kind: KindGuestNotFound, Message: "guest not found"}
	ErrAlreadyCheckedIn          = &Error{Kind: KindAlreadyCheckedIn, Message: "guest is already checked in"}
	ErrNotCheckedIn              = &Error{Kind: KindNotCheckedIn, Message: "guest is not checked in"}
	ErrGuestCurrentlyCheckedIn   = &Error{Kind: KindGuestCurrentlyCheckedIn, Message: "guest is currently checked in"}
	ErrSequenceLimitExceeded     = &Error{Kind: KindSequenceLimitExceeded, Message: "display id sequence exhausted for year"}
	ErrDisplayIDGenerationFailed = &Error{Kind: KindDisplayIDGenerationFailed, Message: "display id generation failed"}
	ErrForbidden                 = &Error{Kind: KindForbidden, Message: "insufficient privilege"}
	ErrNotFound                  = &Error{Kind: KindNotFound, Message: "resource not found"}
)

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports malformed input attributed to a field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// InvalidTimestamp reports an unparseable instant attributed to a field.
func InvalidTimestamp(field string, err error) *Error {
	return &Error{Kind: KindInvalidTimestamp, Field: field, Message: "invalid timestamp", Err: err}
}

// Internal wraps an unexpected failure, usually from storage.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldOf returns the field an error is attributed to, if any.
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

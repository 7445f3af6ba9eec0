// Package apperr defines typed, status-aware application errors.
package apperr

import (
	"errors"
	"net/http"
)

// Error represents a typed, status-aware application error.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Status  int               `json:"-"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return "error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, apperr.ErrNotFound) works on copies made by Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates an error with the given code, HTTP status and message.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap copies base, attaches err as the cause and optionally overrides the message.
// A nil err returns nil.
func Wrap(err error, base *Error, message string) *Error {
	if err == nil {
		return nil
	}
	if base == nil {
		base = ErrInternal
	}
	cp := *base
	if message != "" {
		cp.Message = message
	}
	cp.Err = err
	return &cp
}

// WithMessage copies base with a new message.
func WithMessage(base *Error, message string) *Error {
	if base == nil {
		return nil
	}
	cp := *base
	cp.Message = message
	return &cp
}

// WithFields copies base with per-field details attached.
func WithFields(base *Error, message string, fields map[string]string) *Error {
	if base == nil {
		return nil
	}
	cp := *base
	if message != "" {
		cp.Message = message
	}
	cp.Fields = fields
	return &cp
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// Status returns the HTTP status for err, 500 when untyped.
func Status(err error) int {
	if e, ok := As(err); ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// Code returns the machine-readable code for err.
func Code(err error) string {
	if e, ok := As(err); ok && e.Code != "" {
		return e.Code
	}
	return "internal_error"
}

// Message returns the human-readable message for err.
func Message(err error) string {
	if e, ok := As(err); ok {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Code
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// Payload renders err as a JSON-ready map.
func Payload(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	payload := map[string]any{
		"error": Message(err),
		"code":  Code(err),
	}
	if e, ok := As(err); ok && len(e.Fields) > 0 {
		payload["fields"] = e.Fields
	}
	return payload
}

var (
	ErrBadRequest   = New("bad_request", http.StatusBadRequest, "")
	ErrValidation   = New("validation_error", http.StatusBadRequest, "")
	ErrUnauthorized = New("unauthorized", http.StatusUnauthorized, "")
	ErrForbidden    = New("forbidden", http.StatusForbidden, "")
	ErrNotFound     = New("not_found", http.StatusNotFound, "")
	ErrConflict     = New("conflict", http.StatusConflict, "")
	ErrRateLimited  = New("rate_limited", http.StatusTooManyRequests, "")
	ErrInternal     = New("internal_error", http.StatusInternalServerError, "")
	ErrUnavailable  = New("service_unavailable", http.StatusServiceUnavailable, "")
	ErrDatabase     = New("database_error", http.StatusInternalServerError, "")
)

// NotFound returns a not-found error with the given message.
func NotFound(message string) *Error {
	return WithMessage(ErrNotFound, message)
}

// Invalid returns a validation error with the given message.
func Invalid(message string) *Error {
	return WithMessage(ErrValidation, message)
}

// Forbidden returns a forbidden error with the given message.
func Forbidden(message string) *Error {
	return WithMessage(ErrForbidden, message)
}

// Package errors defines the typed errors produced by the download pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a pipeline failure
type ErrorType string

const (
	// ErrorTypeFormat is a malformed date argument
	ErrorTypeFormat ErrorType = "format"
	// ErrorTypePrecondition is a missing session snapshot or other unmet run precondition
	ErrorTypePrecondition ErrorType = "precondition"
	// ErrorTypeTransport is a network failure, timeout, or non-success HTTP status
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeContentMismatch is a download whose body looks like markup instead of payload
	ErrorTypeContentMismatch ErrorType = "content_mismatch"
	// ErrorTypeSizeThreshold is a download smaller than its configured minimum
	ErrorTypeSizeThreshold ErrorType = "size_threshold"
	// ErrorTypeNotFound is an expected archive member or resource that is absent
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeUnknown is everything else
	ErrorTypeUnknown ErrorType = "unknown"
)

// Error carries the failure type alongside the message and, for HTTP
// failures, the status code.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error with a formatted message.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithCode creates a typed error carrying an HTTP status code.
func NewWithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// Format reports a malformed date argument.
func Format(format string, args ...interface{}) *Error {
	return New(ErrorTypeFormat, format, args...)
}

// Precondition reports an unmet run precondition.
func Precondition(format string, args ...interface{}) *Error {
	return New(ErrorTypePrecondition, format, args...)
}

// Transport reports a network or HTTP status failure.
func Transport(code int, format string, args ...interface{}) *Error {
	return NewWithCode(ErrorTypeTransport, code, format, args...)
}

// ContentMismatch reports a body that sniffs as markup rather than payload.
func ContentMismatch(format string, args ...interface{}) *Error {
	return New(ErrorTypeContentMismatch, format, args...)
}

// SizeThreshold reports a download below its configured minimum size.
func SizeThreshold(format string, args ...interface{}) *Error {
	return New(ErrorTypeSizeThreshold, format, args...)
}

// NotFound reports an absent archive member or resource.
func NotFound(format string, args ...interface{}) *Error {
	return New(ErrorTypeNotFound, format, args...)
}

// TypeOf returns the ErrorType of err, unwrapping as needed, or
// ErrorTypeUnknown when err carries no type information.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err (or anything it wraps) has the given type.
func IsType(err error, t ErrorType) bool {
	return TypeOf(err) == t
}

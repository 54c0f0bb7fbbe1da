// Package errors provides Go-level error handling for the filesystem/process
// boundary. Types are restricted to the same closed set the language's own
// value.Error uses, so the two layers map onto each other one-to-one via ToValue.
package errors

import (
	"fmt"

	"tlang/core/value"
)

// Type identifies the category of error. It intentionally mirrors the closed
// set of language error codes so a boundary error converts losslessly.
type Type string

const (
	TypeError       Type = "TypeError"
	TypeArity       Type = "ArityError"
	TypeName        Type = "NameError"
	TypeDivByZero   Type = "DivisionByZero"
	TypeKey         Type = "KeyError"
	TypeIndex       Type = "IndexError"
	TypeAssertion   Type = "AssertionError"
	TypeFile        Type = "FileError"
	TypeValue       Type = "ValueError"
	TypeSyntax      Type = "SyntaxError"
	TypeMatch       Type = "MatchError"
	TypeGeneric     Type = "GenericError"
)

// Error represents a domain error with context, at the Go error-interface level.
type Error struct {
	Type    Type                   `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// ToValue converts a boundary Error into the language-level Error Value with
// the same code and message, so filesystem/process errors surface to T
// programs through the same closed taxonomy as evaluator errors.
func (e *Error) ToValue() value.Value {
	if e.Context == nil {
		return value.Err(value.ErrorCode(e.Type), e.Message)
	}
	ctx := make(map[string]value.Value, len(e.Context))
	for k, v := range e.Context {
		if s, ok := v.(string); ok {
			ctx[k] = value.Str(s)
		} else {
			ctx[k] = value.Str(fmt.Sprintf("%v", v))
		}
	}
	return value.ErrWithContext(value.ErrorCode(e.Type), e.Message, ctx)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type.
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error.
func New(errType Type, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// Newf creates a new formatted error.
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with context.
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{Type: errType, Message: message, Cause: cause}
}

// Wrapf wraps an error with formatted context.
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{Type: errType, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsType checks if an error is of a specific type.
func IsType(err error, t Type) bool {
	if e, ok := err.(*Error); ok {
		return e.Type == t
	}
	return false
}

// File creates a file-boundary error (read_csv/write_csv/serialize/populate_pipeline/...).
func File(message string, cause error) *Error {
	return Wrap(TypeFile, message, cause)
}

// Syntax creates a parse-time error.
func Syntax(message string) *Error {
	return New(TypeSyntax, message)
}

// Generic creates a catch-all error for conditions with no closer match.
func Generic(message string, cause error) *Error {
	return Wrap(TypeGeneric, message, cause)
}

// Internal creates an internal error that should be surfaced as GenericError.
func Internal(message string, cause error) *Error {
	return Wrap(TypeGeneric, message, cause)
}

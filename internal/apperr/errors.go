package apperr

import (
	"errors"
	"fmt"
)

// Error codes shared by every pipeline stage
const (
	CodeConfig     = "CONFIG_ERROR"
	CodeTool       = "EXTERNAL_TOOL_ERROR"
	CodeBackend    = "TRANSLATION_BACKEND_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeTimeout    = "TIMEOUT"
)

// Error is a classified error carrying one of the codes above
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error without a cause
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf is New with formatting
func Newf(code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to err
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or "" when err is not classified.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

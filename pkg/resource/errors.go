package resource

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeHandlerNotFound   = "HandlerNotFound"
	CodeParseError        = "ParseError"
	CodeArgumentError     = "ArgumentError"
	CodeHandlerFault      = "HandlerFault"
	CodeCanceled          = "Canceled"
	CodeTimedOut          = "TimedOut"
	CodeDuplicateHandler  = "DuplicateHandler"
	CodeInvalidBinding    = "InvalidBinding"
	CodeNotSupported      = "NotSupported"
	CodeStartupConfigFail = "StartupConfigurationError"
)

// Error is a per-request failure. The dispatcher turns it into a Failed result
// carrying Code and Target verbatim.
type Error struct {
	Code    string
	Target  string
	Message string
	Details []ErrorDetail
	cause   error
}

func (e *Error) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Target, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Info converts the error to the shape carried by a Result.
func (e *Error) Info() *ErrorInfo {
	info := &ErrorInfo{
		Code:    e.Code,
		Target:  e.Target,
		Message: e.Message,
		Details: append([]ErrorDetail(nil), e.Details...),
	}
	if e.cause != nil {
		info.InnerError = e.cause.Error()
	}
	return info
}

func NewHandlerNotFound(typ string) *Error {
	return &Error{
		Code:    CodeHandlerNotFound,
		Target:  "type",
		Message: fmt.Sprintf("no handler registered for resource type %q and no generic handler available", typ),
	}
}

// NewParseError reports a structured document field that is not a JSON object.
func NewParseError(field string, cause error) *Error {
	msg := fmt.Sprintf("field %q is not a valid JSON object", field)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &Error{Code: CodeParseError, Target: field, Message: msg, cause: cause}
}

func NewArgumentError(field string, cause error) *Error {
	msg := fmt.Sprintf("field %q could not be converted", field)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}
	return &Error{Code: CodeArgumentError, Target: field, Message: msg, cause: cause}
}

func NewHandlerFault(cause error) *Error {
	msg := "handler failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeHandlerFault, Message: msg, cause: cause}
}

func NewCanceled(cause error) *Error {
	return &Error{Code: CodeCanceled, Message: "operation canceled", cause: cause}
}

func NewTimedOut(cause error) *Error {
	return &Error{Code: CodeTimedOut, Message: "operation timed out", cause: cause}
}

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// StartupError is fatal: the host must not accept traffic after one.
type StartupError struct {
	Code   string
	Reason string
	cause  error
}

func NewStartupError(code, reason string, cause error) *StartupError {
	return &StartupError{Code: code, Reason: reason, cause: cause}
}

func (e *StartupError) Error() string {
	var b strings.Builder
	b.WriteString(CodeStartupConfigFail)
	if e.Code != "" && e.Code != CodeStartupConfigFail {
		b.WriteString(" [")
		b.WriteString(e.Code)
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *StartupError) Unwrap() error { return e.cause }

// IsStartupError reports whether err carries a startup configuration failure.
func IsStartupError(err error) bool {
	var se *StartupError
	return errors.As(err, &se)
}

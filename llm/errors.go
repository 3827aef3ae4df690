package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the error taxonomy the pipeline exposes to callers.
type ErrorKind string

const (
	ErrConfiguration   ErrorKind = "configuration"    // missing or invalid provider config, not retryable
	ErrAuth            ErrorKind = "auth"             // credential rejected by the backend
	ErrTransport       ErrorKind = "transport"        // timeout, connection reset, DNS failure
	ErrUpstream        ErrorKind = "upstream"         // non-success backend status, rate limits included
	ErrConversion      ErrorKind = "conversion"       // content or tool declaration cannot be mapped
	ErrStreamIntegrity ErrorKind = "stream_integrity" // malformed backend payload or stream chunk
	ErrCanceled        ErrorKind = "canceled"         // caller canceled
)

// Error is the single classified error surfaced by the pipeline.
type Error struct {
	Kind       ErrorKind     `json:"kind"`
	Message    string        `json:"message"`
	RequestID  string        `json:"request_id,omitempty"`
	Model      string        `json:"model,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Retryable  bool          `json:"retryable"`
	// Raw is the backend's error payload, when one was received.
	Raw   []byte `json:"raw,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithRaw attaches the raw backend payload.
func (e *Error) WithRaw(raw []byte) *Error {
	e.Raw = raw
	return e
}

// AsError extracts an *Error from the chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the error kind, or "" for unclassified errors.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// IsRetryable reports whether the caller may retry. The pipeline itself never does.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

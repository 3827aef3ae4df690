package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Classify turns any failure into a single *Error carrying the request
// context. Errors that are already classified keep their kind and are only
// enriched with missing context. It performs no I/O.
func Classify(err error, rc *RequestContext, req *GenerateRequest) *Error {
	if err == nil {
		return nil
	}

	e, ok := AsError(err)
	if ok {
		// Copy so that a shared error value is never mutated across calls.
		cp := *e
		e = &cp
	} else {
		e = classifyRaw(err)
	}

	if rc != nil {
		if e.RequestID == "" {
			e.RequestID = rc.RequestID
		}
		if e.Model == "" {
			e.Model = rc.Model
		}
		if e.Provider == "" {
			e.Provider = rc.Provider
		}
		if e.Duration == 0 {
			e.Duration = rc.Elapsed()
		}
	}
	if e.Model == "" && req != nil {
		e.Model = req.Model
	}
	return e
}

func classifyRaw(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: ErrCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: ErrTransport, Message: "request timed out", Retryable: true, Cause: err}
	case isTransportError(err):
		return &Error{Kind: ErrTransport, Message: err.Error(), Retryable: true, Cause: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Kind: ErrStreamIntegrity, Message: "malformed backend payload", Cause: err}
	}

	return &Error{Kind: ErrUpstream, Message: err.Error(), Cause: err}
}

func isTransportError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, http.ErrHandlerTimeout) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "timeout")
}

// StatusError maps a non-success HTTP status to a classified error.
// 401/403 mean the credential was rejected; everything else is upstream.
func StatusError(status int, msg string, raw []byte) *Error {
	e := &Error{Message: msg, HTTPStatus: status, Raw: raw}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrAuth
	case status == http.StatusTooManyRequests:
		e.Kind = ErrUpstream
		e.Retryable = true
	case status >= 500:
		e.Kind = ErrUpstream
		e.Retryable = true
	default:
		e.Kind = ErrUpstream
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorKind classifies provider failures.
type ErrorKind string

// ErrorKind values.
const (
	KindAuth                ErrorKind = "auth"
	KindRateLimit           ErrorKind = "rate_limit"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindInvalidResponse     ErrorKind = "invalid_response"
	KindContextOverflow     ErrorKind = "context_overflow"
	KindNotImplemented      ErrorKind = "not_implemented"
)

// Error is returned for every dispatcher and adapter failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int
	Message  string
	Err      error
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrAuth                = &Error{Kind: KindAuth}
	ErrRateLimited         = &Error{Kind: KindRateLimit}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrInvalidResponse     = &Error{Kind: KindInvalidResponse}
	ErrContextOverflow     = &Error{Kind: KindContextOverflow}
	ErrNotImplemented      = &Error{Kind: KindNotImplemented}
)

func newError(kind ErrorKind, provider string, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Status: status, Message: message, Err: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("ai: ")
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf returns the kind of err, or an empty kind for foreign errors.
func KindOf(err error) ErrorKind {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind
	}
	return ""
}

// classifyStatus maps a non-2xx provider response to an *Error.
func classifyStatus(provider string, status int, body []byte) *Error {
	message := gjson.GetBytes(body, "error.message").String()
	if message == "" {
		message = gjson.GetBytes(body, "message").String()
	}
	if message == "" {
		message = http.StatusText(status)
	}
	var kind ErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindRateLimit
	case status >= 500:
		kind = KindUpstreamUnavailable
	default:
		kind = KindInvalidRequest
	}
	return newError(kind, provider, status, message, nil)
}

package common

import (
	"errors"
	"fmt"
)

// Sentinel categories for errors.Is checks across the pipeline.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUpstreamParse     = errors.New("upstream response not parseable")
	ErrUpstreamTransport = errors.New("upstream transport failure")
	ErrSession           = errors.New("session failure")
)

// ValidationError reports a missing or invalid caller-supplied field.
// Never retried; always names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamParseError reports an extractor response with no recoverable JSON.
// Snippet carries a bounded slice of the offending text for debugging.
type UpstreamParseError struct {
	Reason  string
	Snippet string
}

func (e *UpstreamParseError) Error() string {
	if e.Snippet == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %q", e.Reason, e.Snippet)
}

func (e *UpstreamParseError) Unwrap() error { return ErrUpstreamParse }

// NewUpstreamParseError bounds the snippet so no full document body ends
// up inside an error message.
func NewUpstreamParseError(reason, text string) *UpstreamParseError {
	return &UpstreamParseError{Reason: reason, Snippet: Snippet(text, 120)}
}

// UpstreamTransportError reports a non-success HTTP status or a network
// failure from the extractor or the ledger API.
type UpstreamTransportError struct {
	Op     string
	Status int
	Body   string
	Cause  error
}

func (e *UpstreamTransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *UpstreamTransportError) Unwrap() error { return ErrUpstreamTransport }

func NewTransportError(op string, status int, body []byte, cause error) *UpstreamTransportError {
	return &UpstreamTransportError{Op: op, Status: status, Body: Snippet(string(body), 200), Cause: cause}
}

// SessionError reports a rejected authentication or dossier open. The
// session manager invalidates its cached token before returning one.
type SessionError struct {
	Op     string
	Reason string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *SessionError) Unwrap() error { return ErrSession }

func NewSessionError(op, reason string) *SessionError {
	return &SessionError{Op: op, Reason: reason}
}

// Snippet truncates s for inclusion in error messages and logs.
func Snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// Package apperr defines the stable error codes surfaced by the analyzer.
// Every failure a caller can observe maps to one of these codes; transports
// translate the attached HTTP status without inspecting message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a coded failure. Two Errors match under errors.Is when their
// codes are equal, so call sites can wrap freely with fmt.Errorf("%w").
type Error struct {
	Code    string
	Message string
	Status  int
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// Is matches on code so sentinels compare against wrapped instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithMessage returns a copy of e carrying a request-specific message.
func (e *Error) WithMessage(format string, a ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, a...), Status: e.Status, err: e.err}
}

// Wrap returns a copy of e that records cause for logs and unwrapping.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Status: e.Status, err: cause}
}

// Sentinel errors, one per failure kind in the taxonomy.
var (
	ErrInvalidReference      = &Error{Code: "INVALID_REFERENCE", Message: "invalid repository reference", Status: http.StatusBadRequest}
	ErrBranchResolution      = &Error{Code: "BRANCH_RESOLUTION_FAILED", Message: "could not resolve default branch", Status: http.StatusBadGateway}
	ErrPathTraversalRejected = &Error{Code: "PATH_TRAVERSAL_REJECTED", Message: "path rejected by traversal check", Status: http.StatusBadRequest}
	ErrFileTooLarge          = &Error{Code: "FILE_TOO_LARGE", Message: "file exceeds size ceiling", Status: http.StatusUnprocessableEntity}
	ErrNotFound              = &Error{Code: "NOT_FOUND", Message: "resource not found", Status: http.StatusNotFound}
	ErrUpstreamRateLimited   = &Error{Code: "UPSTREAM_RATE_LIMITED", Message: "content source rate limit exceeded", Status: http.StatusBadGateway}
	ErrUpstreamUnavailable   = &Error{Code: "UPSTREAM_UNAVAILABLE", Message: "content source unavailable", Status: http.StatusBadGateway}
	ErrProviderRateLimited   = &Error{Code: "RATE_LIMITED", Message: "analysis provider rate limit exceeded", Status: http.StatusTooManyRequests}
	ErrInvalidCredential     = &Error{Code: "INVALID_CREDENTIAL", Message: "analysis provider rejected the credential", Status: http.StatusUnauthorized}
	ErrProviderUnavailable   = &Error{Code: "PROVIDER_UNAVAILABLE", Message: "analysis provider unavailable", Status: http.StatusBadGateway}
	ErrNoStructuredPayload   = &Error{Code: "NO_STRUCTURED_PAYLOAD", Message: "no JSON object found in provider response", Status: http.StatusBadGateway}
	ErrMalformedPayload      = &Error{Code: "MALFORMED_PAYLOAD", Message: "provider response JSON failed to parse", Status: http.StatusBadGateway}
	ErrQuotaExceeded         = &Error{Code: "QUOTA_EXCEEDED", Message: "request quota exceeded", Status: http.StatusTooManyRequests}
	ErrValidation            = &Error{Code: "VALIDATION_ERROR", Message: "invalid request", Status: http.StatusBadRequest}
)

// CodeOf extracts the stable code from err, or "INTERNAL" when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// StatusOf maps err to its HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the user-facing message for err. Non-coded errors
// collapse to a generic message so internal detail never leaks.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

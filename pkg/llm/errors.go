package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies provider errors into the closed taxonomy every
// vendor client maps onto. No vendor-specific error type leaks past the
// Provider boundary.
type ErrorType int8

const (
	// ErrorTypeRateLimited represents rate limiting (429, quota exceeded).
	ErrorTypeRateLimited ErrorType = iota
	// ErrorTypeAuth represents authentication failures (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeInvalidRequest represents malformed requests (400, prompt too
	// long, policy violation).
	ErrorTypeInvalidRequest
	// ErrorTypeTimeout represents a call that exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeUpstream represents vendor-side failures (5xx, truncated or
	// empty responses, connection resets).
	ErrorTypeUpstream
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimited:
		return "rate_limited"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeInvalidRequest:
		return "invalid_request"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeUpstream:
		return "upstream"
	default:
		return "invalid"
	}
}

// maxBodyStub caps how much of an upstream response body is retained on an
// error, guarding logs against huge or sensitive payloads.
const maxBodyStub = 512

// Error is a classified provider error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Body       string    // First portion of the upstream response body
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("llm error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("llm error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("llm error (%s): status %d", e.Type.String(), e.StatusCode)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a later attempt against the same provider
// could plausibly succeed. Blocklist approach: everything is retryable
// unless the failure is deterministic for the same request and credentials.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeAuth, ErrorTypeInvalidRequest:
		return false
	default:
		return true
	}
}

// NewError creates a classified provider error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithStatus creates a classified provider error carrying the HTTP
// status and a truncated response body.
func NewErrorWithStatus(errorType ErrorType, statusCode int, message, body string) *Error {
	if len(body) > maxBodyStub {
		body = body[:maxBodyStub]
	}
	return &Error{
		Type:       errorType,
		StatusCode: statusCode,
		Message:    message,
		Body:       body,
	}
}

// NewErrorWithCause creates a classified provider error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// Is checks whether err is a classified provider error of the given type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// TypeOf returns the error type of err, defaulting to ErrorTypeUpstream for
// unclassified errors so callers always see a value from the taxonomy.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUpstream
}

// ClassifyStatus maps an HTTP status code onto the taxonomy. Zero is
// returned as ok=false when the status carries no classification.
func ClassifyStatus(statusCode int) (ErrorType, bool) {
	switch statusCode {
	case 401, 403:
		return ErrorTypeAuth, true
	case 429:
		return ErrorTypeRateLimited, true
	case 400, 413, 422:
		return ErrorTypeInvalidRequest, true
	case 408, 504:
		return ErrorTypeTimeout, true
	case 500, 502, 503:
		return ErrorTypeUpstream, true
	default:
		return 0, false
	}
}

// ClassifyErr maps context and transport errors onto the taxonomy by
// inspecting the error chain and, as a last resort, its text. Vendor
// clients call this after their SDK-specific classification.
func ClassifyErr(err error) ErrorType {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorTypeTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ErrorTypeTimeout
	case strings.Contains(msg, "rate") || strings.Contains(msg, "quota") || strings.Contains(msg, "overloaded"):
		return ErrorTypeRateLimited
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key") || strings.Contains(msg, "forbidden"):
		return ErrorTypeAuth
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "malformed") || strings.Contains(msg, "too large"):
		return ErrorTypeInvalidRequest
	default:
		return ErrorTypeUpstream
	}
}

// ExtractStatusCode attempts to pull an HTTP status code out of an error
// string. Vendor SDKs commonly embed the status in the message.
func ExtractStatusCode(errStr string) int {
	patterns := []string{"status code: ", "status: ", "http ", "code "}

	lower := strings.ToLower(errStr)
	for _, pattern := range patterns {
		idx := strings.Index(lower, pattern)
		if idx == -1 {
			continue
		}
		start := idx + len(pattern)
		if start+3 > len(errStr) {
			continue
		}
		for _, code := range []string{"400", "401", "403", "408", "413", "422", "429", "500", "502", "503", "504"} {
			if strings.HasPrefix(errStr[start:], code) {
				var status int
				_, _ = fmt.Sscanf(code, "%d", &status)
				return status
			}
		}
	}
	return 0
}

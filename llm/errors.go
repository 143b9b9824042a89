package llm

import (
	"context"
	"errors"
	"net"
	"time"
)

// Error represents a provider-neutral LLM error. Retryable is the single
// classification the retry layer consults; callers receive the same value as
// the final error when every attempt is exhausted.
type Error struct {
	Type       ErrorType
	Provider   Provider
	Message    string
	Retryable  bool
	RetryAfter *time.Duration
	StatusCode int
	Err        error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeServer         ErrorType = "server"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeDecode         ErrorType = "decode"
	ErrorTypeConfig         ErrorType = "config"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// ErrNoProviders is returned when no provider is configured at all. It is a
// configuration error: never retried, never subject to fallback.
var ErrNoProviders = &Error{
	Type:    ErrorTypeConfig,
	Message: "no LLM provider is configured",
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = string(e.Provider) + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.Err
}

// retryableStatuses are the HTTP statuses worth retrying against the same
// provider. Everything else fails that provider immediately.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// FromStatus builds an Error from a non-2xx HTTP status, classifying
// retryability uniformly across providers.
func FromStatus(provider Provider, status int, message string, cause error) *Error {
	e := &Error{
		Provider:   provider,
		Message:    message,
		StatusCode: status,
		Retryable:  retryableStatuses[status],
		Err:        cause,
	}
	switch {
	case status == 429:
		e.Type = ErrorTypeRateLimit
	case status >= 500:
		e.Type = ErrorTypeServer
	case status == 401 || status == 403:
		e.Type = ErrorTypeAuth
	case status >= 400:
		e.Type = ErrorTypeInvalidRequest
	default:
		e.Type = ErrorTypeProvider
	}
	return e
}

// FromTransport builds an Error from a transport-level failure (timeout,
// connect failure, read/write failure). Transport errors are retryable except
// when the caller itself canceled the request.
func FromTransport(provider Provider, err error) *Error {
	e := &Error{
		Provider:  provider,
		Message:   "transport error",
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Err:       err,
	}
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		e.Retryable = false
	case errors.Is(err, context.DeadlineExceeded):
		e.Type = ErrorTypeTimeout
		e.Message = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Type = ErrorTypeTimeout
		e.Message = "request timed out"
	}
	return e
}

// NewDecodeError creates an error for a malformed or unexpected response
// shape. Decode errors are never retried.
func NewDecodeError(provider Provider, message string, cause error) *Error {
	return &Error{
		Type:     ErrorTypeDecode,
		Provider: provider,
		Message:  message,
		Err:      cause,
	}
}

// NewConfigError creates a configuration error. Configuration errors are
// fatal: not retried and not subject to fallback.
func NewConfigError(message string) *Error {
	return &Error{
		Type:    ErrorTypeConfig,
		Message: message,
	}
}

// NewRateLimitError creates a retryable rate limit error.
func NewRateLimitError(provider Provider, message string, retryAfter *time.Duration, cause error) *Error {
	return &Error{
		Type:       ErrorTypeRateLimit,
		Provider:   provider,
		Message:    message,
		Retryable:  true,
		RetryAfter: retryAfter,
		StatusCode: 429,
		Err:        cause,
	}
}

// NewProviderError creates a non-retryable provider error.
func NewProviderError(provider Provider, message string, cause error) *Error {
	return &Error{
		Type:     ErrorTypeProvider,
		Provider: provider,
		Message:  message,
		Err:      cause,
	}
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeConfig
	}
	return false
}

// IsDecodeError checks if an error is a response decoding error.
func IsDecodeError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeDecode
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// ExtractStatusCode extracts the HTTP status from an error, or 0 when the
// error did not originate from an HTTP response.
func ExtractStatusCode(err error) int {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.StatusCode
	}
	return 0
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by the client and providers.
var (
	// ErrEmptyAPIKey indicates that no API key was configured.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider answered with no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response carried no
	// candidates.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrUnknownProvider indicates that no factory is registered for the
	// requested provider name.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ErrorType is the category of a provider failure.
type ErrorType int

const (
	// ErrorTypeUnknown indicates an error of an undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication indicates a rejected or missing credential.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit indicates that a provider quota was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeBadRequest indicates a malformed request, for example an
	// unsupported image type.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates an unknown model.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a failure on the provider's side.
	ErrorTypeServerError
	// ErrorTypeContentPolicy indicates that safety filters blocked the
	// request or the response.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork indicates a transport failure or a canceled request.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates that the request deadline passed.
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name used in logs and metric labels.
func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ProviderError normalizes a provider SDK failure.
type ProviderError struct {
	// Type classifies the error.
	Type ErrorType
	// Provider names the provider that failed.
	Provider string
	// StatusCode is the HTTP status, when there was one.
	StatusCode int
	// Message is a short human-readable description.
	Message string
	// WrappedError is the SDK error.
	WrappedError error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := e.Provider + " error"
	if e.StatusCode > 0 {
		base += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		base += fmt.Sprintf(" [%s]", e.Type)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.WrappedError != nil {
		base += fmt.Sprintf(": %v", e.WrappedError)
	}
	return base
}

// Unwrap returns the SDK error.
func (e *ProviderError) Unwrap() error { return e.WrappedError }

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// IsRetryable reports whether err is worth another attempt. Provider errors
// decide for themselves; an open circuit and a caller cancellation never
// are. Anything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.IsRetryable()
	}
	return true
}

// ErrorClassifier turns status codes and context errors into
// ProviderErrors for one provider.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError classifies err by its HTTP status code.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch {
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		errType = ErrorTypeAuthentication
		message = ec.Provider + " authentication failed"
	case statusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
		message = ec.Provider + " rate limit exceeded"
	case statusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		errType = ErrorTypeTimeout
	case statusCode >= 500:
		errType = ErrorTypeServerError
	case statusCode >= 400:
		errType = ErrorTypeBadRequest
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError classifies a context error.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

// isContextError reports whether err stems from ctx cancellation or expiry.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

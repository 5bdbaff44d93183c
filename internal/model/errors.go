package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storefront error taxonomy.
// Use errors.Is() to check against these.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrUpstreamError          = errors.New("upstream error")
	ErrRateLimited            = errors.New("rate limited")
	ErrSessionInitializing    = errors.New("session initializing")
)

// APIError is the structured error returned by the backend client and the
// synchronizers. Implements error and supports unwrapping to a sentinel.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"` // HTTP status, not serialized
	Err        error  `json:"-"` // Wrapped error, not serialized
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a 404 error for missing resources.
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
		Err:        ErrNotFound,
	}
}

// NewValidationError creates a 400 error for input rejected before or by the backend.
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:       "VALIDATION_ERROR",
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		StatusCode: 400,
		Err:        ErrInvalidRequest,
	}
}

// NewUnauthorizedError creates a 401 error for an expired or missing session.
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:       "UNAUTHORIZED",
		Message:    reason,
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}
}

// NewForbiddenError creates a 403 error. It still unwraps to ErrUnauthorized.
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:       "FORBIDDEN",
		Message:    reason,
		StatusCode: 403,
		Err:        ErrUnauthorized,
	}
}

// NewAuthenticationRequiredError is raised locally, without a network call,
// when an operation needs a session that does not exist.
func NewAuthenticationRequiredError(operation string) *APIError {
	return &APIError{
		Code:       "AUTHENTICATION_REQUIRED",
		Message:    fmt.Sprintf("%s requires a signed-in session", operation),
		StatusCode: 401,
		Err:        ErrAuthenticationRequired,
	}
}

// NewUpstreamError creates a 502 error for network or backend failures.
func NewUpstreamError(service string, err error) *APIError {
	return &APIError{
		Code:       "UPSTREAM_ERROR",
		Message:    fmt.Sprintf("%s request failed", service),
		StatusCode: 502,
		Err:        fmt.Errorf("%w: %v", ErrUpstreamError, err),
	}
}

// NewInternalError creates a 500 error for unexpected failures.
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:       "INTERNAL_ERROR",
		Message:    "an internal error occurred",
		StatusCode: 500,
		Err:        err,
	}
}

// NewRateLimitError creates a 429 error for rate limiting.
func NewRateLimitError(service string) *APIError {
	return &APIError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("%s rate limit exceeded, please retry later", service),
		StatusCode: 429,
		Err:        ErrRateLimited,
	}
}

// NewSessionInitializingError is returned for session-dependent work asked
// for before the startup session check has settled.
func NewSessionInitializingError() *APIError {
	return &APIError{
		Code:       "SESSION_INITIALIZING",
		Message:    "session is still initializing, retry shortly",
		StatusCode: 503,
		Err:        ErrSessionInitializing,
	}
}

// IsUnauthorized reports whether err signals an expired or rejected session.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

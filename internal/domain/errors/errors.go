package errors

import (
	"errors"
	"fmt"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeFeatureUnavailable ErrorType = "feature_unavailable"
	ErrorTypeRuleLoad           ErrorType = "rule_load"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeNotFound           ErrorType = "not_found"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

// NewTimeoutError reports that an evaluation deadline expired before a verdict
// could be produced. Partial scores are never attached to it.
func NewTimeoutError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTimeout,
		Code:       "EVALUATION_TIMEOUT",
		Message:    message,
		Retryable:  true,
		StatusCode: 504,
	}
}

// NewFeatureUnavailableError reports a degraded feature layer. Individual rule
// failures are absorbed; this error surfaces only when evaluation as a whole
// was meaningless.
func NewFeatureUnavailableError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeFeatureUnavailable,
		Code:       "FEATURE_UNAVAILABLE",
		Message:    message,
		Retryable:  true,
		StatusCode: 503,
	}
}

// NewMalformedRuleError rejects a rule document at load time. The previously
// active snapshot keeps serving.
func NewMalformedRuleError(rule, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRuleLoad,
		Code:       "MALFORMED_RULE",
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"rule": rule},
	}
}

// NewUnresolvedReferenceError rejects a rule whose condition tree references a
// field that cannot be resolved at load time.
func NewUnresolvedReferenceError(rule, field string) *AppError {
	return &AppError{
		Type:       ErrorTypeRuleLoad,
		Code:       "UNRESOLVED_REFERENCE",
		Message:    fmt.Sprintf("rule %q references unknown field %q", rule, field),
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"rule": rule, "field": field},
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsTimeout reports whether an error is an evaluation timeout.
func IsTimeout(err error) bool {
	return IsType(err, ErrorTypeTimeout)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}

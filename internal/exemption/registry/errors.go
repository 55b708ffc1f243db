package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory defines the normalized failure taxonomy for registry calls.
type ErrorCategory string

const (
	// ErrorTimeout indicates the registry took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the registry returned malformed data
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorProviderOutage indicates the registry or a member-state backend is down
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorRateLimited indicates the registry rejected us for concurrency limits
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected local error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps registry failures with normalized categorization.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a categorized provider error.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying on the next trigger.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error. Context deadline
// errors that never reached a provider are reported as timeouts.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrNoUploadEndpoint is returned when the client has no endpoint configured.
	ErrNoUploadEndpoint = errors.New("upload endpoint is required")
)

// StatusError represents a failed upload with its classification.
type StatusError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upload %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// Classify returns the ErrorClass carried by err, or "" if err is not a
// *StatusError.
func Classify(err error) ErrorClass {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ErrorClass
	}
	return ""
}

// Retryable reports whether repeating the upload may succeed.
func Retryable(err error) bool {
	return shouldRetry(Classify(err))
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// The endpoint rejected the payload itself
		return false
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork, ErrorClassInvalidResponse:
		return true
	default:
		return false
	}
}

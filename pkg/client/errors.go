package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	// It wraps the error of the last attempt.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// RemoteError is returned when the backoffice answers with a non-success status.
type RemoteError struct {
	StatusCode int
	ErrorClass ErrorClass
	Path       string
	Body       string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("CRM %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Path, e.Body)
}

// EmptyContentError is returned when a list endpoint answers without a
// content field. The backoffice does this for endpoints it does not implement.
type EmptyContentError struct {
	Path string
}

// Error implements the error interface.
func (e *EmptyContentError) Error() string {
	return fmt.Sprintf("call to %s returned no content, call not implemented", e.Path)
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx and unclassified errors are returned as-is
		return false
	}
}

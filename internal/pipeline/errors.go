package pipeline

import (
	"errors"
	"fmt"
)

// BackendError reports a failure to obtain a response from the backend:
// transport errors, rate limiting, timeouts or refusals.
type BackendError struct {
	Err        error
	StatusCode int
	Retryable  bool
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewRetryableBackendError marks err as transient.
func NewRetryableBackendError(statusCode int, err error) *BackendError {
	return &BackendError{Err: err, StatusCode: statusCode, Retryable: true}
}

// NewPermanentBackendError marks err as not worth retrying.
func NewPermanentBackendError(statusCode int, err error) *BackendError {
	return &BackendError{Err: err, StatusCode: statusCode}
}

// asBackendError classifies err. Errors a backend did not classify itself are
// treated as transient transport failures.
func asBackendError(err error) *BackendError {
	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return backendErr
	}
	return &BackendError{Err: err, Retryable: true}
}

// AttemptsExhaustedError is returned when every attempt produced a response that
// could not be parsed or verified. It unwraps to the last *ParseError.
type AttemptsExhaustedError struct {
	Attempts   int
	Last       error
	Transcript string
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("exhausted %d attempts without an acceptable response: %v", e.Attempts, e.Last)
}

func (e *AttemptsExhaustedError) Unwrap() error { return e.Last }

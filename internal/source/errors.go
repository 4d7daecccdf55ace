package source

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError indicates the backend could not be reached: a transport
// failure, a timeout or an open circuit breaker.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError indicates the backend answered with a non-2xx status.
type RejectedError struct {
	Op         string
	StatusCode int

	// Reason is the backend's error message, if it sent one.
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: backend rejected request (%d %s)",
			e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: backend rejected request (%d): %s", e.Op, e.StatusCode, e.Reason)
}

// Retryable reports whether the status is worth retrying for idempotent
// requests.
func (e *RejectedError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNetworkFailure reports whether err (or any error in its chain) is a
// NetworkError.
func IsNetworkFailure(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRejected reports whether err (or any error in its chain) is a
// RejectedError.
func IsRejected(err error) bool {
	var rejErr *RejectedError
	return errors.As(err, &rejErr)
}

// IsAuthError reports whether the backend refused the credentials.
func IsAuthError(err error) bool {
	var rejErr *RejectedError
	if !errors.As(err, &rejErr) {
		return false
	}
	return rejErr.StatusCode == http.StatusUnauthorized || rejErr.StatusCode == http.StatusForbidden
}

// IsNotFound reports whether the backend did not know the notification.
func IsNotFound(err error) bool {
	var rejErr *RejectedError
	return errors.As(err, &rejErr) && rejErr.StatusCode == http.StatusNotFound
}

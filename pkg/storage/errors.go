package storage

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAllocate = errors.New("storage: allocate failed")
	ErrUpload   = errors.New("storage: upload failed")
	ErrDownload = errors.New("storage: download failed")
)

// StatusError is returned when an endpoint answers with a non-2xx status.
type StatusError struct {
	Op         error
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %s returned %d %s", e.Op, redact(e.URL), e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return e.Op
}

// Temporary reports whether the request may succeed when repeated.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// isRetryable accepts temporary status codes and bare transport errors. Anything
// else wrapping one of the Err* values is a permanent failure.
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, ErrAllocate) || errors.Is(err, ErrUpload) || errors.Is(err, ErrDownload) {
		return false
	}
	return true
}

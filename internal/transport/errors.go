package transport

import (
	"errors"
	"fmt"
)

// ErrInvalidEndpoint is returned when a call has no usable URL.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// HTTPError is a non-2xx response from the registry.
type HTTPError struct {
	StatusCode int
	URL        string
	// Body holds the first bytes of the response body, for diagnostics.
	Body []byte
}

func (e *HTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("registry returned HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("registry returned HTTP %d", e.StatusCode)
}

// NetworkError is a failure below HTTP: DNS, connect, TLS, timeouts and
// context cancellation.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

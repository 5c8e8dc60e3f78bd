package garmin

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError represents a non-success response from the Garmin API
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("garmin api error: status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is an authentication failure
// (401/403). These abort a whole sync; nothing else does.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsTooManyRequests reports whether err is a 429 response
func IsTooManyRequests(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

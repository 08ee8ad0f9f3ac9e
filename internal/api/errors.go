package api

import (
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

var (
	// ErrAuthFailed means the session could not be re-authenticated. Stored
	// credentials have been cleared and the user must log in again.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// HTTPError is a response with a non-2xx status other than a recovered 401.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	if detail := e.detail(); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// detail returns the body cut to at most 200 bytes on a rune boundary.
func (e *HTTPError) detail() string {
	const max = 200
	if len(e.Body) <= max {
		return e.Body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(e.Body[cut]) {
		cut--
	}
	return e.Body[:cut] + "..."
}

// NetworkError means no HTTP response was received.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// IsRetryable reports whether the user can reasonably retry the call:
// network failures and server-side errors.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	code := StatusCode(err)
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

package types

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest marks a missing or malformed request parameter.
	ErrBadRequest = errors.New("bad request")
	// ErrBadGateway marks an upstream fetch that failed, timed out,
	// returned a non-success status or an undecodable body.
	ErrBadGateway = errors.New("bad gateway")
	// ErrNotFound marks a sub-resource the origin reported as absent.
	ErrNotFound = errors.New("not found")
)

// BadRequest wraps ErrBadRequest with a formatted message.
func BadRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// BadGateway wraps ErrBadGateway with a formatted message.
func BadGateway(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadGateway, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// UpstreamStatus converts a non-success origin status into the matching
// sentinel error.
func UpstreamStatus(status int, target string) error {
	if status == http.StatusNotFound || status == http.StatusGone {
		return NotFound("upstream returned %d for %s", status, target)
	}
	return BadGateway("upstream returned %d for %s", status, target)
}

// StatusCode maps an error onto the HTTP status the API reports.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBadGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

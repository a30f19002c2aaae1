package plex

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors returned by the client. Use errors.Is to test for them;
// responses carrying an HTTP status also match through *APIError.
var (
	// ErrInvalidConfig indicates the client was constructed with an
	// unusable base URL or options.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoConnection indicates the server could not be reached at all.
	ErrNoConnection = errors.New("unable to connect to plex server")

	// ErrUnauthorized indicates the token was missing, expired or lacks
	// access to the requested resource. Requests are never retried on it.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the requested identifier does not exist on
	// the server.
	ErrNotFound = errors.New("not found")

	// ErrSchemaMismatch indicates a response body that does not match the
	// shape this client expects. Malformed fragments are surfaced rather
	// than silently mapped to zero values.
	ErrSchemaMismatch = errors.New("unexpected response schema")
)

// APIError carries the HTTP status and body of a failed request. It matches
// ErrUnauthorized and ErrNotFound through errors.Is when the status (or the
// plex.tv invalid-token response) implies them.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("plex API error (status %d) on %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("plex API error (status %d) on %s", e.StatusCode, e.URL)
}

// Is reports whether the status code maps onto one of the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
			return true
		}
		// plex.tv reports expired tokens as 422 with an explanatory body.
		return e.StatusCode == http.StatusUnprocessableEntity && strings.Contains(e.Body, "Invalid token")
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized reports whether err represents an authentication or
// authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

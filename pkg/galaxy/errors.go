package galaxy

import (
	"fmt"
	"net/http"
)

// AuthError is returned when the server rejects the credentials.
type AuthError struct {
	URL     string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication failed for %s", e.URL)
	}
	return fmt.Sprintf("authentication failed for %s: %s", e.URL, e.Message)
}

// ConnectionError wraps network and TLS failures talking to a server.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Status
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Temporary reports whether retrying or continuing to poll makes sense.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// NotFoundError is returned when a named resource does not exist.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s': not found", e.Kind, e.Name)
}
